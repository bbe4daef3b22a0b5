package static

import (
	"net/url"
	"strings"

	"github.com/freekieb7/ember/filesystem"
	"github.com/freekieb7/ember/http"
)

// AcmeChallengeHandler answers ACME http-01 challenges with the token files
// of a directory. Hosts can get their own directory.
type AcmeChallengeHandler struct {
	fs    filesystem.Filesystem
	hosts map[string]filesystem.Filesystem
	match *http.RegexHandler
}

func NewAcmeChallengeHandler(fs filesystem.Filesystem) *AcmeChallengeHandler {
	h := &AcmeChallengeHandler{
		fs:    fs,
		hosts: make(map[string]filesystem.Filesystem),
	}
	h.match = http.MustRegexHandler([]string{http.MethodGet}, `/\.well-known/acme-challenge/([A-Za-z0-9_-]+)`, h.Handle)
	return h
}

// WithHost serves the tokens of hostname from fs.
func (h *AcmeChallengeHandler) WithHost(hostname string, fs filesystem.Filesystem) *AcmeChallengeHandler {
	h.hosts[strings.ToLower(hostname)] = fs
	return h
}

func (h *AcmeChallengeHandler) Match(method string, u *url.URL) []string {
	return h.match.Match(method, u)
}

func (h *AcmeChallengeHandler) Handle(req *http.Request, params []string) *http.ResponseBuilder {
	fs := h.fs
	if hostFS, ok := h.hosts[strings.ToLower(req.URL.Hostname())]; ok {
		fs = hostFS
	}
	if fs == nil || len(params) == 0 {
		return status(http.StatusNotFound)
	}

	token, err := fs.ReadFile("/" + params[0])
	if err != nil {
		return status(http.StatusNotFound)
	}
	return http.NewResponseBuilder().
		WithStatus(http.StatusOK).
		WithNoStore().
		WithBytes(http.MediaTypeText, token)
}
