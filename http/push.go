package http

import (
	"errors"
	nethttp "net/http"
	"net/url"
	"strings"
)

// conditional headers would let the pushed response be a 304
var conditionalHeaders = []string{
	HeaderIfNoneMatch,
	HeaderIfModifiedSince,
	HeaderIfMatch,
	HeaderIfUnmodSince,
	HeaderIfRange,
}

// headers the HTTP/2 library refuses in a push promise
var unpushableHeaders = []string{
	HeaderHost,
	HeaderContentLength,
	HeaderContentEncoding,
	"Trailer",
	"Te",
	HeaderExpect,
}

// WithPreload announces a resource the client should fetch. Over HTTP/2 it is
// pushed along with the response.
func (b *ResponseBuilder) WithPreload(target, as string) *ResponseBuilder {
	value := "<" + target + ">; rel=preload"
	if as != "" {
		value += "; as=" + as
	}
	b.header.Add(HeaderLink, value)
	return b
}

// PushTargets returns the preload links of the response that do not opt out
// with nopush.
func (res *Response) PushTargets() []string {
	var targets []string
	for _, value := range res.Header.Values(HeaderLink) {
		for _, link := range strings.Split(value, ",") {
			if target, ok := preloadTarget(link); ok {
				targets = append(targets, target)
			}
		}
	}
	return targets
}

func preloadTarget(link string) (string, bool) {
	link = trimOWS(link)
	if !strings.HasPrefix(link, "<") {
		return "", false
	}
	end := strings.IndexByte(link, '>')
	if end < 0 {
		return "", false
	}
	target := link[1:end]

	preload := false
	for _, param := range strings.Split(link[end+1:], ";") {
		param = trimOWS(param)
		if equalFold(param, "nopush") {
			return "", false
		}
		key, value, ok := strings.Cut(param, "=")
		if ok && equalFold(trimOWS(key), "rel") && containsRel(strings.Trim(trimOWS(value), `"`), "preload") {
			preload = true
		}
	}
	return target, preload && target != ""
}

func containsRel(value, rel string) bool {
	for _, v := range strings.Fields(value) {
		if equalFold(v, rel) {
			return true
		}
	}
	return false
}

// push issues a server push for every preload link of res that points to
// the same origin as req.
func push(w nethttp.ResponseWriter, req *Request, res *Response) {
	pusher, ok := w.(nethttp.Pusher)
	if !ok {
		return
	}
	targets := res.PushTargets()
	if len(targets) == 0 {
		return
	}

	header := pushHeader(req.Header)
	for _, target := range targets {
		ref, err := url.Parse(target)
		if err != nil {
			continue
		}
		abs := req.URL.ResolveReference(ref)
		if abs.Host != req.URL.Host {
			continue
		}

		err = pusher.Push(abs.RequestURI(), &nethttp.PushOptions{Method: MethodGet, Header: header})
		if errors.Is(err, nethttp.ErrNotSupported) {
			return
		}
		if err != nil {
			logger.Debug("push: promise refused", "target", target, "error", err)
		}
	}
}

func pushHeader(h Header) nethttp.Header {
	header := make(nethttp.Header, h.Len())
	for _, f := range h.fields {
		if strings.HasPrefix(f.Name, ":") || matchesAny(f.Name, conditionalHeaders) || matchesAny(f.Name, unpushableHeaders) {
			continue
		}
		header.Add(f.Name, f.Value)
	}
	return header
}

func matchesAny(name string, names []string) bool {
	for _, n := range names {
		if equalFold(n, name) {
			return true
		}
	}
	return false
}
