package static

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/freekieb7/ember/filesystem"
	"github.com/freekieb7/ember/http"
)

var DefaultIndexNames = []string{"index.html", "index.htm"}

// FileHandler serves the files below a root directory. The last group of its
// pattern captures the path relative to the root.
type FileHandler struct {
	fs    filesystem.Filesystem
	match *http.RegexHandler

	IndexNames        []string
	AllowedMediaTypes map[string]bool
	Policy            func(mediaType string) Policy

	cache *Cache
}

// NewFileHandler serves every GET and HEAD request from fs.
func NewFileHandler(fs filesystem.Filesystem) *FileHandler {
	return NewFileHandlerWithPattern("(.*)", fs)
}

// NewFileHandlerWithPattern only serves requests whose path matches pattern,
// for instance "/assets/(.*)".
func NewFileHandlerWithPattern(pattern string, fs filesystem.Filesystem) *FileHandler {
	h := &FileHandler{
		fs:                fs,
		IndexNames:        slices.Clone(DefaultIndexNames),
		AllowedMediaTypes: DefaultAllowedMediaTypes(),
		Policy:            PolicyFor,
	}
	h.match = http.MustRegexHandler([]string{http.MethodGet, http.MethodHead}, pattern, h.Handle)
	return h
}

// WithCache keeps payloads in c.
func (h *FileHandler) WithCache(c *Cache) *FileHandler {
	h.cache = c
	return h
}

func (h *FileHandler) Cache() *Cache {
	return h.cache
}

func (h *FileHandler) Filesystem() filesystem.Filesystem {
	return h.fs
}

func (h *FileHandler) Match(method string, u *url.URL) []string {
	return h.match.Match(method, u)
}

func (h *FileHandler) Handle(req *http.Request, params []string) *http.ResponseBuilder {
	if len(params) == 0 {
		return status(http.StatusInternalServerError)
	}

	requested, err := url.PathUnescape(params[len(params)-1])
	if err != nil {
		return status(http.StatusBadRequest)
	}
	rel, err := filesystem.Clean(requested)
	if err != nil {
		return status(http.StatusNotFound)
	}

	info, err := h.fs.Stat(rel)
	if err != nil {
		return h.statError(err)
	}

	if info.IsDir() {
		index, ok := h.index(rel)
		if requested != "" && !strings.HasSuffix(requested, "/") {
			if !ok {
				return status(http.StatusForbidden)
			}
			target := *req.URL
			target.Path += "/"
			target.RawPath = ""
			return status(http.StatusMovedPermanently).WithLocation(target.String())
		}
		if !ok {
			return status(http.StatusNotFound)
		}
		rel = index
		if info, err = h.fs.Stat(rel); err != nil {
			return h.statError(err)
		}
	} else if h.isIndexFile(rel) {
		target := req.URL.ResolveReference(&url.URL{Path: "./"})
		return status(http.StatusMovedPermanently).WithLocation(target.String())
	}

	if !info.Mode().IsRegular() {
		return status(http.StatusNotFound)
	}

	mediaType := MediaType(rel)
	if mediaType == "" {
		return status(http.StatusNotFound)
	}
	if !h.AllowedMediaTypes[mediaType] {
		return status(http.StatusForbidden)
	}

	etag := ETag(rel, info.ModTime())
	if value, ok := req.Header.Lookup(http.HeaderIfNoneMatch); ok && MatchETag(value, etag) {
		return http.NewResponseBuilder().WithStatus(http.StatusNotModified).WithETag(etag)
	}

	policy := h.Policy(mediaType)
	gzip := policy.Compress && acceptsGzip(req.Header.Get(http.HeaderAcceptEncoding))

	b := http.NewResponseBuilder()
	switch policy.MaxAge {
	case -1:
		b.WithNoStore()
	case 0:
		b.WithNoCache(etag)
	default:
		b.WithETag(etag).WithMaxAge(policy.MaxAge, policy.Immutable)
	}
	if policy.Compress {
		b.WithHeader(http.HeaderVary, http.HeaderAcceptEncoding)
	}

	f := file{rel: rel, size: info.Size(), etag: etag, contentType: ContentType(mediaType), policy: policy}

	if policy.Ranges {
		b.WithHeader(http.HeaderAcceptRanges, bytesUnit)
		if value, ok := req.Header.Lookup(http.HeaderRange); ok {
			return h.serveRanges(req, b, f, value)
		}
	}
	return h.serveWhole(req, b, f, gzip)
}

// file is a resolved, servable file.
type file struct {
	rel         string
	size        int64
	etag        string
	contentType string
	policy      Policy
}

func (h *FileHandler) serveWhole(req *http.Request, b *http.ResponseBuilder, f file, gzip bool) *http.ResponseBuilder {
	b.WithStatus(http.StatusOK)

	if !gzip && h.cache == nil {
		if req.Method == http.MethodHead {
			return b.WithContentType(f.contentType).WithContentLength(f.size)
		}
		fd, err := h.fs.Open(f.rel)
		if err != nil {
			return h.statError(err)
		}
		return b.WithBody(http.ReaderBody(f.contentType, fd, f.size))
	}

	payload, compressed, err := h.payload(f, gzip)
	if err != nil {
		return h.statError(err)
	}
	if compressed {
		b.WithHeader(http.HeaderContentEncoding, encodingGzip)
	}
	return b.WithBytes(f.contentType, payload)
}

func (h *FileHandler) serveRanges(req *http.Request, b *http.ResponseBuilder, f file, value string) *http.ResponseBuilder {
	if !strings.HasPrefix(value, bytesUnit) {
		return status(http.StatusBadRequest)
	}
	if match, ok := req.Header.Lookup(http.HeaderIfMatch); ok && !MatchETag(match, f.etag) {
		return b.WithStatus(http.StatusRangeNotSatisfiable).WithNoBody()
	}
	if ifRange, ok := req.Header.Lookup(http.HeaderIfRange); ok && !MatchETag(ifRange, f.etag) {
		return h.serveWhole(req, b, f, false)
	}

	ranges, err := ParseRange(value, f.size)
	switch {
	case errors.Is(err, ErrRangeUnsatisfiable):
		return status(http.StatusRangeNotSatisfiable)
	case err != nil:
		return status(http.StatusBadRequest)
	}

	src, err := h.source(f)
	if err != nil {
		return h.statError(err)
	}

	if req.Method == http.MethodHead {
		// the body is never written
		defer src.Close()
	}

	b.WithStatus(http.StatusPartialContent)
	if len(ranges) == 1 {
		return b.WithHeader(http.HeaderContentRange, ranges[0].ContentRange(f.size)).
			WithBody(src.section(f.contentType, ranges[0]))
	}
	return b.WithBody(newMultipartBody(f.contentType, src, ranges))
}

// payload reads the whole file, through the cache when there is one. The
// cache keeps compressible files gzipped.
func (h *FileHandler) payload(f file, gzip bool) ([]byte, bool, error) {
	if h.cache != nil {
		return h.cache.Fetch(f.rel, f.etag, gzip, h.loader(f))
	}

	data, err := h.fs.ReadFile(f.rel)
	if err != nil {
		return nil, false, err
	}
	if !gzip {
		return data, false, nil
	}
	compressed, err := Compress(data)
	if err != nil {
		return nil, false, err
	}
	return compressed, true, nil
}

func (h *FileHandler) loader(f file) Loader {
	return func() ([]byte, bool, error) {
		data, err := h.fs.ReadFile(f.rel)
		if err != nil {
			return nil, false, err
		}
		if !f.policy.Compress {
			return data, false, nil
		}
		compressed, err := Compress(data)
		if err != nil {
			return nil, false, err
		}
		return compressed, true, nil
	}
}

// source opens the identity encoded payload for cutting ranges.
func (h *FileHandler) source(f file) (source, error) {
	if h.cache != nil {
		data, _, err := h.cache.Fetch(f.rel, f.etag, false, h.loader(f))
		if err != nil {
			return source{}, err
		}
		return source{r: bytes.NewReader(data), size: int64(len(data))}, nil
	}

	fd, err := h.fs.Open(f.rel)
	if err != nil {
		return source{}, err
	}
	return source{r: fd, size: f.size, closer: fd}, nil
}

// index returns the first index file of dir.
func (h *FileHandler) index(dir string) (string, bool) {
	for _, name := range h.IndexNames {
		candidate := path.Join(dir, name)
		if ok, err := h.fs.IsFile(candidate); err == nil && ok {
			return candidate, true
		}
	}
	return "", false
}

// isIndexFile reports whether rel is the index its directory would serve.
func (h *FileHandler) isIndexFile(rel string) bool {
	if !slices.Contains(h.IndexNames, path.Base(rel)) {
		return false
	}
	index, ok := h.index(path.Dir(rel))
	return ok && index == rel
}

func (h *FileHandler) statError(err error) *http.ResponseBuilder {
	switch {
	case errors.Is(err, filesystem.ErrFileNotFound), errors.Is(err, filesystem.ErrInvalidPath),
		errors.Is(err, os.ErrNotExist), errors.Is(err, io.EOF):
		return status(http.StatusNotFound)
	case errors.Is(err, os.ErrPermission):
		return status(http.StatusForbidden)
	default:
		logger.Error("file handler: reading file failed", "error", err)
		return status(http.StatusInternalServerError)
	}
}

func status(code int) *http.ResponseBuilder {
	return http.NewResponseBuilder().WithStatus(code).WithNoBody()
}
