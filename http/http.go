package http

import "time"

const (
	DefaultReadBufferSize  = 64 * 1024
	DefaultWriteBufferSize = 64 * 1024
	ChannelBufferSize      = 2000

	DefaultMaxRequestSize = 64 * 1024
	MaxRequestLineSize    = 4096
	maxChunkSizeLineSize  = 256

	DefaultPort       = 8080
	DefaultSecurePort = 8181

	DefaultShutdownGrace    = 15 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

const name = "github.com/freekieb7/ember/http"

const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
)

const (
	HeaderAcceptEncoding   = "Accept-Encoding"
	HeaderAcceptRanges     = "Accept-Ranges"
	HeaderAuthorization    = "Authorization"
	HeaderCacheControl     = "Cache-Control"
	HeaderConnection       = "Connection"
	HeaderContentEncoding  = "Content-Encoding"
	HeaderContentLength    = "Content-Length"
	HeaderContentRange     = "Content-Range"
	HeaderContentType      = "Content-Type"
	HeaderETag             = "ETag"
	HeaderExpect           = "Expect"
	HeaderHost             = "Host"
	HeaderIfMatch          = "If-Match"
	HeaderIfModifiedSince  = "If-Modified-Since"
	HeaderIfNoneMatch      = "If-None-Match"
	HeaderIfRange          = "If-Range"
	HeaderIfUnmodSince     = "If-Unmodified-Since"
	HeaderLink             = "Link"
	HeaderLocation         = "Location"
	HeaderRange            = "Range"
	HeaderStrictTransport  = "Strict-Transport-Security"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderVary             = "Vary"
	HeaderWWWAuthenticate  = "WWW-Authenticate"
)

var (
	crlf            = []byte("\r\n")
	colonSpace      = []byte(": ")
	continueLine    = []byte("HTTP/1.1 100 Continue\r\n\r\n")
	chunkedEncoding = "chunked"
	connectionClose = "close"
	keepAlive       = "keep-alive"
)
