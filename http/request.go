package http

import (
	"context"
	"net"
	"net/url"
)

// Request is one parsed request. It is built by the protocol engine and is
// read-only to handlers.
type Request struct {
	ClientIP string
	Secure   bool
	HTTP2    bool
	Protocol string
	Method   string
	URL      *url.URL
	Header   Header
	Body     []byte

	insecureOnly bool
	ctx          context.Context
}

// Context returns the request context. It is cancelled when the connection
// serving the request goes away.
func (req *Request) Context() context.Context {
	if req.ctx != nil {
		return req.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of req using ctx.
func (req *Request) WithContext(ctx context.Context) *Request {
	clone := *req
	clone.ctx = ctx
	return &clone
}

// KeepAlive reports whether the client asked to keep the connection open.
func (req *Request) KeepAlive() bool {
	connection := req.Header.Get(HeaderConnection)
	switch req.Protocol {
	case ProtocolHTTP10:
		return containsToken(connection, keepAlive)
	default:
		return !containsToken(connection, connectionClose)
	}
}

// permitsBody mirrors the methods that may carry a request body.
func permitsBody(method string) bool {
	switch method {
	case MethodGet, MethodHead, MethodTrace, MethodConnect:
		return false
	}
	return true
}

// buildURL rebuilds the absolute request URL from the request target and host.
func buildURL(target, host string, secure bool) (*url.URL, error) {
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, err
	}

	if secure {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	if u.Host == "" {
		u.Host = host
	}
	return u, nil
}

func clientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
