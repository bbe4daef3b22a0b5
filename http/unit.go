package http

import (
	"context"
	"net"
	"runtime/debug"
)

// RequestHandler turns a parsed request into a response. A returned error
// aborts the connection without a response.
type RequestHandler interface {
	ServeRequest(req *Request) (*Response, error)
}

type RequestHandlerFunc func(req *Request) (*Response, error)

func (f RequestHandlerFunc) ServeRequest(req *Request) (*Response, error) {
	return f(req)
}

// Unit is one accepted connection together with everything needed to serve
// it. Dispatchers run Serve.
type Unit struct {
	Conn net.Conn

	// Secure units start with a TLS handshake.
	Secure bool
	// InsecureOnly is set when the server has no secure listener.
	InsecureOnly bool
	// H2C serves a plaintext connection that opened with the HTTP/2 preface.
	H2C bool

	Https    *Https
	Hostname string

	MaxRequestSize int64
	KeepAlive      KeepAliveStrategy
	Handler        RequestHandler
}

// Serve runs the protocol selector and the selected engine. The connection
// is always closed on return.
func (u *Unit) Serve(ctx context.Context) {
	defer u.Conn.Close()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("unit: panic serving connection",
				"remote", u.Conn.RemoteAddr().String(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	var err error
	switch {
	case u.Secure:
		err = u.serveSecure(ctx)
	case u.H2C:
		err = serveHTTP2(ctx, u, u.Conn, u.authority(""))
	default:
		err = serveHTTP1(ctx, u, u.Conn)
	}

	if !quietError(err) {
		logger.Warn("unit: connection closed with error", "remote", u.Conn.RemoteAddr().String(), "error", err)
	}
}

func (u *Unit) maxRequestSize() int64 {
	if u.MaxRequestSize <= 0 {
		return DefaultMaxRequestSize
	}
	return u.MaxRequestSize
}

func (u *Unit) keepAlive() KeepAliveStrategy {
	if u.KeepAlive == nil {
		return DefaultKeepAlive
	}
	return u.KeepAlive
}
