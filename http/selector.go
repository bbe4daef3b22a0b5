package http

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var errNoHttps = errors.New("http: secure connection without TLS configuration")

// serveSecure sniffs the ClientHello, completes the handshake with the
// context selected by SNI and hands the session to the engine agreed on
// through ALPN.
func (u *Unit) serveSecure(ctx context.Context) error {
	if u.Https == nil {
		return errNoHttps
	}

	deadline := time.Now().Add(DefaultHandshakeTimeout)
	u.Conn.SetDeadline(deadline)

	hello, err := ReadHandshake(u.Conn)
	if err != nil {
		return err
	}

	conn := tls.Server(NewReplayConn(u.Conn, hello.Bytes), u.Https.ConfigFor(hello.Hostname))

	handshakeCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		handshakeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("tls.server_name", hello.Hostname)))
		logger.Warn("selector: tls handshake failed",
			"remote", u.Conn.RemoteAddr().String(),
			"hostname", hello.Hostname,
			"offered_ciphers", cipherSuiteNames(hello.CipherSuites),
			"error", err)
		return nil
	}
	u.Conn.SetDeadline(time.Time{})

	if conn.ConnectionState().NegotiatedProtocol == "h2" && u.Https.HTTP2() {
		return serveHTTP2(ctx, u, conn, u.authority(hello.Hostname))
	}
	return serveHTTP1(ctx, u, conn)
}

// authority is the host used for HTTP/2 requests that carry none.
func (u *Unit) authority(sni string) string {
	switch {
	case sni != "":
		return sni
	case u.Hostname != "":
		return u.Hostname
	default:
		return "localhost"
	}
}

func cipherSuiteNames(ids []uint16) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, tls.CipherSuiteName(id))
	}
	return names
}
