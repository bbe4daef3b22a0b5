package http

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http/httpguts"
)

// http1Conn serves HTTP/1.x requests on one connection, one at a time.
type http1Conn struct {
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
	unit *Unit
}

func serveHTTP1(ctx context.Context, unit *Unit, conn net.Conn) error {
	connCtx := acquireConnCtx(conn)
	defer releaseConnCtx(connCtx)

	c := http1Conn{
		conn: conn,
		br:   connCtx.ConnReader,
		bw:   connCtx.ConnWriter,
		unit: unit,
	}
	return c.serve(ctx)
}

func (c *http1Conn) serve(ctx context.Context) error {
	for reuse := 0; useAgain(c.conn, reuse, c.unit.keepAlive()); reuse++ {
		req, res, err := c.readRequest(ctx)
		if err != nil {
			return err
		}

		if res == nil {
			res, err = c.handle(req)
			if err != nil {
				return err
			}
		}

		head := req != nil && req.Method == MethodHead
		closeAfter, err := res.write(c.bw, head)
		if err != nil {
			return err
		}
		if closeAfter || res.closes() {
			return nil
		}
	}
	return nil
}

func (c *http1Conn) handle(req *Request) (*Response, error) {
	ctx, span := tracer.Start(req.Context(), req.Method+" "+req.URL.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
			attribute.String("client.address", req.ClientIP),
		))
	defer span.End()

	res, err := c.unit.Handler.ServeRequest(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", res.Code))
	requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("network.protocol.version", "1.1"),
		attribute.Int("http.response.status_code", res.Code),
	))

	switch {
	case !req.KeepAlive():
		res.Header.Set(HeaderConnection, connectionClose)
	case req.Protocol == ProtocolHTTP10:
		res.Header.Set(HeaderConnection, keepAlive)
	}
	return res, nil
}

// readRequest reads one request. A non-nil response is a protocol level
// answer that is sent instead of running the handlers. An error means the
// connection is gone or timed out.
func (c *http1Conn) readRequest(ctx context.Context) (*Request, *Response, error) {
	available := c.unit.maxRequestSize()

	line, err := readLine(c.br, MaxRequestLineSize)
	switch {
	case errors.Is(err, errTooLarge), errors.Is(err, errMalformed):
		return nil, noBodyResponse(StatusLineBadRequest, true), nil
	case err != nil:
		return nil, nil, err
	}
	if len(line) < 3 {
		return nil, noBodyResponse(StatusLineBadRequest, true), nil
	}
	available -= int64(len(line)) + 2

	method, rest, ok := strings.Cut(string(line), " ")
	if !ok || method == "" {
		return nil, noBodyResponse(StatusLineBadRequest, true), nil
	}
	target, proto, ok := strings.Cut(rest, " ")
	if !ok || target == "" || !strings.HasPrefix(proto, "HTTP/1.") {
		return nil, noBodyResponse(StatusLineBadRequest, true), nil
	}
	if proto != ProtocolHTTP10 {
		proto = ProtocolHTTP11
	}

	header := Header{fields: make([]Field, 0, 16)}
	for {
		limit := available - 2
		if limit < 0 {
			return nil, noBodyResponse(StatusLinePayloadTooLarge, true), nil
		}
		if limit > DefaultReadBufferSize {
			limit = DefaultReadBufferSize
		}

		line, err := readLine(c.br, int(limit))
		switch {
		case errors.Is(err, errTooLarge):
			return nil, noBodyResponse(StatusLinePayloadTooLarge, true), nil
		case errors.Is(err, errMalformed):
			return nil, noBodyResponse(StatusLineBadRequest, true), nil
		case err != nil:
			return nil, nil, err
		}
		available -= int64(len(line)) + 2

		if len(line) == 0 {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			return nil, noBodyResponse(StatusLineBadRequest, true), nil
		}

		name, value, ok := bytes.Cut(line, []byte{':'})
		if !ok {
			return nil, noBodyResponse(StatusLineBadRequest, true), nil
		}
		key, val := string(name), string(bytes.TrimSpace(value))
		if !httpguts.ValidHeaderFieldName(key) || !httpguts.ValidHeaderFieldValue(val) {
			return nil, noBodyResponse(StatusLineBadRequest, true), nil
		}
		header.Add(key, val)
	}

	host := header.Get(HeaderHost)
	if host == "" || !httpguts.ValidHostHeader(host) {
		return nil, noBodyResponse(StatusLineBadRequest, true), nil
	}
	u, err := buildURL(target, host, c.unit.Secure)
	if err != nil {
		return nil, noBodyResponse(StatusLineBadRequest, true), nil
	}

	req := &Request{
		ClientIP:     clientIP(c.conn.RemoteAddr()),
		Secure:       c.unit.Secure,
		Protocol:     proto,
		Method:       method,
		URL:          u,
		Header:       header,
		insecureOnly: c.unit.InsecureOnly,
		ctx:          ctx,
	}

	body, res, err := c.readBody(req, available)
	if err != nil || res != nil {
		return req, res, err
	}
	if permitsBody(method) && len(body) > 0 {
		req.Body = body
	}
	return req, nil, nil
}

func (c *http1Conn) readBody(req *Request, available int64) ([]byte, *Response, error) {
	expect := equalFold(req.Header.Get(HeaderExpect), "100-continue")

	chunked := false
	var length int64
	if te, ok := req.Header.Lookup(HeaderTransferEncoding); ok {
		if !containsToken(te, chunkedEncoding) {
			return nil, noBodyResponse(StatusLineBadRequest, true), nil
		}
		chunked = true
	} else if values := req.Header.Values(HeaderContentLength); len(values) > 0 {
		for _, v := range values[1:] {
			if v != values[0] {
				return nil, noBodyResponse(StatusLineBadRequest, true), nil
			}
		}
		if values[0] == "-1" {
			chunked = true
		} else {
			n, err := atoi([]byte(values[0]))
			if err != nil {
				return nil, noBodyResponse(StatusLineBadRequest, true), nil
			}
			if n > available {
				return nil, noBodyResponse(StatusLinePayloadTooLarge, true), nil
			}
			length = n
		}
	}

	if !chunked && length == 0 {
		return nil, nil, nil
	}

	if expect {
		if _, err := c.bw.Write(continueLine); err != nil {
			return nil, nil, err
		}
		if err := c.bw.Flush(); err != nil {
			return nil, nil, err
		}
	}

	if chunked {
		body, err := readChunked(c.br, available)
		switch {
		case errors.Is(err, errMalformed):
			return nil, noBodyResponse(StatusLineBadRequest, true), nil
		case errors.Is(err, errTooLarge):
			return nil, noBodyResponse(StatusLinePayloadTooLarge, true), nil
		case err != nil:
			return nil, nil, err
		}
		return body, nil, nil
	}

	if !permitsBody(req.Method) {
		_, err := io.CopyN(io.Discard, c.br, length)
		return nil, nil, err
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.br, body); err != nil {
		return nil, nil, err
	}
	return body, nil, nil
}

// quietError reports whether err is an ordinary end of a connection.
func quietError(err error) bool {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
