package http

import (
	"context"
	"io"
	"log/slog"
	"net"
	nethttp "net/http"
	"slices"
	"strings"
	"time"

	"github.com/felixge/httpsnoop"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/net/http2"
)

// connection specific headers are not allowed in HTTP/2 responses
var hopByHopHeaders = []string{
	HeaderConnection,
	"Keep-Alive",
	"Proxy-Connection",
	HeaderTransferEncoding,
	"Upgrade",
}

// serveHTTP2 runs an HTTP/2 session on conn until the peer goes away or the
// idle timeout of the keep-alive strategy expires.
func serveHTTP2(ctx context.Context, unit *Unit, conn net.Conn, authority string) error {
	idle := unit.keepAlive().Timeout(0)
	if idle <= 0 {
		idle = time.Second
	}

	srv := &http2.Server{IdleTimeout: idle}
	adapter := &http2Adapter{unit: unit, authority: authority}

	srv.ServeConn(conn, &http2.ServeConnOpts{
		Context: ctx,
		Handler: otelhttp.NewHandler(adapter, "http2"),
		BaseConfig: &nethttp.Server{
			ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	})
	return nil
}

// http2Adapter maps the streams of an HTTP/2 session onto the handler chain.
type http2Adapter struct {
	unit      *Unit
	authority string
}

func (a *http2Adapter) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	m := httpsnoop.CaptureMetrics(nethttp.HandlerFunc(a.serve), w, r)
	requestCount.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("network.protocol.version", "2"),
		attribute.Int("http.response.status_code", m.Code),
	))
}

func (a *http2Adapter) serve(w nethttp.ResponseWriter, r *nethttp.Request) {
	req, res := a.readRequest(r)
	if res == nil {
		var err error
		res, err = a.handle(req)
		if err != nil {
			logger.Warn("http2: aborting stream", "path", r.URL.Path, "error", err)
			panic(nethttp.ErrAbortHandler)
		}
	}

	if req != nil {
		push(w, req, res)
	}
	if err := writeHTTP2(w, res, r.Method == MethodHead); err != nil && !quietError(err) {
		logger.Debug("http2: writing response failed", "path", r.URL.Path, "error", err)
	}
}

func (a *http2Adapter) handle(req *Request) (res *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == nethttp.ErrAbortHandler {
				panic(r)
			}
			logger.Error("http2: handler panicked", "path", req.URL.Path, "panic", r)
			panic(nethttp.ErrAbortHandler)
		}
	}()
	return a.unit.Handler.ServeRequest(req)
}

// readRequest converts a stream into a Request. A non-nil response answers
// the stream without running the handlers.
func (a *http2Adapter) readRequest(r *nethttp.Request) (*Request, *Response) {
	if r.Method == "" || r.URL == nil {
		return nil, noBodyResponse(StatusLineBadRequest, false)
	}

	u := *r.URL
	if r.TLS != nil {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Host = r.Host
	if u.Host == "" {
		u.Host = a.authority
	}

	keys := make([]string, 0, len(r.Header))
	for key := range r.Header {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	header := Header{fields: make([]Field, 0, len(keys))}
	for _, key := range keys {
		for _, value := range r.Header[key] {
			header.Add(key, value)
		}
	}

	req := &Request{
		ClientIP:     hostOnly(r.RemoteAddr),
		Secure:       r.TLS != nil,
		HTTP2:        true,
		Protocol:     ProtocolHTTP2,
		Method:       r.Method,
		URL:          &u,
		Header:       header,
		insecureOnly: a.unit.InsecureOnly,
		ctx:          r.Context(),
	}

	limit := a.unit.maxRequestSize()
	if r.ContentLength > limit {
		return req, noBodyResponse(StatusLinePayloadTooLarge, false)
	}
	if !permitsBody(r.Method) || r.ContentLength == 0 || r.Body == nil {
		return req, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return req, noBodyResponse(StatusLineBadRequest, false)
	}
	if int64(len(body)) > limit {
		return req, noBodyResponse(StatusLinePayloadTooLarge, false)
	}
	if len(body) > 0 {
		req.Body = body
	}
	return req, nil
}

func writeHTTP2(w nethttp.ResponseWriter, res *Response, head bool) error {
	h := w.Header()
	for _, f := range res.Header.fields {
		if matchesAny(f.Name, hopByHopHeaders) {
			continue
		}
		h.Add(f.Name, f.Value)
	}
	w.WriteHeader(res.Code)

	if head || res.Body == nil {
		return nil
	}
	return res.Body.WriteBody(&http2BodyWriter{w: w, rc: nethttp.NewResponseController(w)})
}

type http2BodyWriter struct {
	w  io.Writer
	rc *nethttp.ResponseController
}

func (bw *http2BodyWriter) Write(p []byte) (int, error) {
	return bw.w.Write(p)
}

func (bw *http2BodyWriter) Flush() error {
	return bw.rc.Flush()
}

func hostOnly(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return host
}
