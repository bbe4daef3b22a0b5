package http

import (
	"errors"
	"net/url"
	"testing"
)

func newTestRequest(method, target string, secure, insecureOnly bool) *Request {
	u, err := url.Parse(target)
	if err != nil {
		panic(err)
	}
	return &Request{
		ClientIP:     "192.0.2.1",
		Secure:       secure,
		Protocol:     ProtocolHTTP11,
		Method:       method,
		URL:          u,
		insecureOnly: insecureOnly,
	}
}

func textAction(text string) ActionFunc {
	return func(req *Request, params []string) *ResponseBuilder {
		return NewResponseBuilder().WithStatus(StatusOK).WithText(text)
	}
}

func bodyOf(t *testing.T, res *Response) string {
	t.Helper()
	if res.Body == nil {
		return ""
	}
	return string(res.Body.(*bytesBody).Bytes())
}

func TestChainFirstMatchWins(t *testing.T) {
	chain := NewChain(
		MustRegexHandler([]string{MethodGet}, "/a/.*", textAction("first")),
		MustRegexHandler([]string{MethodGet}, "/a/b", textAction("second")),
	)

	res, err := chain.ServeRequest(newTestRequest(MethodGet, "https://example.com/a/b", true, false))
	if err != nil {
		t.Fatal(err)
	}
	if got := bodyOf(t, res); got != "first" {
		t.Errorf("body = %q, want first", got)
	}
}

func TestChainNotAccepted(t *testing.T) {
	chain := NewChain(MustRegexHandler([]string{MethodGet}, "/", textAction("root")))

	res, err := chain.ServeRequest(newTestRequest(MethodGet, "https://example.com/other", true, false))
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != StatusNotFound {
		t.Errorf("status = %d, want 404", res.Code)
	}

	chain.NotAccepted = func(req *Request, params []string) *ResponseBuilder {
		return NewResponseBuilder().WithStatus(StatusTeapot).WithNoBody()
	}
	res, _ = chain.ServeRequest(newTestRequest(MethodGet, "https://example.com/other", true, false))
	if res.Code != StatusTeapot {
		t.Errorf("status = %d, want 418", res.Code)
	}
}

func TestChainNoResponse(t *testing.T) {
	chain := NewChain(MustRegexHandler([]string{MethodGet}, "/", func(req *Request, params []string) *ResponseBuilder {
		return nil
	}))

	_, err := chain.ServeRequest(newTestRequest(MethodGet, "https://example.com/", true, false))
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("err = %v, want ErrNoResponse", err)
	}
}

func TestChainRejectsClientIP(t *testing.T) {
	chain := NewChain(MustRegexHandler([]string{MethodGet}, "/", textAction("root")))
	chain.AcceptClientIP = func(ip string) bool { return ip != "192.0.2.1" }

	res, err := chain.ServeRequest(newTestRequest(MethodGet, "https://example.com/", true, false))
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != StatusForbidden {
		t.Errorf("status = %d, want 403", res.Code)
	}
}

func TestChainInsecurePolicy(t *testing.T) {
	acme := MustRegexHandler([]string{MethodGet}, `/\.well-known/acme-challenge/(.+)`, textAction("token"))

	testCases := []struct {
		name         string
		target       string
		insecureOnly bool
		securePort   int
		status       int
		location     string
	}{
		{"plaintext only server", "http://example.com/page", true, 0, StatusOK, ""},
		{"redirect", "http://example.com/page?x=1", false, 0, StatusPermanentRedirect, "https://example.com/page?x=1"},
		{"redirect keeps port", "http://example.com:8080/page", false, 8181, StatusPermanentRedirect, "https://example.com:8181/page"},
		{"redirect default port", "http://example.com:8080/page", false, 443, StatusPermanentRedirect, "https://example.com/page"},
		{"redirect ipv6", "http://[::1]:8080/", false, 8181, StatusPermanentRedirect, "https://[::1]:8181/"},
		{"acme challenge", "http://example.com/.well-known/acme-challenge/abc", false, 0, StatusOK, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chain := NewChain(MustRegexHandler([]string{MethodGet}, "/page", textAction("page")))
			chain.Acme = acme
			chain.SecurePort = tc.securePort

			res, err := chain.ServeRequest(newTestRequest(MethodGet, tc.target, false, tc.insecureOnly))
			if err != nil {
				t.Fatal(err)
			}
			if res.Code != tc.status {
				t.Fatalf("status = %d, want %d", res.Code, tc.status)
			}
			if got := res.Header.Get(HeaderLocation); got != tc.location {
				t.Errorf("Location = %q, want %q", got, tc.location)
			}
			if tc.location != "" && res.Header.Get(HeaderStrictTransport) == "" {
				t.Error("expected HSTS on the redirect")
			}
		})
	}
}

func TestChainInsecureOverride(t *testing.T) {
	chain := NewChain(MustRegexHandler([]string{MethodGet}, "/page", textAction("page")))
	chain.AllowInsecure = func(req *Request) bool { return false }

	res, err := chain.ServeRequest(newTestRequest(MethodGet, "http://example.com/page", false, true))
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != StatusForbidden {
		t.Errorf("status = %d, want 403", res.Code)
	}
}

func TestChainDecorate(t *testing.T) {
	chain := NewChain(MustRegexHandler([]string{MethodGet}, "/", textAction("root")))
	chain.Decorate = Decorators(SecurityHeaders(), func(req *Request, b *ResponseBuilder) {
		b.WithHeader("X-Served-By", "test")
	})

	res, err := chain.ServeRequest(newTestRequest(MethodGet, "https://example.com/", true, false))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", HeaderStrictTransport, "X-Served-By"} {
		if !res.Header.Has(name) {
			t.Errorf("missing %s", name)
		}
	}
}

func TestRegexHandler(t *testing.T) {
	var got []string
	h, err := NewRegexHandler([]string{MethodGet, MethodHead}, "/files/([a-z]+)/(.*)", func(req *Request, params []string) *ResponseBuilder {
		got = params
		return NewResponseBuilder().WithStatus(StatusOK).WithNoBody()
	})
	if err != nil {
		t.Fatal(err)
	}

	u, _ := url.Parse("/files/docs/a%20b.txt")
	params := h.Match(MethodGet, u)
	if len(params) != 2 || params[0] != "docs" || params[1] != "a%20b.txt" {
		t.Fatalf("params = %q", params)
	}
	h.Handle(newTestRequest(MethodGet, "/files/docs/a%20b.txt", true, false), params)
	if len(got) != 2 {
		t.Errorf("action saw %q", got)
	}

	if h.Match(MethodPost, u) != nil {
		t.Error("expected POST not to match")
	}
	u, _ = url.Parse("/prefix/files/docs/x")
	if h.Match(MethodGet, u) != nil {
		t.Error("expected the pattern to be anchored")
	}

	if _, err := NewRegexHandler([]string{MethodGet}, "(", nil); err == nil {
		t.Error("expected an invalid pattern to fail")
	}
}
