package http

import (
	"errors"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

var ErrNoResponse = errors.New("http: handler returned no response")

const acmeChallengePrefix = "/.well-known/acme-challenge/"

// Handler is one link of a Chain. Match returns the captured groups of the
// request path when the handler accepts the request and nil otherwise. Handle
// is only called after a successful Match.
type Handler interface {
	Match(method string, u *url.URL) []string
	Handle(req *Request, params []string) *ResponseBuilder
}

// ActionFunc produces the response for a matched request.
type ActionFunc func(req *Request, params []string) *ResponseBuilder

// Chain offers a request to its handlers in order. The first match produces
// the response.
type Chain struct {
	handlers []Handler

	// Acme answers ACME http-01 challenges on the plaintext port.
	Acme Handler
	// AcceptClientIP rejects clients with 403 when it returns false.
	AcceptClientIP func(ip string) bool
	// AllowInsecure decides which plaintext requests are served. By default
	// these are all of them on a plaintext-only server and ACME challenges
	// otherwise.
	AllowInsecure func(req *Request) bool
	// SecurePort is the port plaintext requests are redirected to. The
	// default https port is used when it is zero.
	SecurePort int
	// NotAccepted builds the response when no handler matches.
	NotAccepted ActionFunc
	// Decorate runs on every response before it is built.
	Decorate DecorateFunc
}

type DecorateFunc func(req *Request, b *ResponseBuilder)

func NewChain(handlers ...Handler) *Chain {
	return &Chain{handlers: handlers}
}

func (c *Chain) Add(handlers ...Handler) *Chain {
	c.handlers = append(c.handlers, handlers...)
	return c
}

func (c *Chain) Handlers() []Handler {
	return slices.Clone(c.handlers)
}

func (c *Chain) ServeRequest(req *Request) (*Response, error) {
	b := c.respond(req)
	if b == nil {
		return nil, ErrNoResponse
	}
	if c.Decorate != nil {
		c.Decorate(req, b)
	}
	return b.Build()
}

func (c *Chain) respond(req *Request) *ResponseBuilder {
	if c.AcceptClientIP != nil && !c.AcceptClientIP(req.ClientIP) {
		return NewResponseBuilder().WithStatus(StatusForbidden).WithNoBody()
	}

	if !req.Secure {
		if !c.allowInsecure(req) {
			if req.insecureOnly {
				return NewResponseBuilder().WithStatus(StatusForbidden).WithNoBody()
			}
			return redirectSecure(req, c.SecurePort)
		}
		if c.Acme != nil && isAcmeChallenge(req) {
			if params := c.Acme.Match(req.Method, req.URL); params != nil {
				return c.Acme.Handle(req, params)
			}
		}
	}

	for _, h := range c.handlers {
		if params := h.Match(req.Method, req.URL); params != nil {
			return h.Handle(req, params)
		}
	}

	if c.NotAccepted != nil {
		return c.NotAccepted(req, nil)
	}
	return NewResponseBuilder().WithStatus(StatusNotFound).WithNoBody()
}

func (c *Chain) allowInsecure(req *Request) bool {
	if c.AllowInsecure != nil {
		return c.AllowInsecure(req)
	}
	return req.insecureOnly || isAcmeChallenge(req)
}

func isAcmeChallenge(req *Request) bool {
	return req.Method == MethodGet && strings.HasPrefix(req.URL.Path, acmeChallengePrefix)
}

// redirectSecure sends plaintext requests to the same URL over https.
func redirectSecure(req *Request, port int) *ResponseBuilder {
	target := *req.URL
	target.Scheme = "https"
	target.Host = target.Hostname()
	if strings.Contains(target.Host, ":") {
		target.Host = "[" + target.Host + "]"
	}
	if port > 0 && port != 443 {
		target.Host += ":" + strconv.Itoa(port)
	}
	return NewResponseBuilder().
		WithStatus(StatusPermanentRedirect).
		WithLocation(target.String()).
		WithHSTS().
		WithNoBody()
}

// RegexHandler matches a set of methods and a path pattern. The pattern must
// match the whole escaped path; its groups are the params.
type RegexHandler struct {
	route Route
}

func NewRegexHandler(methods []string, pattern string, action ActionFunc) (*RegexHandler, error) {
	route, err := compileRoute(methods, pattern, action)
	if err != nil {
		return nil, err
	}
	return &RegexHandler{route: route}, nil
}

func MustRegexHandler(methods []string, pattern string, action ActionFunc) *RegexHandler {
	return &RegexHandler{route: newRoute(methods, pattern, action)}
}

func (h *RegexHandler) Match(method string, u *url.URL) []string {
	return h.route.match(method, u.EscapedPath())
}

func (h *RegexHandler) Handle(req *Request, params []string) *ResponseBuilder {
	return h.route.Action(req, params)
}
