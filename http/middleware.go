package http

import (
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"strings"
	"time"
)

const DefaultRealm = "User Visible Realm"

type Middleware func(next ActionFunc) ActionFunc

// LogMiddleware logs every handled request with its status and duration.
func LogMiddleware() Middleware {
	return func(next ActionFunc) ActionFunc {
		return func(req *Request, params []string) *ResponseBuilder {
			start := time.Now()
			b := next(req, params)

			status := 0
			if b != nil {
				status = b.Status()
			}
			logger.InfoContext(req.Context(), "request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"client", req.ClientIP,
				"duration", time.Since(start))
			return b
		}
	}
}

// BasicAuth only runs next for requests carrying one of the credentials,
// given as user to password.
func BasicAuth(realm string, credentials map[string]string) Middleware {
	if realm == "" {
		realm = DefaultRealm
	}
	challenge := `Basic realm="` + realm + `"`

	return func(next ActionFunc) ActionFunc {
		return func(req *Request, params []string) *ResponseBuilder {
			if authorized(req.Header.Get(HeaderAuthorization), credentials) {
				return next(req, params)
			}
			return NewResponseBuilder().
				WithStatus(StatusUnauthorized).
				WithHeader(HeaderWWWAuthenticate, challenge).
				WithNoBody()
		}
	}
}

func authorized(header string, credentials map[string]string) bool {
	scheme, encoded, ok := strings.Cut(header, " ")
	if !ok || !equalFold(scheme, "Basic") {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(trimOWS(encoded))
	if err != nil {
		return false
	}
	user, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	expected, ok := credentials[user]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
}

// BasicAuthHandler guards another handler with BasicAuth.
type BasicAuthHandler struct {
	next   Handler
	action ActionFunc
}

func NewBasicAuthHandler(next Handler, realm string, credentials map[string]string) *BasicAuthHandler {
	return &BasicAuthHandler{
		next:   next,
		action: BasicAuth(realm, credentials)(next.Handle),
	}
}

func (h *BasicAuthHandler) Match(method string, u *url.URL) []string {
	return h.next.Match(method, u)
}

func (h *BasicAuthHandler) Handle(req *Request, params []string) *ResponseBuilder {
	return h.action(req, params)
}

// CORS allows cross origin requests from origin, "*" for any.
func CORS(origin string, methods ...string) Middleware {
	if len(methods) == 0 {
		methods = []string{MethodGet}
	}
	allowMethods := strings.Join(methods, ", ")

	return func(next ActionFunc) ActionFunc {
		return func(req *Request, params []string) *ResponseBuilder {
			b := next(req, params)
			if b == nil {
				return nil
			}
			b.WithHeader("Access-Control-Allow-Origin", origin)
			b.WithHeader("Access-Control-Allow-Methods", allowMethods)
			b.WithHeader("Access-Control-Allow-Headers", "Content-Type, Accept")
			if origin != "*" {
				b.AddHeader(HeaderVary, "Origin")
			}
			return b
		}
	}
}

// SecurityHeaders is a Chain decorator adding the usual browser hardening
// headers. HSTS is only sent over https.
func SecurityHeaders() DecorateFunc {
	return func(req *Request, b *ResponseBuilder) {
		b.WithHeader("X-Content-Type-Options", "nosniff")
		b.WithHeader("X-Frame-Options", "DENY")
		b.WithHeader("Referrer-Policy", "strict-origin-when-cross-origin")
		if req.Secure {
			b.WithHSTS()
		}
	}
}

// Decorators runs several decorators in order.
func Decorators(decorators ...DecorateFunc) DecorateFunc {
	return func(req *Request, b *ResponseBuilder) {
		for _, decorate := range decorators {
			decorate(req, b)
		}
	}
}
