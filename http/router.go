package http

import (
	"net/url"
	"regexp"
)

// Router is an endpoint table: routes are tried in registration order and the
// first one matching method and path handles the request. A Router is a
// Handler and is usually one link of a Chain.
type Router struct {
	Routes     []Route
	Middleware []Middleware
}

func NewRouter() *Router {
	return &Router{
		Routes: make([]Route, 0),
	}
}

// GET registers action for GET and HEAD.
func (router *Router) GET(pattern string, action ActionFunc, middleware ...Middleware) {
	router.Any([]string{MethodGet, MethodHead}, pattern, action, middleware...)
}

func (router *Router) HEAD(pattern string, action ActionFunc, middleware ...Middleware) {
	router.Any([]string{MethodHead}, pattern, action, middleware...)
}

func (router *Router) POST(pattern string, action ActionFunc, middleware ...Middleware) {
	router.Any([]string{MethodPost}, pattern, action, middleware...)
}

func (router *Router) PUT(pattern string, action ActionFunc, middleware ...Middleware) {
	router.Any([]string{MethodPut}, pattern, action, middleware...)
}

func (router *Router) PATCH(pattern string, action ActionFunc, middleware ...Middleware) {
	router.Any([]string{MethodPatch}, pattern, action, middleware...)
}

func (router *Router) DELETE(pattern string, action ActionFunc, middleware ...Middleware) {
	router.Any([]string{MethodDelete}, pattern, action, middleware...)
}

func (router *Router) OPTIONS(pattern string, action ActionFunc, middleware ...Middleware) {
	router.Any([]string{MethodOptions}, pattern, action, middleware...)
}

// Any registers action for several methods. It panics when pattern is not a
// valid regular expression.
func (router *Router) Any(methods []string, pattern string, action ActionFunc, middleware ...Middleware) {
	for _, middleware := range middleware {
		action = middleware(action)
	}

	router.Routes = append(router.Routes, newRoute(methods, pattern, action))
}

// Group registers the routes added by groupFunc below the literal prefix.
// Middleware added with group.Use wraps the group's routes inside the
// middleware passed to Group.
func (router *Router) Group(prefix string, groupFunc func(group *Router), middlewareList ...Middleware) {
	group := NewRouter()

	groupFunc(group)

	for _, route := range group.Routes {
		action := route.Action
		for _, middleware := range group.Middleware {
			action = middleware(action)
		}
		for _, middleware := range middlewareList {
			action = middleware(action)
		}

		pattern := regexp.QuoteMeta(prefix) + "(?:" + route.Pattern + ")"
		router.Routes = append(router.Routes, newRoute(route.Methods, pattern, action))
	}
}

// Use adds middleware that wraps every route of the router.
func (router *Router) Use(middleware ...Middleware) {
	router.Middleware = append(router.Middleware, middleware...)
}

func (router *Router) find(method string, u *url.URL) (Route, []string, bool) {
	path := u.EscapedPath()
	for _, route := range router.Routes {
		if params := route.match(method, path); params != nil {
			return route, params, true
		}
	}
	return Route{}, nil, false
}

func (router *Router) Match(method string, u *url.URL) []string {
	_, params, ok := router.find(method, u)
	if !ok {
		return nil
	}
	return params
}

func (router *Router) Handle(req *Request, params []string) *ResponseBuilder {
	route, _, ok := router.find(req.Method, req.URL)
	action := NotFoundAction
	if ok {
		action = route.Action
	}

	for _, middleware := range router.Middleware {
		action = middleware(action)
	}
	return action(req, params)
}
