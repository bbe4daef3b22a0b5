package http

import (
	"regexp"
	"slices"
)

// Route binds a path pattern to an action. Pattern is a regular expression
// that has to match the whole escaped path.
type Route struct {
	Methods []string
	Pattern string
	Action  ActionFunc

	re *regexp.Regexp
}

func compileRoute(methods []string, pattern string, action ActionFunc) (Route, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return Route{}, err
	}
	return Route{Methods: methods, Pattern: pattern, Action: action, re: re}, nil
}

func newRoute(methods []string, pattern string, action ActionFunc) Route {
	route, err := compileRoute(methods, pattern, action)
	if err != nil {
		panic(err)
	}
	return route
}

func (route Route) match(method, path string) []string {
	if !slices.Contains(route.Methods, method) {
		return nil
	}
	m := route.re.FindStringSubmatch(path)
	if m == nil {
		return nil
	}
	return m[1:]
}

var NotFoundAction ActionFunc = func(req *Request, params []string) *ResponseBuilder {
	return NewResponseBuilder().WithStatus(StatusNotFound).WithNoBody()
}
