// Package middleware holds the HTTP middleware shared by every module:
// request logging and CORS, plus the Stack that composes them.
package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Stack is an ordered list of middleware. The first entry runs outermost.
type Stack []Middleware

// Use appends mw to the stack.
func (s *Stack) Use(mw ...Middleware) {
	*s = append(*s, mw...)
}

// Apply wraps handler in every middleware of the stack.
func (s Stack) Apply(handler http.Handler) http.Handler {
	for i := len(s) - 1; i >= 0; i-- {
		handler = s[i](handler)
	}
	return handler
}
