// Package middleware provides the HTTP middleware used by the API module:
// request ids, panic recovery, CORS, and access logging.
package middleware

import "net/http"

// Func wraps a handler.
type Func func(http.Handler) http.Handler

// Stack is an ordered list of middleware. The first added runs outermost.
type Stack struct {
	fns []Func
}

// New creates an empty Stack.
func New() *Stack {
	return &Stack{}
}

// Use appends middleware to the stack.
func (s *Stack) Use(fns ...func(http.Handler) http.Handler) {
	for _, fn := range fns {
		s.fns = append(s.fns, fn)
	}
}

// Len reports how many middleware are registered.
func (s *Stack) Len() int {
	return len(s.fns)
}

// Apply wraps handler with every middleware in the stack.
func (s *Stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.fns) - 1; i >= 0; i-- {
		handler = s.fns[i](handler)
	}
	return handler
}
