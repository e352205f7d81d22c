// Package module mounts self-contained HTTP modules under single-segment
// prefixes of one Router.
package module

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/attest/pkg/middleware"
)

// Module serves every request below its prefix. The inner router sees the
// path with the prefix removed.
type Module struct {
	prefix string
	router http.Handler
	stack  middleware.Stack
}

// New creates a Module for a single-segment prefix such as "/api".
// It panics on a malformed prefix, which is a wiring error.
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{prefix: prefix, router: router}
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use adds middleware that wraps only this module.
func (m *Module) Use(mw ...middleware.Middleware) {
	m.stack.Use(mw...)
}

// Handler returns the inner router wrapped with the module middleware.
func (m *Module) Handler() http.Handler {
	return m.stack.Apply(m.router)
}

// Serve dispatches req to the inner router with the prefix stripped.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	inner := req.Clone(req.Context())
	inner.URL.Path = strings.TrimPrefix(req.URL.Path, m.prefix)
	if inner.URL.Path == "" {
		inner.URL.Path = "/"
	}
	inner.URL.RawPath = ""
	m.Handler().ServeHTTP(w, inner)
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case prefix[0] != '/':
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case strings.Contains(prefix[1:], "/") || len(prefix) == 1:
		return fmt.Errorf("module prefix must be a single path segment: %s", prefix)
	}
	return nil
}
