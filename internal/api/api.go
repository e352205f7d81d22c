// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JaimeStill/attest/internal/config"
	"github.com/JaimeStill/attest/internal/infrastructure"
	"github.com/JaimeStill/attest/pkg/middleware"
	"github.com/JaimeStill/attest/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime, err := NewRuntime(cfg, infra)
	if err != nil {
		return nil, err
	}

	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, Groups(domain, runtime), cfg); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
