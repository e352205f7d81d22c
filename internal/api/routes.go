package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/attest/internal/config"
	"github.com/JaimeStill/attest/pkg/openapi"
	"github.com/JaimeStill/attest/pkg/routes"
)

// Groups returns the route groups of every domain.
func Groups(domain *Domain, runtime *Runtime) []routes.Group {
	return []routes.Group{
		domain.Frameworks.Handler().Routes(),
		domain.Documents.Handler(runtime.MaxUploadSize).Routes(),
		domain.Prompts.Handler().Routes(),
		domain.Analyses.Handler(domain.Engine).Routes(),
	}
}

func registerRoutes(mux *http.ServeMux, groups []routes.Group, cfg *config.Config) error {
	routes.Register(mux, groups...)

	spec := cfg.API.OpenAPI.Spec(cfg.Version, cfg.API.BasePath)
	routes.Describe(spec, groups...)

	specBytes, err := spec.Bytes()
	if err != nil {
		return fmt.Errorf("marshal openapi spec: %w", err)
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(specBytes))
	return nil
}
