package main

import (
	"net/http"

	"github.com/JaimeStill/attest/internal/api"
	"github.com/JaimeStill/attest/internal/config"
	"github.com/JaimeStill/attest/internal/infrastructure"
	"github.com/JaimeStill/attest/pkg/handlers"
	"github.com/JaimeStill/attest/pkg/module"
)

// Modules holds the mounted application modules.
type Modules struct {
	API *module.Module
}

// NewModules builds every module from the shared infrastructure.
func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{API: apiModule}, nil
}

// Mount registers every module on router.
func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, health{Status: "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		systems := infra.Readiness()
		for _, ok := range systems {
			if !ok {
				handlers.RespondJSON(w, http.StatusServiceUnavailable, health{Status: "not ready", Systems: systems})
				return
			}
		}
		handlers.RespondJSON(w, http.StatusOK, health{Status: "ready", Systems: systems})
	})

	return router
}

type health struct {
	Status  string          `json:"status"`
	Systems map[string]bool `json:"systems,omitempty"`
}
