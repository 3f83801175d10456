package main

import (
	"net/http"

	"github.com/JaimeStill/creditread/internal/api"
	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/infrastructure"
	"github.com/JaimeStill/creditread/pkg/handlers"
	"github.com/JaimeStill/creditread/pkg/module"
)

// Modules holds the mounted HTTP modules and the domain behind them.
type Modules struct {
	API    *module.Module
	Domain *api.Domain
}

// NewModules builds every module on top of infra.
func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, domain, err := api.NewModule(cfg, infra, api.Options{})
	if err != nil {
		return nil, err
	}

	return &Modules{
		API:    apiModule,
		Domain: domain,
	}, nil
}

// Mount registers the modules on router.
func (m *Modules) Mount(router *module.Router) error {
	return router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		if infra.Database != nil {
			if err := infra.Database.Check(r.Context()); err != nil {
				handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	return router
}
