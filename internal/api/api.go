// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/infrastructure"
	"github.com/JaimeStill/creditread/pkg/middleware"
	"github.com/JaimeStill/creditread/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware,
// and starts the domain systems on the infrastructure lifecycle.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure, opts Options) (*module.Module, *Domain, error) {
	runtime := NewRuntime(cfg, infra)
	domain, err := NewDomain(cfg, runtime, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := domain.Start(infra.Lifecycle); err != nil {
		return nil, nil, err
	}

	m, err := newModule(cfg, runtime, domain)
	if err != nil {
		return nil, nil, err
	}
	return m, domain, nil
}

func newModule(cfg *config.Config, runtime *Runtime, domain *Domain) (*module.Module, error) {
	mux := http.NewServeMux()
	endpoints := registerRoutes(mux, domain, runtime, cfg.Version)
	runtime.Logger.Info("routes registered", "count", len(endpoints))

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(
		middleware.Recover(runtime.Logger),
		middleware.RequestID(),
		middleware.CORS(&cfg.API.CORS),
		middleware.Logger(runtime.Logger),
	)
	return m, nil
}
