package api

import (
	"net/http"

	"github.com/JaimeStill/creditread/internal/deals"
	"github.com/JaimeStill/creditread/pkg/handlers"
	"github.com/JaimeStill/creditread/pkg/routes"
)

// index describes the module: its version and registered endpoints.
type index struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints []routes.Endpoint `json:"endpoints"`
}

func registerRoutes(mux *http.ServeMux, domain *Domain, runtime *Runtime, version string) []routes.Endpoint {
	endpoints := routes.Register(
		mux,
		domain.Pipeline.Handler(runtime.MaxUploadSize).Routes(),
		deals.NewHandler(domain.Deals, runtime.Logger).Routes(),
	)

	body := index{Name: "creditread", Version: version, Endpoints: endpoints}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, body)
	})

	return endpoints
}
