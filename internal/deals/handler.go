package deals

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/creditread/pkg/handlers"
	"github.com/JaimeStill/creditread/pkg/routes"
)

// Handler provides HTTP endpoints for deals.
type Handler struct {
	summarizer *Summarizer
	logger     *slog.Logger
}

func NewHandler(s *Summarizer, logger *slog.Logger) *Handler {
	return &Handler{summarizer: s, logger: logger.With("handler", "deals")}
}

// Routes returns the route group definition for deal endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/deals",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/summary", Handler: h.Summary},
		},
	}
}

// Summary returns the cross-bureau summary of a deal.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summarizer.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoReports) {
			status = http.StatusNotFound
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, summary)
}
