package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/JaimeStill/creditread/internal/export"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/sources"
	"github.com/JaimeStill/creditread/pkg/handlers"
	"github.com/JaimeStill/creditread/pkg/pagination"
	"github.com/JaimeStill/creditread/pkg/routes"
)

// Handler provides HTTP endpoints for runs.
type Handler struct {
	sys           System
	sources       *sources.Store
	exporter      *export.Exporter
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	runs.Filters
}

// NewHandler creates a Handler with the given system, source store,
// pagination config, and upload size limit.
func NewHandler(
	sys System,
	src *sources.Store,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		sources:       src,
		exporter:      export.New(sys, pagination.MaxPageSize, logger),
		logger:        logger.With("handler", "runs"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for run endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Submit},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/stats", Handler: h.Stats},
			{Method: "GET", Pattern: "/export", Handler: h.Export},
			{Method: "GET", Pattern: "/{id}", Handler: h.Status},
			{Method: "GET", Pattern: "/{id}/source", Handler: h.Source},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
		},
	}
}

// Submit accepts a multipart upload with a PDF "file" and optional
// run_id, deal_id, and callback_url fields. The run is processed
// asynchronously; poll Status for the outcome.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadSize {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, sources.ErrFileTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, sources.ErrFileTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidUpload, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: missing file", ErrInvalidUpload))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidUpload, err))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if err := sources.Accept(header.Filename, contentType, data); err != nil {
		handlers.RespondError(w, h.logger, sources.MapHTTPStatus(err), err)
		return
	}

	var retry bool
	if v := r.FormValue("retry"); v != "" {
		if retry, err = strconv.ParseBool(v); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: retry %q", ErrInvalidUpload, v))
			return
		}
	}

	run, err := h.sys.Submit(r.Context(), SubmitCommand{
		Document:    data,
		Filename:    header.Filename,
		ContentType: contentType,
		RunID:       r.FormValue("run_id"),
		DealID:      r.FormValue("deal_id"),
		CallbackURL: r.FormValue("callback_url"),
		Retry:       retry,
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, run)
}

// Status returns a run by id.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	run, err := h.sys.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, run)
}

// Cancel requests cancellation of a run.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	run, err := h.sys.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, run)
}

// List returns a paginated list of runs with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := runs.FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching runs.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidUpload, err))
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Stats returns run counts per state and per format.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sys.Stats(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

// Export streams an XLSX workbook of the runs matching the query filters.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.exporter.Runs(r.Context(), runs.FiltersFromQuery(r.URL.Query()))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `attachment; filename="runs.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Source streams the originally submitted document of a run.
func (h *Handler) Source(w http.ResponseWriter, r *http.Request) {
	run, err := h.sys.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	body, err := h.sources.Open(r.Context(), run.Source)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", run.Source.ContentType)
	if run.Source.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(run.Source.SizeBytes, 10))
	}
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(run.Source.Filename)),
	)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}
