// Package api implements the HTTP surface of the job feed service.
//
// Routes:
//
//	GET  /health                → liveness + current run state
//	GET  /jobs                  → filtered, paginated listings
//	GET  /jobs/{id}             → one listing
//	POST /jobs/{id}/status      → set the listing's consumer-owned status
//	POST /runs                  → start a scrape run (202, or 409 when busy)
//	GET  /runs                  → recent runs, newest first
//	GET  /runs/current          → the active run, if any
//	GET  /runs/{id}             → one run's status
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/query"
	"jobmate/jobfeed-service/internal/scraper"
	"jobmate/jobfeed-service/internal/store"
)

// Jobs is the query side used by the handler.
type Jobs interface {
	ListJobs(ctx context.Context, req query.ListRequest) (query.Page, error)
	GetJob(ctx context.Context, id uint64) (model.JobListing, error)
	UpdateStatus(ctx context.Context, id uint64, status string) (model.JobListing, error)
}

// Runs is the trigger side used by the handler.
type Runs interface {
	StartRun(ctx context.Context, p model.RunParams) (scraper.RunHandle, error)
	RunStatus(id string) (model.ScrapeRun, error)
	Current() (model.ScrapeRun, bool)
	State() model.RunState
	Recent(n int) []model.ScrapeRun
}

// Handler holds shared dependencies.
type Handler struct {
	jobs    Jobs
	runs    Runs
	log     *logger.Logger
	version string
}

// NewHandler returns a configured Handler.
func NewHandler(jobs Jobs, runs Runs, log *logger.Logger, version string) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{jobs: jobs, runs: runs, log: log, version: version}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /jobs", h.listJobs)
	mux.HandleFunc("GET /jobs/{id}", h.getJob)
	mux.HandleFunc("POST /jobs/{id}/status", h.updateStatus)
	mux.HandleFunc("POST /runs", h.startRun)
	mux.HandleFunc("GET /runs", h.recentRuns)
	mux.HandleFunc("GET /runs/current", h.currentRun)
	mux.HandleFunc("GET /runs/{id}", h.getRun)
}

// ─── Listings ────────────────────────────────────────────────────────────────

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("skip"), q.Get("offset"))
	if err != nil {
		jsonError(w, "skip must be an integer", http.StatusBadRequest)
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		jsonError(w, "limit must be an integer", http.StatusBadRequest)
		return
	}

	page, err := h.jobs.ListJobs(r.Context(), query.ListRequest{
		Title:    q.Get("title"),
		Location: q.Get("location"),
		Source:   q.Get("source"),
		Status:   q.Get("status"),
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		h.writeError(w, "listJobs", err)
		return
	}
	jsonOK(w, page)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		h.writeError(w, "getJob", err)
		return
	}
	jsonOK(w, l)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		jsonError(w, "body must contain status", http.StatusBadRequest)
		return
	}
	l, err := h.jobs.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		h.writeError(w, "updateStatus", err)
		return
	}
	jsonOK(w, l)
}

// ─── Runs ────────────────────────────────────────────────────────────────────

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	var params model.RunParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	handle, err := h.runs.StartRun(r.Context(), params)
	if err != nil {
		h.writeError(w, "startRun", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"runId": handle.ID,
		"state": string(model.RunRunning),
	})
}

func (h *Handler) currentRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.runs.Current()
	if !ok {
		jsonOK(w, map[string]string{"state": string(model.RunIdle)})
		return
	}
	jsonOK(w, run)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.RunStatus(r.PathValue("id"))
	if err != nil {
		h.writeError(w, "getRun", err)
		return
	}
	jsonOK(w, run)
}

func (h *Handler) recentRuns(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		jsonError(w, "limit must be an integer", http.StatusBadRequest)
		return
	}
	jsonOK(w, h.runs.Recent(n))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{
		"status":   "ok",
		"service":  "jobfeed-service",
		"version":  h.version,
		"runState": string(h.runs.State()),
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var (
		qv *query.ValidationError
		sv *scraper.ValidationError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "listing not found", http.StatusNotFound)
	case errors.Is(err, scraper.ErrRunNotFound):
		jsonError(w, "run not found", http.StatusNotFound)
	case errors.As(err, &qv), errors.As(err, &sv):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, scraper.ErrRunInProgress):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrUnavailable):
		h.log.Error().Err(err).Str("op", op).Msg("Store unavailable")
		jsonError(w, "listing store unavailable", http.StatusServiceUnavailable)
	default:
		h.log.Error().Err(err).Str("op", op).Msg("Request failed")
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		jsonError(w, "id must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// intParam parses the first non-empty value; all empty yields 0.
func intParam(values ...string) (int, error) {
	for _, v := range values {
		if v != "" {
			return strconv.Atoi(v)
		}
	}
	return 0, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
