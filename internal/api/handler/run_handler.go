package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tap-appstore/internal/model"
	"tap-appstore/internal/pipeline"
	"tap-appstore/internal/store"
)

// RunStore is the read side of the run store.
type RunStore interface {
	ListRuns(limit int) ([]model.RunSummary, error)
	GetRun(id string) (*model.RunSummary, error)
	ListRunErrors(runID string) ([]model.RunError, error)
	ListRunStreams(runID string) ([]model.StreamMetrics, error)
	ListBookmarks() ([]store.Bookmark, error)
}

// Handler serves the read-only status API.
type Handler struct {
	Store    RunStore
	Registry pipeline.Registry
	Logger   *slog.Logger
}

const runsPrefix = "/api/v1/runs/"

// ListRuns lists recent runs
// @Summary List runs
// @Description Most recent tap runs first
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum number of runs" default(50)
// @Success 200 {array} model.RunSummary
// @Failure 400 {object} map[string]string "Invalid limit"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(limit)
	if err != nil {
		h.internalError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run
// @Summary Get run
// @Description Run status with per-stream metrics
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunSummary
// @Failure 404 {object} map[string]string "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r, "")
	if !ok {
		return
	}
	run, err := h.Store.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.internalError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunErrors lists skipped windows and failures of a run
// @Summary Get run errors
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.RunError
// @Failure 404 {object} map[string]string "Run not found"
// @Router /runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r, "/errors")
	if !ok || !h.runExists(w, id) {
		return
	}
	errs, err := h.Store.ListRunErrors(id)
	if err != nil {
		h.internalError(w, "list run errors", err)
		return
	}
	writeJSON(w, http.StatusOK, errs)
}

// GetRunStreams lists per-stream metrics of a run
// @Summary Get run streams
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.StreamMetrics
// @Failure 404 {object} map[string]string "Run not found"
// @Router /runs/{id}/streams [get]
func (h *Handler) GetRunStreams(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r, "/streams")
	if !ok || !h.runExists(w, id) {
		return
	}
	streams, err := h.Store.ListRunStreams(id)
	if err != nil {
		h.internalError(w, "list run streams", err)
		return
	}
	writeJSON(w, http.StatusOK, streams)
}

// ListBookmarks returns the stored checkpoint of every stream
// @Summary List bookmarks
// @Tags state
// @Produce json
// @Success 200 {array} store.Bookmark
// @Router /bookmarks [get]
func (h *Handler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := h.Store.ListBookmarks()
	if err != nil {
		h.internalError(w, "list bookmarks", err)
		return
	}
	writeJSON(w, http.StatusOK, bookmarks)
}

// ListStreams returns the registered report streams
// @Summary List streams
// @Tags streams
// @Produce json
// @Success 200 {array} model.StreamDescriptor
// @Router /streams [get]
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.Descriptors())
}

// runID extracts the run id between the runs prefix and suffix.
func (h *Handler) runID(w http.ResponseWriter, r *http.Request, suffix string) (string, bool) {
	path := r.URL.Path
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) {
		h.writeError(w, http.StatusBadRequest, "invalid path")
		return "", false
	}
	id := strings.TrimSuffix(path[len(runsPrefix):], suffix)
	if id == "" || strings.Contains(id, "/") {
		h.writeError(w, http.StatusBadRequest, "run id is required")
		return "", false
	}
	return id, true
}

func (h *Handler) runExists(w http.ResponseWriter, id string) bool {
	_, err := h.Store.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "run not found")
		return false
	}
	if err != nil {
		h.internalError(w, "get run", err)
		return false
	}
	return true
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("status api", "op", op, "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
