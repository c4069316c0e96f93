package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kamal-hamza/autostart/internal/core/domain"
)

const defaultHistoryLimit = 50

type errorResponse struct {
	Error string `json:"error"`
}

type tasksResponse struct {
	Module string                `json:"module"`
	Tasks  []domain.TaskSnapshot `json:"tasks"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		h.log.Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.launcher.Info())
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	snaps := h.launcher.Snapshots()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Instance < snaps[j].Instance })
	if snaps == nil {
		snaps = []domain.TaskSnapshot{}
	}
	h.writeJSON(w, http.StatusOK, tasksResponse{Module: h.launcher.Info().Name, Tasks: snaps})
}

func (h *Handler) taskStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, ok := h.launcher.Status(name)
	if !ok {
		h.writeError(w, domain.ErrNotRunning)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) startTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	retries := 0
	if raw := r.URL.Query().Get("retries"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "retries must be a non-negative integer"})
			return
		}
		retries = n
	}

	snap, err := h.launcher.Start(r.Context(), name, retries, func(rec domain.LaunchRecord) {
		h.log.Info().
			Str("instance", rec.Instance).
			Bool("success", rec.Success).
			Int("attempts", rec.Attempts).
			Msg("launch started over http finished")
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, snap)
}

func (h *Handler) stopTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.launcher.Stop(name); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, errHistoryDisabled)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.history.List(r.Context(), r.URL.Query().Get("instance"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.LaunchRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

func (h *Handler) historySummary(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, errHistoryDisabled)
		return
	}

	summaries, err := h.history.Summaries(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.InstanceSummary{}
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) checkTemplates(w http.ResponseWriter, r *http.Request) {
	report, err := h.templates.Check(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		*domain.CheckReport
		Complete bool `json:"complete"`
	}{report, report.Complete()})
}
