package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/quake-sync/internal/auth"
	"github.com/couchcryptid/quake-sync/internal/dashboard"
	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/pipeline"
)

const syncTimeout = 2 * time.Minute

type handlers struct {
	state  *dashboard.State
	auth   *auth.Manager
	sync   Syncer
	hub    *Hub
	logger *slog.Logger
}

type quakeDetail struct {
	Quake domain.EncodedQuake `json:"quake"`
	Popup domain.ListEntry    `json:"popup"`
}

type filterRequest struct {
	Threshold *float64 `json:"threshold"`
}

func (h *handlers) listQuakes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("min_mag")
	if raw == "" {
		sharedobs.WriteJSON(w, http.StatusOK, h.state.List())
		return
	}
	minMag, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(minMag) || math.IsInf(minMag, 0) {
		writeError(w, http.StatusBadRequest, "min_mag must be a number")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, h.state.ListAbove(minMag))
}

func (h *handlers) getQuake(w http.ResponseWriter, r *http.Request) {
	q, err := h.state.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	list := domain.Present([]domain.EncodedQuake{q}, h.state.Location())
	sharedobs.WriteJSON(w, http.StatusOK, quakeDetail{Quake: q, Popup: list.Entries[0]})
}

func (h *handlers) selectQuake(w http.ResponseWriter, r *http.Request) {
	center, err := h.state.Select(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, center)
}

func (h *handlers) view(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, h.state.View())
}

func (h *handlers) setFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Threshold == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"threshold\": <number>}")
		return
	}
	view, err := h.state.SetThreshold(*req.Threshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, view)
}

func (h *handlers) resetFilter(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, h.state.ResetFilter())
}

func (h *handlers) legend(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, h.state.Legend())
}

func (h *handlers) basemaps(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, domain.Basemaps())
}

func (h *handlers) runSync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), syncTimeout)
	defer cancel()

	result, err := h.sync.RunOnce(ctx)
	switch {
	case errors.Is(err, pipeline.ErrPassInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.logger.Error("manual sync failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		sharedobs.WriteJSON(w, http.StatusOK, result)
	}
}
