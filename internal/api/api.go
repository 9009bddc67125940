// Package api exposes the query and manual-trigger HTTP surface
// consumed by the web UI layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/platform"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/Haasie/huizen-zoeker/internal/platform/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ListingReader serves stored listings and the change audit log.
type ListingReader interface {
	ListListings(ctx context.Context, query storage.ListingQuery) ([]models.Listing, error)
	GetRecentChanges(ctx context.Context, since time.Time, limit int) ([]models.ChangeEvent, error)
}

// CycleRunner triggers a scan cycle on demand.
type CycleRunner interface {
	RunNow(ctx context.Context) (models.CycleSummary, error)
}

// Handler is the HTTP API.
type Handler struct {
	store  ListingReader
	runner CycleRunner
	logger *zerolog.Logger
}

// NewHandler returns a new Handler.
func NewHandler(store ListingReader, runner CycleRunner, logger *zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		runner: runner,
		logger: logger,
	}
}

// Router returns the configured mux router.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/listings", h.handleListings).Methods(http.MethodGet)
	router.HandleFunc("/api/changes", h.handleChanges).Methods(http.MethodGet)
	router.HandleFunc("/api/scan", h.handleScan).Methods(http.MethodPost)
	return router
}

func (h *Handler) handleListings(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := storage.ListingQuery{
		SourceID:   params.Get("source"),
		City:       params.Get("city"),
		MinPrice:   intParam(params.Get("minPrice")),
		MaxPrice:   intParam(params.Get("maxPrice")),
		ActiveOnly: params.Get("includeRemoved") == "",
		Limit:      intParam(params.Get("limit")),
		Offset:     intParam(params.Get("offset")),
	}

	listings, err := h.store.ListListings(r.Context(), query)
	if err != nil {
		h.logger.Error().Err(err).Msg("can't list listings")
		http.Error(w, "can't list listings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"listings": toListingDocs(listings),
		"count":    len(listings),
	})
}

func (h *Handler) handleChanges(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	events, err := h.store.GetRecentChanges(r.Context(), since, intParam(r.URL.Query().Get("limit")))
	if err != nil {
		h.logger.Error().Err(err).Msg("can't get recent changes")
		http.Error(w, "can't get recent changes", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"changes": toChangeDocs(events),
		"count":   len(events),
	})
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.RunNow(r.Context())
	switch {
	case errors.Is(err, platform.ErrAlreadyRunning):
		http.Error(w, "scan cycle already running", http.StatusConflict)
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("manual scan failed")
		http.Error(w, "scan cycle failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toSummaryDoc(summary))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("can't encode response")
	}
}

func intParam(raw string) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
