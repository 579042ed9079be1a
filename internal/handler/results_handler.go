// Package handler contains HTTP request handlers for the results viewer
// API served over a finished simulation database.
package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mobsim/ridepool/internal/repository"
)

// ResultsHandler serves persisted run results.
type ResultsHandler struct {
	store *repository.ResultsStore
}

// NewResultsHandler creates a handler wired to the results store.
func NewResultsHandler(store *repository.ResultsStore) *ResultsHandler {
	return &ResultsHandler{store: store}
}

// ListRuns handles GET /api/v1/runs
//
// Returns every persisted run summary, newest first.
func (h *ResultsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		log.Printf("[handler] list runs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// RunTravellers handles GET /api/v1/runs/{run_id}/travellers
func (h *ResultsHandler) RunTravellers(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	travellers, err := h.store.RunTravellers(r.Context(), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run_not_found"})
			return
		}
		log.Printf("[handler] run travellers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, travellers)
}

// RunRideEvents handles GET /api/v1/runs/{run_id}/rides
func (h *ResultsHandler) RunRideEvents(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	events, err := h.store.RunRideEvents(r.Context(), runID)
	if err != nil {
		log.Printf("[handler] run ride events: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
