package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opencrm/rowshare/internal/services"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

// === Shared helper functions for all handlers ===

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// respondServiceError maps the engine's error taxonomy onto HTTP statuses.
// ConfigurationError means the tenant middleware is missing or broken, which
// is a server fault, not a client one.
func respondServiceError(w http.ResponseWriter, err error) {
	var confErr *sharing.ConfigurationError
	var predErr *sharing.InvalidPredicateError
	switch {
	case errors.As(err, &confErr):
		respondError(w, http.StatusInternalServerError, confErr.Error())
	case errors.As(err, &predErr):
		respondError(w, http.StatusBadRequest, predErr.Error())
	case errors.Is(err, services.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrGrantorNoAccess):
		respondError(w, http.StatusForbidden, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
