package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometrix/backend/apperr"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps taxonomy errors to status codes. The HTTP layer is the
// only place that decides response codes; services just return errors.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var pe *apperr.ProviderError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, apperr.ErrConflict):
		http.Error(w, "Conflict", http.StatusConflict)
	case errors.Is(err, apperr.ErrUnauthorized):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperr.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, apperr.ErrProviderEmpty):
		http.Error(w, "Refinement provider returned an empty response", http.StatusBadGateway)
	case errors.As(err, &pe):
		status := pe.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		http.Error(w, "Refinement provider error", status)
	default:
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
