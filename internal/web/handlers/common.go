package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/session"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps a controller error onto a status code and the message
// the operator should see.
func respondFailure(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, session.ErrLoggedOut):
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	case errors.Is(err, session.ErrSuperseded):
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	e, ok := apperr.As(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, fallback)
		return
	}
	status := http.StatusBadGateway
	switch e.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
		if e.Status != 0 {
			status = e.Status
		}
	case apperr.KindRecognition:
		status = http.StatusServiceUnavailable
	}
	respondError(w, status, apperr.Message(err, fallback))
}

// decodeJSON reads the request body into v and answers 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
