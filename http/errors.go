package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cardioserve/serving"
)

// Error classes used in logs and failure metrics.
const (
	ClassSchema      = "schema"
	ClassInvalid     = "invalid_input"
	ClassUnavailable = "unavailable"
	ClassInference   = "inference"
	ClassPersistence = "persistence"
	ClassTimeout     = "timeout"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// classify maps a serving error to its status code, class and client message.
func classify(err error) (int, string, string) {
	var persistErr *serving.PersistenceError
	switch {
	case errors.Is(err, serving.ErrArtifactsNotLoaded):
		return http.StatusServiceUnavailable, ClassUnavailable, "Model not loaded"
	case errors.Is(err, serving.ErrInvalidInput):
		return http.StatusBadRequest, ClassInvalid, "Preprocessing error: " + err.Error()
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, ClassPersistence, "prediction could not be recorded"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, ClassTimeout, "request timeout"
	default:
		return http.StatusInternalServerError, ClassInference, "prediction failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}
