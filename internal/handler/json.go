package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/trackitnow/internal/domain"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given destination.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// errorStatus maps ledger errors onto an HTTP status and a message that is
// safe to show to the user.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return http.StatusNotFound, "Order not found."
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Your orders changed while we were updating them. Please try again."
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Orders are temporarily unavailable. Please try again shortly."
	default:
		return http.StatusInternalServerError, "An unexpected error occurred. Please try again."
	}
}

// writeDomainError logs unexpected failures and writes the mapped JSON error.
func writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), op, "error", err)
	}
	writeError(w, status, msg)
}
