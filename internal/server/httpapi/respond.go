// Package httpapi exposes the note service over a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dravek/basenotes/internal/errs"
)

// apiError is the error envelope returned on every non-2xx response.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// writeServiceError maps service/repository errors onto HTTP statuses.
// NotFound covers cross-owner access too, so nothing leaks about other
// owners' data.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "CONFLICT", "Resource already exists.")
	case errors.Is(err, errs.ErrContention):
		writeError(w, http.StatusConflict, "CONTENTION", "The note is being modified, retry shortly.")
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials.")
	case errors.Is(err, errs.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many failed attempts, try again later.")
	case strings.HasPrefix(err.Error(), "validation:"):
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", strings.TrimSpace(strings.TrimPrefix(err.Error(), "validation:")))
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal error.")
	}
}
