// Package httpapi exposes the sync protocol as a JSON HTTP API. Handlers
// depend on small service interfaces so they can be tested with fakes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tastediary/syncserver/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes data with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps service errors onto HTTP status codes. Conflict rejections
// never reach here; they are 200 responses with accepted=false.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrLocked):
		writeJSON(w, http.StatusLocked, errorResponse{Error: "sync session locked"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
