package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse defines the error body
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func respondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondWithJSON(w, r, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
