// Package handlers maps the HTTP surface onto the orchestration layer.
// Status codes are decided here and nowhere else.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/vantage/internal/interfaces"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteAnalysisError maps orchestration errors onto status codes: bad input
// is 400, a cached-only miss is 409, a missing LLM key is 503, everything
// else is 500.
func WriteAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case interfaces.IsValidation(err):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, interfaces.ErrCacheMiss):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, interfaces.ErrLLMDisabled):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
