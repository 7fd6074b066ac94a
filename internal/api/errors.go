package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/defi-dashboard/internal/errors"
	"github.com/defi-dashboard/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondRaw sends an upstream payload through unchanged.
func respondRaw(w http.ResponseWriter, statusCode int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(payload)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondServiceError maps a service error onto the HTTP response. Unknown
// errors collapse to a generic 500 so internals never leak to clients.
func respondServiceError(w http.ResponseWriter, err error) {
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		serviceErr := catErr.ToServiceError()
		respondError(w, catErr.StatusCode, serviceErr.Code, serviceErr.Message, serviceErr.Details)
		return
	}
	respondError(w, http.StatusInternalServerError, apperrors.CodeInternalError, "An internal error occurred", nil)
}
