package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/domain/ids"
)

// FieldError represents a validation error for a specific request field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateAndExtractULID extracts and validates a ULID from a request path
// parameter. On failure it writes the error response and returns false.
func ValidateAndExtractULID(w http.ResponseWriter, r *http.Request, paramName, env string) (string, bool) {
	ulidValue := strings.TrimSpace(pathParam(r, paramName))
	if ulidValue == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", FieldError{Field: paramName, Message: "missing"}, env)
		return "", false
	}
	if err := ids.ValidateULID(ulidValue); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", FieldError{Field: paramName, Message: "invalid ULID"}, env)
		return "", false
	}
	return ulidValue, true
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, env string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithDetail("Request body must be valid JSON"))
		return false
	}
	return true
}
