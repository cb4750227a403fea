package problem

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteExposesDetailInDevelopment(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/events/nope", nil)

	Write(rec, req, 404, TypeNotFound, "Not Found", errors.New("event missing"), "development")

	require.Equal(t, 404, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, TypeNotFound, body.Type)
	require.Equal(t, "event missing", body.Detail)
	require.Equal(t, "/api/v1/events/nope", body.Instance)
}

func TestWriteRedactsDetailInProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/events", nil)

	Write(rec, req, 500, TypeServerError, "Internal Server Error", errors.New("pq: connection refused"), "production")

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Internal Server Error", body.Detail)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestWriteExplicitDetailWins(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/registrations", nil)

	Write(rec, req, 409, TypeConflict, "Conflict", errors.New("duplicate key"), "production",
		WithDetail("This email is already registered for this event"))

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "This email is already registered for this event", body.Detail)
}

func TestWriteFieldErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/register", nil)

	Write(rec, req, 400, TypeValidation, "Validation Error", nil, "test",
		WithErrors(map[string]interface{}{"email": "failed email validation"}))

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "failed email validation", body.Errors["email"])
}
