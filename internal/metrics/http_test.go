package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "static path",
			input:    "/api/v1/events",
			expected: "/api/v1/events",
		},
		{
			name:     "single param",
			input:    "/api/v1/events/{id}",
			expected: "/api/v1/events/{param}",
		},
		{
			name:     "multiple params",
			input:    "/api/v1/events/{id}/registrations/{regID}",
			expected: "/api/v1/events/{param}/registrations/{param}",
		},
		{
			name:     "empty path",
			input:    "",
			expected: "",
		},
		{
			name:     "non-path input",
			input:    "api/v1/events/{id}",
			expected: "api/v1/events/{id}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, normalizePath(tt.input))
		})
	}
}

func TestStripMethod(t *testing.T) {
	require.Equal(t, "/api/v1/events/{id}", stripMethod("GET /api/v1/events/{id}"))
	require.Equal(t, "/healthz", stripMethod("/healthz"))
}

func TestHTTPMiddlewareRecordsRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/widgets/{param}", "418"))

	rec := httptest.NewRecorder()
	HTTPMiddleware(mux).ServeHTTP(rec, httptest.NewRequest("GET", "/widgets/42", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/widgets/{param}", "418"))
	require.Equal(t, before+1, after)
}

func TestHandlerServesRegistry(t *testing.T) {
	UsersRegistered.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "gatherline_users_registered_total")
}
