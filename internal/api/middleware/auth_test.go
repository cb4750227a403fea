package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatherline/server/internal/auth"
)

func authedHandler(t *testing.T) (http.Handler, *auth.JWTManager) {
	t.Helper()
	tokens := auth.NewJWTManager("test-secret", time.Hour, "gatherline")

	handler := RequireAuth(tokens, "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		require.NotNil(t, claims)
		_, _ = w.Write([]byte(claims.Email))
	}))
	return handler, tokens
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	handler, tokens := authedHandler(t)

	token, err := tokens.Generate("01HQZX3Y4K6F7G8H9J0K1M2N3P", "alice@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/auth/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice@example.com", rec.Body.String())
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	handler, _ := authedHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/auth/protected", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRequireAuthRejectsTamperedToken(t *testing.T) {
	handler, _ := authedHandler(t)

	other := auth.NewJWTManager("other-secret", time.Hour, "gatherline")
	token, err := other.Generate("01HQZX3Y4K6F7G8H9J0K1M2N3P", "alice@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/auth/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClaimsFromContextWithoutAuth(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	require.Nil(t, ClaimsFromContext(req.Context()))
}
