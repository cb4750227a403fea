package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-passw0rd")

	require.NoError(t, err)
	require.NotEqual(t, "s3cret-passw0rd", hash)
	require.True(t, strings.HasPrefix(hash, "$2a$"))
	require.True(t, CheckPassword(hash, "s3cret-passw0rd"))
	require.False(t, CheckPassword(hash, "wrong-password"))
}

func TestCheckPasswordRejectsGarbageHash(t *testing.T) {
	require.False(t, CheckPassword("not-a-bcrypt-hash", "anything"))
}
