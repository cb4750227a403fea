package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRepositoryRequiresPool(t *testing.T) {
	repo, err := NewRepository(nil)
	require.Error(t, err)
	require.Nil(t, repo)
}
