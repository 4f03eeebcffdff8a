package helper

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// GivenUniqueID returns a new random UUID (v7).
func GivenUniqueID(t testing.TB) uuid.UUID {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id
}
