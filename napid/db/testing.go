package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// NewTestStore creates a Store for testing purposes, along with a function
// that can be used to clean it up when done.
func NewTestStore(t *testing.T) (*Store, func()) {
	dir, err := os.MkdirTemp("", "napi-db-test-")
	require.NoError(t, err)

	store, err := Open(filepath.Join(dir, "napi.db"), time.Second)
	require.NoError(t, err)

	cleanup := func() {
		require.NoError(t, store.Close())
		require.NoError(t, os.RemoveAll(dir))
	}

	return store, cleanup
}
