package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/db"
)

func TestIsRetriableError(t *testing.T) {
	assert.False(t, db.IsRetriableError(nil))
	assert.False(t, db.IsRetriableError(errors.New("broken")))
	assert.False(t, db.IsRetriableError(db.ErrEtagConflict))

	assert.True(t, db.IsRetriableError(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, db.IsRetriableError(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.True(t, db.IsRetriableError(fmt.Errorf("put: %w", sqlite3.Error{Code: sqlite3.ErrBusy})))
	assert.True(t, db.IsRetriableError(errors.New("database is locked")))
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	// Terminal errors don't burn attempts.
	attempts := 0
	err := db.Retry(ctx, func(ctx context.Context) error {
		attempts++
		return db.ErrNotFound
	})
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Equal(t, 1, attempts)

	// Transient errors retry until the budget runs out.
	attempts = 0
	err = db.Retry(ctx, func(ctx context.Context) error {
		attempts++
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	})
	assert.Error(t, err)
	assert.Greater(t, attempts, 1)

	// A transient error that clears up succeeds.
	attempts = 0
	err = db.Retry(ctx, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := db.Retry(ctx, func(ctx context.Context) error {
		attempts++
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
