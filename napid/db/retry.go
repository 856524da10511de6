package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/jitter"
	"github.com/Rican7/retry/strategy"
	"github.com/mattn/go-sqlite3"

	"github.com/netfabric/napi/shared/logger"
)

// One initial attempt plus three retries.
const maxAttempts = 4

// Retry wraps a function that interacts with the store, retrying it with
// jittered backoff while it keeps hitting transient errors. Cancellation,
// missing rows and every other terminal error stop the retries at once.
func Retry(ctx context.Context, f func(ctx context.Context) error) error {
	var terminal error

	err := retry.Retry(func(attempt uint) error {
		err := f(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			terminal = err
			return nil
		}

		if errors.Is(err, sql.ErrNoRows) || !IsRetriableError(err) {
			terminal = err
			return nil
		}

		logger.Debug("Transient storage error, retrying", logger.Ctx{"attempt": attempt, "err": err})

		return err
	},
		strategy.Limit(maxAttempts),
		strategy.BackoffWithJitter(backoff.BinaryExponential(5*time.Millisecond), jitter.Deviation(nil, 0.5)),
	)

	if terminal != nil {
		return terminal
	}

	return err
}

// IsRetriableError returns true if the given error might be transient and
// the interaction can be safely retried.
func IsRetriableError(err error) bool {
	if err == nil {
		return false
	}

	var sErr sqlite3.Error
	if errors.As(err, &sErr) {
		switch sErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		}
	}

	if errors.Is(err, sqlite3.ErrLocked) || errors.Is(err, sqlite3.ErrBusy) {
		return true
	}

	// Unwrap errors one at a time.
	for ; err != nil; err = errors.Unwrap(err) {
		if strings.Contains(err.Error(), "database is locked") {
			return true
		}

		if strings.Contains(err.Error(), "cannot start a transaction within a transaction") {
			return true
		}

		if strings.Contains(err.Error(), "bad connection") {
			return true
		}
	}

	return false
}
