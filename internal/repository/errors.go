package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not_found")
	// ErrDuplicatePending is returned when a student already has a pending upgrade request.
	ErrDuplicatePending = errors.New("duplicate_pending_request")
	// ErrNotPending is returned when a request has already left the pending state.
	ErrNotPending = errors.New("request_not_pending")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// IsTransient reports whether err is a connection-level failure that is safe
// to retry for an idempotent read.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}

// readRetryDelay is the pause before the single retry of a failed read.
var readRetryDelay = 200 * time.Millisecond

// withReadRetry runs an idempotent read, retrying it once on a transient error.
// Writes must never go through here.
func withReadRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(1, retry.NewConstant(readRetryDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
