package database

import (
	"context"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// withBusyRetry retries write operations that lose the SQLite write lock race.
// busy_timeout covers most contention; this catches the SQLITE_BUSY errors
// that still surface under heavy concurrent batch writes.
func withBusyRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(50*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isBusyError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
