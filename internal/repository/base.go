package repository

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"online_quiz_backend/internal/util"

	"gorm.io/gorm"
)

// defaultTimeout bounds every storage call so no request hangs on the
// database. Overridden at startup from database.timeout_seconds.
var defaultTimeout = 3 * time.Second

// SetStorageTimeout adjusts the per-call deadline. Non-positive values are
// ignored. Call before serving traffic; the value is not synchronized.
func SetStorageTimeout(d time.Duration) {
	if d > 0 {
		defaultTimeout = d
	}
}

// runBounded executes fn under a bounded context and retries exactly once on
// a transient failure before surfacing ErrStorageUnavailable. Non-transient
// errors pass through untouched.
func runBounded(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempt := func() error {
		opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
		return fn(db.WithContext(opCtx))
	}

	err := attempt()
	if err == nil || !isTransient(err) {
		return err
	}

	if err = attempt(); err != nil {
		if isTransient(err) {
			return util.ErrStorageUnavailable
		}
		return err
	}
	return nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "invalid connection") ||
		strings.Contains(msg, "broken pipe")
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
