package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"online_quiz_backend/internal/util"

	"gorm.io/gorm"
)

func TestSetStorageTimeout(t *testing.T) {
	original := defaultTimeout
	defer SetStorageTimeout(original)

	SetStorageTimeout(10 * time.Second)
	if defaultTimeout != 10*time.Second {
		t.Fatalf("expected 10s, got %v", defaultTimeout)
	}

	// Non-positive values leave the deadline alone.
	SetStorageTimeout(0)
	if defaultTimeout != 10*time.Second {
		t.Fatalf("zero must be ignored, got %v", defaultTimeout)
	}
	SetStorageTimeout(-time.Second)
	if defaultTimeout != 10*time.Second {
		t.Fatalf("negative must be ignored, got %v", defaultTimeout)
	}
}

func TestRunBoundedAppliesDeadline(t *testing.T) {
	original := defaultTimeout
	defer SetStorageTimeout(original)
	SetStorageTimeout(50 * time.Millisecond)

	db := newTestDB(t)
	err := runBounded(context.Background(), db, func(tx *gorm.DB) error {
		ctx := tx.Statement.Context
		deadline, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline on storage context")
		}
		if remaining := time.Until(deadline); remaining > 50*time.Millisecond {
			return errors.New("deadline exceeds the configured budget")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("runBounded: %v", err)
	}
}

func TestRunBoundedSurfacesTransientAsUnavailable(t *testing.T) {
	db := newTestDB(t)
	calls := 0
	err := runBounded(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, util.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry (2 calls), got %d", calls)
	}
}

func TestRunBoundedPassesThroughPermanentErrors(t *testing.T) {
	db := newTestDB(t)
	sentinel := errors.New("constraint violated")
	calls := 0
	err := runBounded(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not retry, got %d calls", calls)
	}
}
