package driven

import (
	"context"
	"time"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// LeaderElector is the cross-context lease primitive exposed by the
// storage substrate. Exactly one execution context holds the lease at
// a time; the holder is the only context allowed to perform pipeline
// writes. Leadership is re-validated at every batch boundary, never
// cached for the process lifetime.
type LeaderElector interface {
	// Acquire attempts to take the lease for holder with the given
	// TTL. Returns true when holder now owns the lease, either
	// freshly or because the previous lease expired.
	Acquire(ctx context.Context, holder string, ttl time.Duration) (bool, error)

	// Renew extends the lease if holder still owns it. Returns false
	// when the lease was lost to another context.
	Renew(ctx context.Context, holder string, ttl time.Duration) (bool, error)

	// Release gives up the lease if holder owns it. Safe to call when
	// the lease is already lost.
	Release(ctx context.Context, holder string) error
}

// CheckpointStore persists the pipeline's resume point so any newly
// elected leader can continue from where the previous one stopped.
type CheckpointStore interface {
	// LoadCheckpoint returns the persisted checkpoint, or a zero
	// checkpoint when none exists.
	LoadCheckpoint(ctx context.Context) (*domain.Checkpoint, error)

	// SaveCheckpoint persists the checkpoint.
	SaveCheckpoint(ctx context.Context, cp *domain.Checkpoint) error

	// ResetCheckpoint clears the checkpoint, forcing a full re-scan.
	ResetCheckpoint(ctx context.Context) error
}
