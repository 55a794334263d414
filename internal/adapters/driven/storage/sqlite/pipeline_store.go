package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// ==================== Checkpoint Store ====================

// checkpointStore implements driven.CheckpointStore. The checkpoint is
// a single row so any newly elected leader reads one consistent value.
type checkpointStore struct {
	store *Store
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

// LoadCheckpoint returns the persisted checkpoint, or a zero
// checkpoint when none exists.
func (s *checkpointStore) LoadCheckpoint(ctx context.Context) (*domain.Checkpoint, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT cursor, completed, errors, failed_chunks, updated_at FROM pipeline_checkpoint WHERE id = 1")

	var cp domain.Checkpoint
	var failedJSON string
	if err := row.Scan(&cp.Cursor, &cp.Completed, &cp.Errors, &failedJSON, &cp.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return &domain.Checkpoint{}, nil
		}
		return nil, fmt.Errorf("scanning checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(failedJSON), &cp.FailedChunks); err != nil {
		return nil, fmt.Errorf("unmarshalling failed chunks: %w", err)
	}
	return &cp, nil
}

// SaveCheckpoint persists the checkpoint.
func (s *checkpointStore) SaveCheckpoint(ctx context.Context, cp *domain.Checkpoint) error {
	failedJSON, err := json.Marshal(cp.FailedChunks)
	if err != nil {
		return fmt.Errorf("marshalling failed chunks: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO pipeline_checkpoint (id, cursor, completed, errors, failed_chunks, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cursor = excluded.cursor,
			completed = excluded.completed,
			errors = excluded.errors,
			failed_chunks = excluded.failed_chunks,
			updated_at = excluded.updated_at
	`, cp.Cursor, cp.Completed, cp.Errors, string(failedJSON), time.Now().UTC())

	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// ResetCheckpoint clears the checkpoint.
func (s *checkpointStore) ResetCheckpoint(ctx context.Context) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM pipeline_checkpoint WHERE id = 1")
	if err != nil {
		return fmt.Errorf("resetting checkpoint: %w", err)
	}
	return nil
}

// ==================== Leader Elector ====================

// leaderElector implements driven.LeaderElector over a single lease
// row. Every transition is a conditional write, so two processes
// racing for the lease serialise on the database.
type leaderElector struct {
	store *Store
}

var _ driven.LeaderElector = (*leaderElector)(nil)

// Acquire attempts to take the lease for holder.
func (l *leaderElector) Acquire(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expires := now.Add(ttl)

	// Take the row if absent
	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO leader_lease (id, holder, expires_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, holder, expires)
	if err != nil {
		return false, fmt.Errorf("inserting lease: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}

	// Otherwise claim it only when we already hold it or it expired
	res, err = l.store.db.ExecContext(ctx, `
		UPDATE leader_lease SET holder = ?, expires_at = ?
		WHERE id = 1 AND (holder = ? OR expires_at < ?)
	`, holder, expires, holder, now)
	if err != nil {
		return false, fmt.Errorf("claiming lease: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lease claim: %w", err)
	}
	return n > 0, nil
}

// Renew extends the lease if holder still owns it.
func (l *leaderElector) Renew(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := l.store.db.ExecContext(ctx, `
		UPDATE leader_lease SET expires_at = ?
		WHERE id = 1 AND holder = ? AND expires_at >= ?
	`, now.Add(ttl), holder, now)
	if err != nil {
		return false, fmt.Errorf("renewing lease: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lease renewal: %w", err)
	}
	return n > 0, nil
}

// Release gives up the lease if holder owns it.
func (l *leaderElector) Release(ctx context.Context, holder string) error {
	_, err := l.store.db.ExecContext(ctx,
		"DELETE FROM leader_lease WHERE id = 1 AND holder = ?", holder)
	if err != nil {
		return fmt.Errorf("releasing lease: %w", err)
	}
	return nil
}

// ==================== Telemetry Store ====================

// telemetryStore implements driven.TelemetryStore.
type telemetryStore struct {
	store *Store
}

var _ driven.TelemetryStore = (*telemetryStore)(nil)

// RecordRetrieval stores one retrieval telemetry record.
func (s *telemetryStore) RecordRetrieval(ctx context.Context, rec *domain.RetrievalTelemetry) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO retrieval_telemetry
			(id, session_id, mode, degraded, latency_ms, result_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.SessionID, string(rec.Mode), rec.Degraded,
		rec.LatencyMs, rec.ResultCount, rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("recording retrieval: %w", err)
	}
	return nil
}

// DeleteOlderThan removes records created before the horizon.
func (s *telemetryStore) DeleteOlderThan(ctx context.Context, horizon time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM retrieval_telemetry WHERE created_at < ?", horizon)
	if err != nil {
		return 0, fmt.Errorf("deleting telemetry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted telemetry: %w", err)
	}
	return int(n), nil
}
