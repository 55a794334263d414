package driven

import (
	"context"
	"time"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// TelemetryStore persists retrieval telemetry records.
type TelemetryStore interface {
	// RecordRetrieval stores one retrieval telemetry record.
	RecordRetrieval(ctx context.Context, rec *domain.RetrievalTelemetry) error

	// DeleteOlderThan removes records created before the horizon,
	// returning the number deleted.
	DeleteOlderThan(ctx context.Context, horizon time.Time) (int, error)
}
