package driving

import (
	"context"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// PipelineController exposes embedding pipeline control and
// observation. Only the elected leader performs writes; non-leader
// contexts may observe status freely.
type PipelineController interface {
	// Start runs the pipeline loop until ctx is cancelled or Stop is
	// called. Blocks.
	Start(ctx context.Context) error

	// Stop gracefully shuts the loop down.
	Stop() error

	// Status returns current pipeline progress.
	Status(ctx context.Context) (domain.PipelineStatus, error)

	// AwaitIdle suspends the caller until no work remains or ctx is
	// cancelled.
	AwaitIdle(ctx context.Context) error

	// Reset clears the checkpoint, forcing a full re-scan.
	Reset(ctx context.Context) error
}
