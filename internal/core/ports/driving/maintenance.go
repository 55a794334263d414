package driving

import (
	"context"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// SweepReport summarises one maintenance sweep.
type SweepReport struct {
	// DanglingChunks is the number of chunks deleted because their
	// document no longer resolves.
	DanglingChunks int

	// DanglingEmbeddings is the number of embeddings deleted because
	// their document no longer resolves.
	DanglingEmbeddings int

	// PurgedDocuments is the number of incomplete uploads purged.
	PurgedDocuments int

	// ExpiredTelemetry is the number of telemetry records removed.
	ExpiredTelemetry int
}

// Maintenance exposes deletion and reclamation operations.
type Maintenance interface {
	// DeleteDocument cascades deletion: embeddings, then chunks, then
	// the document record. All stages are attempted even when an
	// earlier one fails; failures come back as *domain.CascadeError.
	DeleteDocument(ctx context.Context, id string) error

	// ClearDocumentEmbeddings deletes chunks and embeddings but keeps
	// the document shell, for re-embedding after a model change.
	ClearDocumentEmbeddings(ctx context.Context, id string) error

	// GetOrphanedDocuments returns the user's documents with no
	// active session.
	GetOrphanedDocuments(ctx context.Context, userID string) ([]domain.Document, error)

	// Sweep reclaims dangling chunks and embeddings, purges
	// incomplete uploads, and expires old telemetry.
	Sweep(ctx context.Context) (*SweepReport, error)
}
