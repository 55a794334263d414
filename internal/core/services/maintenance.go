package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
	"github.com/docuchat/ragcore/internal/core/ports/driving"
	"github.com/docuchat/ragcore/internal/logger"
)

// Ensure MaintenanceService implements the interface.
var _ driving.Maintenance = (*MaintenanceService)(nil)

// DefaultTelemetryRetention is how long telemetry records are kept.
const DefaultTelemetryRetention = 30 * 24 * time.Hour

// MaintenanceService cascades document deletion and reclaims records
// orphaned by partial failures.
type MaintenanceService struct {
	docStore  driven.DocumentStore
	vectors   driven.VectorStore
	telemetry driven.TelemetryStore
	retention time.Duration
}

// NewMaintenanceService creates a maintenance service. telemetry may
// be nil; retention <= 0 uses the default horizon.
func NewMaintenanceService(
	docStore driven.DocumentStore,
	vectors driven.VectorStore,
	telemetry driven.TelemetryStore,
	retention time.Duration,
) *MaintenanceService {
	if retention <= 0 {
		retention = DefaultTelemetryRetention
	}
	return &MaintenanceService{
		docStore:  docStore,
		vectors:   vectors,
		telemetry: telemetry,
		retention: retention,
	}
}

// DeleteDocument cascades deletion: embeddings, then chunks, then the
// document record. The cascade is best-effort, not transactional:
// every stage is attempted even when an earlier one fails, and
// failures come back aggregated as *domain.CascadeError. The sweep
// reclaims whatever a partial failure leaves behind.
func (s *MaintenanceService) DeleteDocument(ctx context.Context, id string) error {
	var stages []domain.StageError

	if _, err := s.vectors.DeleteForDocument(ctx, id); err != nil {
		stages = append(stages, domain.StageError{Stage: domain.CascadeStageEmbeddings, Err: err})
		logger.Warn("maintenance: deleting embeddings for %s: %v", id, err)
	}

	if _, err := s.docStore.DeleteChunks(ctx, id); err != nil {
		stages = append(stages, domain.StageError{Stage: domain.CascadeStageChunks, Err: err})
		logger.Warn("maintenance: deleting chunks for %s: %v", id, err)
	}

	if err := s.docStore.DeleteDocument(ctx, id); err != nil {
		stages = append(stages, domain.StageError{Stage: domain.CascadeStageDocument, Err: err})
		logger.Warn("maintenance: deleting document %s: %v", id, err)
	}

	if len(stages) > 0 {
		return &domain.CascadeError{DocumentID: id, Stages: stages}
	}
	return nil
}

// ClearDocumentEmbeddings deletes chunks and embeddings but keeps the
// document shell, for re-embedding after a model change.
func (s *MaintenanceService) ClearDocumentEmbeddings(ctx context.Context, id string) error {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("getting document: %w", err)
	}

	if _, err := s.vectors.DeleteForDocument(ctx, id); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	if _, err := s.docStore.DeleteChunks(ctx, id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	doc.ChunkCount = 0
	doc.EmbeddingStatus = domain.EmbeddingStatusNone
	doc.UpdatedAt = time.Now().UTC()
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetOrphanedDocuments returns the user's documents with no active
// session. Orphans are eligible for reclamation but never auto-deleted.
func (s *MaintenanceService) GetOrphanedDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	docs, err := s.docStore.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	orphans := make([]domain.Document, 0)
	for i := range docs {
		if docs[i].IsOrphaned() {
			orphans = append(orphans, docs[i])
		}
	}
	return orphans, nil
}

// Sweep reclaims records stranded by partial failures:
//
//   - chunks and embeddings whose document no longer resolves
//   - documents still pending whose chunk set never fully landed
//     (crash mid-upload), which are purged rather than completed
//   - telemetry older than the retention horizon
func (s *MaintenanceService) Sweep(ctx context.Context) (*driving.SweepReport, error) {
	report := &driving.SweepReport{}

	docIDs, err := s.docStore.ListDocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing document ids: %w", err)
	}
	known := make(map[string]bool, len(docIDs))
	for _, id := range docIDs {
		known[id] = true
	}

	// Dangling chunks
	chunkDocIDs, err := s.docStore.ListChunkDocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing chunk document ids: %w", err)
	}
	for _, docID := range chunkDocIDs {
		if known[docID] {
			continue
		}
		n, err := s.docStore.DeleteChunks(ctx, docID)
		if err != nil {
			logger.Warn("maintenance: sweeping chunks for %s: %v", docID, err)
			continue
		}
		report.DanglingChunks += n
	}

	// Dangling embeddings
	embDocIDs, err := s.vectors.ListDocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing embedding document ids: %w", err)
	}
	for _, docID := range embDocIDs {
		if known[docID] {
			continue
		}
		n, err := s.vectors.DeleteForDocument(ctx, docID)
		if err != nil {
			logger.Warn("maintenance: sweeping embeddings for %s: %v", docID, err)
			continue
		}
		report.DanglingEmbeddings += n
	}

	// Incomplete uploads: pending documents with fewer chunks than
	// declared are purged
	for _, docID := range docIDs {
		doc, err := s.docStore.GetDocument(ctx, docID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("getting document %s: %w", docID, err)
		}
		if doc.EmbeddingStatus != domain.EmbeddingStatusPending {
			continue
		}
		count, err := s.docStore.CountChunks(ctx, docID)
		if err != nil {
			logger.Warn("maintenance: counting chunks for %s: %v", docID, err)
			continue
		}
		if count < doc.ChunkCount {
			logger.Info("maintenance: purging incomplete document %s (%d/%d chunks)",
				docID, count, doc.ChunkCount)
			if err := s.DeleteDocument(ctx, docID); err != nil {
				logger.Warn("maintenance: purging %s: %v", docID, err)
				continue
			}
			report.PurgedDocuments++
		}
	}

	// Expired telemetry
	if s.telemetry != nil {
		n, err := s.telemetry.DeleteOlderThan(ctx, time.Now().Add(-s.retention))
		if err != nil {
			logger.Warn("maintenance: expiring telemetry: %v", err)
		} else {
			report.ExpiredTelemetry = n
		}
	}

	return report, nil
}
