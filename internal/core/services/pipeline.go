package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
	"github.com/docuchat/ragcore/internal/core/ports/driving"
	"github.com/docuchat/ragcore/internal/index"
	"github.com/docuchat/ragcore/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.PipelineController = (*Pipeline)(nil)

// Pipeline defaults.
const (
	DefaultBatchSize     = 16
	DefaultYieldInterval = 50 * time.Millisecond
	DefaultPollInterval  = 5 * time.Second
	DefaultLeaseTTL      = 15 * time.Second
	DefaultMaxRetries    = 3
)

// PipelineConfig tunes the embedding pipeline.
type PipelineConfig struct {
	// BatchSize bounds how many chunks one batch processes.
	BatchSize int

	// YieldInterval is how long the loop suspends between batches so
	// it never monopolises the host scheduler.
	YieldInterval time.Duration

	// PollInterval is the fallback re-scan interval when the store's
	// change notifications are quiet.
	PollInterval time.Duration

	// LeaseTTL is the leader lease duration. Leadership is
	// re-validated at every batch boundary.
	LeaseTTL time.Duration

	// MaxRetries bounds embedding attempts per chunk before it is
	// marked as an error.
	MaxRetries int

	// RetryInitialInterval seeds the exponential backoff between
	// attempts. Defaults to 200ms.
	RetryInitialInterval time.Duration
}

func (c *PipelineConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.YieldInterval <= 0 {
		c.YieldInterval = DefaultYieldInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 200 * time.Millisecond
	}
}

// Pipeline watches the chunk collection for unembedded chunks,
// computes vectors through the cache-then-model path, and writes them
// into the vector index.
//
// Only the elected leader writes; other contexts observe status
// reactively. Progress lives in a persisted checkpoint rather than
// process memory, so any newly elected leader resumes where the
// previous one stopped.
type Pipeline struct {
	cfg      PipelineConfig
	docStore driven.DocumentStore
	vectors  driven.VectorStore
	cpStore  driven.CheckpointStore
	leader   driven.LeaderElector
	embedder *cachedEmbedder
	index    *index.Index
	holderID string

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	processing int
	resetGen   int
}

// NewPipeline creates an embedding pipeline. limiter may be nil to
// disable model-call throttling; cache may be nil to always call the
// model.
func NewPipeline(
	cfg PipelineConfig,
	docStore driven.DocumentStore,
	vectors driven.VectorStore,
	cpStore driven.CheckpointStore,
	leader driven.LeaderElector,
	model driven.EmbeddingService,
	cache driven.EmbeddingCache,
	limiter *rate.Limiter,
	ix *index.Index,
) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{
		cfg:      cfg,
		docStore: docStore,
		vectors:  vectors,
		cpStore:  cpStore,
		leader:   leader,
		embedder: newCachedEmbedder(model, cache, limiter),
		index:    ix,
		holderID: uuid.New().String(),
	}
}

// Start runs the pipeline loop until ctx is cancelled or Stop is
// called. Blocks.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return domain.ErrPipelineRunning
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()

		// Release promptly so another context can take over
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := p.leader.Release(releaseCtx, p.holderID); err != nil {
			logger.Warn("pipeline: releasing lease: %v", err)
		}
	}()

	changes, err := p.docStore.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching chunk collection: %w", err)
	}

	for {
		worked, err := p.runBatch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, domain.ErrNotLeader) {
			logger.Warn("pipeline: batch failed: %v", err)
		}

		// Cooperative yield: one bounded batch, then suspend. This is
		// the loop's only suspension point.
		wait := p.cfg.PollInterval
		if worked {
			wait = p.cfg.YieldInterval
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-changes:
		case <-time.After(wait):
		}
	}
}

// Stop gracefully shuts the loop down.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	close(p.stopCh)
	p.running = false
	return nil
}

// runBatch processes at most one batch of chunks. Returns whether any
// chunk was processed.
func (p *Pipeline) runBatch(ctx context.Context) (bool, error) {
	ok, err := p.leader.Acquire(ctx, p.holderID, p.cfg.LeaseTTL)
	if err != nil {
		return false, fmt.Errorf("acquiring lease: %w", err)
	}
	if !ok {
		return false, nil
	}

	p.mu.Lock()
	gen := p.resetGen
	p.mu.Unlock()

	cp, err := p.cpStore.LoadCheckpoint(ctx)
	if err != nil {
		return false, fmt.Errorf("loading checkpoint: %w", err)
	}

	chunks, next, err := p.docStore.ListChunks(ctx, cp.Cursor, p.cfg.BatchSize)
	if err != nil {
		return false, fmt.Errorf("listing chunks: %w", err)
	}
	if len(chunks) == 0 {
		return false, nil
	}

	p.mu.Lock()
	p.processing = len(chunks)
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.processing = 0
		p.mu.Unlock()
	}()

	logger.Debug("pipeline: batch of %d chunks from cursor %q", len(chunks), cp.Cursor)

	touched := make(map[string]bool)

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}

		// Leadership is re-validated per chunk write, never assumed
		// for the process lifetime
		still, err := p.leader.Renew(ctx, p.holderID, p.cfg.LeaseTTL)
		if err != nil {
			return true, fmt.Errorf("renewing lease: %w", err)
		}
		if !still {
			logger.Info("pipeline: lost leadership mid-batch, stopping")
			return true, domain.ErrNotLeader
		}

		touched[chunk.DocumentID] = true

		// Idempotency: a crash between insert and checkpoint save
		// must not produce a second embedding
		exists, err := p.vectors.ExistsForChunk(ctx, chunk.ID)
		if err != nil {
			logger.Warn("pipeline: existence check for chunk %s: %v", chunk.ID, err)
			continue
		}
		if exists {
			continue
		}

		if err := p.embedChunk(ctx, chunk); err != nil {
			logger.Warn("pipeline: chunk %s failed after retries: %v", chunk.ID, err)
			// Recorded in the checkpoint, not process memory, so a
			// newly elected leader still knows about the failure
			cp.MarkFailed(chunk.ID)
			continue
		}
		cp.Completed++
	}

	// A Reset while this batch ran already cleared the checkpoint;
	// writing the stale one back would resurrect the old cursor and
	// failure list. The next scan redoes this batch, the idempotency
	// check skips what was already inserted.
	p.mu.Lock()
	stale := gen != p.resetGen
	p.mu.Unlock()
	if stale {
		return true, nil
	}

	cp.Cursor = next
	if err := p.cpStore.SaveCheckpoint(ctx, cp); err != nil {
		return true, fmt.Errorf("saving checkpoint: %w", err)
	}

	for docID := range touched {
		if err := p.updateDocumentStatus(ctx, docID, cp); err != nil {
			logger.Warn("pipeline: updating status for document %s: %v", docID, err)
		}
	}

	return true, nil
}

// embedChunk computes and stores one chunk's embedding, retrying
// transient model failures with exponential backoff.
func (p *Pipeline) embedChunk(ctx context.Context, chunk domain.DocumentChunk) error {
	var vec []float32

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryInitialInterval
	bo.MaxElapsedTime = 0 // bounded by retry count, not wall clock

	attempt := func() error {
		v, cached, err := p.embedder.embed(ctx, chunk.Text)
		if err != nil {
			return err
		}
		if cached {
			logger.Debug("pipeline: cache hit for chunk %s", chunk.ID)
		}
		vec = v
		return nil
	}

	err := backoff.Retry(attempt,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.cfg.MaxRetries-1)), ctx))
	if err != nil {
		return err
	}

	doc, err := p.docStore.GetDocument(ctx, chunk.DocumentID)
	if err != nil {
		return fmt.Errorf("getting owning document: %w", err)
	}

	return p.index.Insert(ctx, &domain.VectorEmbedding{
		ChunkID:    chunk.ID,
		DocumentID: chunk.DocumentID,
		SessionID:  doc.SessionID,
		ChunkIndex: chunk.ChunkIndex,
		Vector:     vec,
	})
}

// updateDocumentStatus recomputes a document's embedding status from
// the counts on record.
func (p *Pipeline) updateDocumentStatus(ctx context.Context, docID string, cp *domain.Checkpoint) error {
	doc, err := p.docStore.GetDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil // deleted mid-batch
		}
		return err
	}

	embedded, err := p.vectors.CountForDocument(ctx, docID)
	if err != nil {
		return err
	}

	status := domain.EmbeddingStatusPending
	switch {
	case doc.ChunkCount > 0 && embedded >= doc.ChunkCount:
		status = domain.EmbeddingStatusComplete
	case p.hasFailedChunks(ctx, docID, cp):
		status = domain.EmbeddingStatusError
	}

	if doc.EmbeddingStatus == status {
		return nil
	}
	doc.EmbeddingStatus = status
	doc.UpdatedAt = time.Now().UTC()
	return p.docStore.SaveDocument(ctx, doc)
}

// hasFailedChunks reports whether any chunk of the document has
// exhausted its retries.
func (p *Pipeline) hasFailedChunks(ctx context.Context, docID string, cp *domain.Checkpoint) bool {
	chunks, err := p.docStore.GetChunks(ctx, docID)
	if err != nil {
		return false
	}

	for _, chunk := range chunks {
		if cp.HasFailed(chunk.ID) {
			return true
		}
	}
	return false
}

// Status returns current pipeline progress. Everything is derived
// from store counts and the persisted checkpoint so any context can
// observe it, not just the leader, and a restart reports the same
// numbers the previous leader left behind.
func (p *Pipeline) Status(ctx context.Context) (domain.PipelineStatus, error) {
	_, totalChunks, err := p.docStore.Counts(ctx)
	if err != nil {
		return domain.PipelineStatus{}, fmt.Errorf("counting chunks: %w", err)
	}

	embedded, err := p.vectors.Count(ctx)
	if err != nil {
		return domain.PipelineStatus{}, fmt.Errorf("counting embeddings: %w", err)
	}

	cp, err := p.cpStore.LoadCheckpoint(ctx)
	if err != nil {
		return domain.PipelineStatus{}, fmt.Errorf("loading checkpoint: %w", err)
	}
	failures := len(cp.FailedChunks)

	p.mu.Lock()
	processing := p.processing
	p.mu.Unlock()

	pending := totalChunks - embedded - failures
	if pending < 0 {
		pending = 0
	}

	return domain.PipelineStatus{
		Pending:    pending,
		Processing: processing,
		Completed:  embedded,
		Errors:     failures,
	}, nil
}

// AwaitIdle suspends the caller until no work remains or ctx is done.
func (p *Pipeline) AwaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		status, err := p.Status(ctx)
		if err != nil {
			return err
		}
		if status.Idle() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reset clears the checkpoint, including the failed-chunk record,
// forcing a full re-scan. Existing embeddings are kept; the
// idempotency check skips them on the next pass.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := p.cpStore.ResetCheckpoint(ctx); err != nil {
		return fmt.Errorf("resetting checkpoint: %w", err)
	}
	p.mu.Lock()
	p.resetGen++
	p.mu.Unlock()
	return nil
}
