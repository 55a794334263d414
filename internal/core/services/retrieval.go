package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
	"github.com/docuchat/ragcore/internal/core/ports/driving"
	"github.com/docuchat/ragcore/internal/index"
	"github.com/docuchat/ragcore/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.Retriever = (*RetrievalService)(nil)

// Retrieval defaults.
const (
	// DefaultTopK is how many chunks semantic retrieval returns.
	DefaultTopK = 5

	// DefaultMinScore is the similarity floor for semantic matches.
	DefaultMinScore = 0.3

	// DefaultBasicLimit bounds how many whole documents basic mode
	// returns.
	DefaultBasicLimit = 5
)

// RetrievalService answers chat-time retrieval requests. Semantic
// mode embeds the query through the shared cache-then-model path and
// re-ranks vector index candidates; basic mode ranks whole active
// documents by lexical overlap then recency. Retrieval never fails
// the user-visible request: a query that cannot be embedded degrades
// to basic mode with the Degraded flag set.
type RetrievalService struct {
	docStore  driven.DocumentStore
	idx       *index.Index
	embedder  *cachedEmbedder
	telemetry driven.TelemetryStore

	topK     int
	minScore float64
}

// RetrievalOption configures the retrieval service.
type RetrievalOption func(*RetrievalService)

// WithTopK sets how many chunks semantic mode returns.
func WithTopK(k int) RetrievalOption {
	return func(s *RetrievalService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithMinScore sets the similarity floor for semantic matches.
func WithMinScore(score float64) RetrievalOption {
	return func(s *RetrievalService) {
		if score >= 0 && score <= 1 {
			s.minScore = score
		}
	}
}

// NewRetrievalService creates a retrieval service. idx and model may
// be nil, in which case semantic requests always degrade to basic;
// telemetry may be nil to disable observability records.
func NewRetrievalService(
	docStore driven.DocumentStore,
	idx *index.Index,
	model driven.EmbeddingService,
	cache driven.EmbeddingCache,
	limiter *rate.Limiter,
	telemetry driven.TelemetryStore,
	opts ...RetrievalOption,
) *RetrievalService {
	s := &RetrievalService{
		docStore:  docStore,
		idx:       idx,
		embedder:  newCachedEmbedder(model, cache, limiter),
		telemetry: telemetry,
		topK:      DefaultTopK,
		minScore:  DefaultMinScore,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns passages relevant to query for the session.
func (s *RetrievalService) Retrieve(
	ctx context.Context, sessionID, query string, mode domain.RetrievalMode,
) (*domain.RetrievalResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown retrieval mode %q: %w", mode, domain.ErrInvalidInput)
	}

	logger.Section("Retrieval")
	logger.Debug("retrieve: session=%s mode=%s query=%q", sessionID, mode, query)

	started := time.Now()
	var result *domain.RetrievalResult

	if mode == domain.RetrievalModeSemantic {
		result = s.semantic(ctx, sessionID, query)
	} else {
		result = s.basic(ctx, sessionID, query)
	}

	// LatencyMs excludes embedding-model network time, which is
	// reported separately in QueryEmbedMs
	result.LatencyMs = time.Since(started).Milliseconds() - result.QueryEmbedMs
	if result.LatencyMs < 0 {
		result.LatencyMs = 0
	}

	s.recordTelemetry(ctx, sessionID, result)

	return result, nil
}

// semantic embeds the query and searches the vector index restricted
// to the session's active documents. Any failure on the embedding
// path degrades to basic mode rather than erroring.
func (s *RetrievalService) semantic(ctx context.Context, sessionID, query string) *domain.RetrievalResult {
	if s.idx == nil {
		logger.Warn("retrieve: vector index not configured, degrading to basic")
		result := s.basic(ctx, sessionID, query)
		result.Degraded = true
		return result
	}

	embedStart := time.Now()
	queryVec, cached, err := s.embedder.embed(ctx, query)
	embedMs := time.Since(embedStart).Milliseconds()
	if err != nil {
		logger.Warn("retrieve: query embedding failed (%v), degrading to basic", err)
		result := s.basic(ctx, sessionID, query)
		result.Degraded = true
		return result
	}
	if cached {
		embedMs = 0
	}

	active, err := s.docStore.ListActiveDocuments(ctx, sessionID)
	if err != nil {
		logger.Warn("retrieve: listing active documents failed (%v), degrading to basic", err)
		result := s.basic(ctx, sessionID, query)
		result.Degraded = true
		return result
	}

	docIDs := make([]string, len(active))
	for i := range active {
		docIDs[i] = active[i].ID
	}
	if len(docIDs) == 0 {
		return &domain.RetrievalResult{
			Mode:         domain.RetrievalModeSemantic,
			QueryEmbedMs: embedMs,
			Semantic:     &domain.SemanticResult{},
		}
	}

	matches, err := s.idx.FindSimilar(ctx, queryVec, index.SearchOptions{
		K:           s.topK,
		MinScore:    s.minScore,
		DocumentIDs: docIDs,
	})
	if err != nil {
		logger.Warn("retrieve: index search failed (%v), degrading to basic", err)
		result := s.basic(ctx, sessionID, query)
		result.Degraded = true
		return result
	}

	semantic := &domain.SemanticResult{
		Chunks: make([]domain.RankedChunk, 0, len(matches)),
	}

	var sum float64
	for _, m := range matches {
		chunk, err := s.docStore.GetChunk(ctx, m.Embedding.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // chunk deleted under us, skip
			}
			logger.Warn("retrieve: hydrating chunk %s: %v", m.Embedding.ChunkID, err)
			continue
		}
		semantic.Chunks = append(semantic.Chunks, domain.RankedChunk{
			Chunk:      *chunk,
			Similarity: m.Similarity,
		})
		sum += m.Similarity
	}

	if len(semantic.Chunks) > 0 {
		semantic.TopScore = semantic.Chunks[0].Similarity
		semantic.AverageScore = sum / float64(len(semantic.Chunks))
	}

	logger.Info("retrieve: semantic returned %d chunks (top %.3f)", len(semantic.Chunks), semantic.TopScore)

	return &domain.RetrievalResult{
		Mode:         domain.RetrievalModeSemantic,
		QueryEmbedMs: embedMs,
		Semantic:     semantic,
	}
}

// basic returns whole active documents ranked by lexical overlap with
// the query, then recency.
func (s *RetrievalService) basic(ctx context.Context, sessionID, query string) *domain.RetrievalResult {
	result := &domain.RetrievalResult{
		Mode:  domain.RetrievalModeBasic,
		Basic: &domain.BasicResult{},
	}

	active, err := s.docStore.ListActiveDocuments(ctx, sessionID)
	if err != nil {
		logger.Warn("retrieve: listing active documents: %v", err)
		return result
	}

	terms := strings.Fields(strings.ToLower(query))
	overlap := func(doc *domain.Document) int {
		content := strings.ToLower(doc.Content)
		score := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				score++
			}
		}
		return score
	}

	sort.Slice(active, func(i, j int) bool {
		oi, oj := overlap(&active[i]), overlap(&active[j])
		if oi != oj {
			return oi > oj
		}
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})

	if len(active) > DefaultBasicLimit {
		active = active[:DefaultBasicLimit]
	}
	result.Basic.Documents = active

	logger.Info("retrieve: basic returned %d documents", len(active))
	return result
}

// recordTelemetry persists one observability record. Failures are
// logged, never surfaced.
func (s *RetrievalService) recordTelemetry(ctx context.Context, sessionID string, result *domain.RetrievalResult) {
	if s.telemetry == nil {
		return
	}

	count := 0
	if result.Semantic != nil {
		count = len(result.Semantic.Chunks)
	} else if result.Basic != nil {
		count = len(result.Basic.Documents)
	}

	rec := &domain.RetrievalTelemetry{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Mode:        result.Mode,
		Degraded:    result.Degraded,
		LatencyMs:   result.LatencyMs,
		ResultCount: count,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.telemetry.RecordRetrieval(ctx, rec); err != nil {
		logger.Warn("retrieve: recording telemetry: %v", err)
	}
}
