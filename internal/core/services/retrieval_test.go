package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/ragcore/internal/adapters/driven/storage/memory"
	"github.com/docuchat/ragcore/internal/chunker"
	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driving"
)

type retrievalFixture struct {
	*pipelineFixture
	telemetry *memory.TelemetryStore
	retriever *RetrievalService
}

func newRetrievalFixture(t *testing.T, opts ...RetrievalOption) *retrievalFixture {
	t.Helper()
	f := &retrievalFixture{
		pipelineFixture: newPipelineFixture(t),
		telemetry:       memory.NewTelemetryStore(),
	}
	f.retriever = NewRetrievalService(
		f.docStore, f.index, f.model, f.cache, nil, f.telemetry, opts...)
	return f
}

func TestRetrieve_RejectsUnknownMode(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.retriever.Retrieve(context.Background(), "sess-1", "query", domain.RetrievalMode("fuzzy"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrieve_BasicRanksByOverlapThenRecency(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()

	f.addDocument(t, "nothing relevant in this one at all")
	match := f.addDocument(t, "penguins live in antarctica and eat fish")

	result, err := f.retriever.Retrieve(ctx, "sess-1", "penguins antarctica", domain.RetrievalModeBasic)
	require.NoError(t, err)

	assert.Equal(t, domain.RetrievalModeBasic, result.Mode)
	assert.False(t, result.Degraded)
	require.NotNil(t, result.Basic)
	require.Len(t, result.Basic.Documents, 2)
	assert.Equal(t, match.ID, result.Basic.Documents[0].ID)
	assert.Zero(t, result.QueryEmbedMs)
}

func TestRetrieve_BasicOnlyActiveDocuments(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()

	doc := f.addDocument(t, "some session scoped content")
	require.NoError(t, f.docs.DeactivateFromSession(ctx, doc.ID, "sess-1"))

	result, err := f.retriever.Retrieve(ctx, "sess-1", "content", domain.RetrievalModeBasic)
	require.NoError(t, err)
	assert.Empty(t, result.Basic.Documents)
}

func TestRetrieve_SemanticFindsRelevantChunk(t *testing.T) {
	f := newRetrievalFixture(t, WithMinScore(0.0))
	ctx := context.Background()

	doc := f.addDocument(t, strings.Repeat("semantic search target text ", 5))
	f.runUntilIdle(t)

	// Querying with a chunk's exact text embeds to the same vector,
	// so that chunk must rank first with similarity 1
	chunks, err := f.docStore.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	result, err := f.retriever.Retrieve(ctx, "sess-1", chunks[0].Text, domain.RetrievalModeSemantic)
	require.NoError(t, err)

	assert.Equal(t, domain.RetrievalModeSemantic, result.Mode)
	assert.False(t, result.Degraded)
	require.NotNil(t, result.Semantic)
	require.NotEmpty(t, result.Semantic.Chunks)

	top := result.Semantic.Chunks[0]
	assert.Equal(t, chunks[0].ID, top.Chunk.ID)
	assert.InDelta(t, 1.0, top.Similarity, 1e-4)
	assert.InDelta(t, top.Similarity, result.Semantic.TopScore, 1e-9)
}

func TestRetrieve_SemanticScopedToSession(t *testing.T) {
	f := newRetrievalFixture(t, WithMinScore(0.0))
	ctx := context.Background()

	doc := f.addDocument(t, strings.Repeat("scoped session content ", 5))
	f.runUntilIdle(t)
	require.NoError(t, f.docs.DeactivateFromSession(ctx, doc.ID, "sess-1"))

	result, err := f.retriever.Retrieve(ctx, "sess-1", "scoped session content", domain.RetrievalModeSemantic)
	require.NoError(t, err)

	assert.Equal(t, domain.RetrievalModeSemantic, result.Mode)
	require.NotNil(t, result.Semantic)
	assert.Empty(t, result.Semantic.Chunks)
}

func TestRetrieve_DegradesWhenModelFails(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()

	f.addDocument(t, "fallback content about llamas")
	f.model.fail = true

	result, err := f.retriever.Retrieve(ctx, "sess-1", "llamas", domain.RetrievalModeSemantic)
	require.NoError(t, err, "degradation must not surface as an error")

	assert.Equal(t, domain.RetrievalModeBasic, result.Mode)
	assert.True(t, result.Degraded)
	require.NotNil(t, result.Basic)
	assert.Len(t, result.Basic.Documents, 1)
	assert.Nil(t, result.Semantic)
}

func TestRetrieve_DegradesWithoutIndex(t *testing.T) {
	docStore := memory.NewDocumentStore()
	docs := NewDocumentService(docStore, nil, nil, chunker.New())
	retriever := NewRetrievalService(docStore, nil, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := docs.AddDocument(ctx, "indexless content", driving.DocumentUpload{
		UserID: "user-1", SessionID: "sess-1",
	})
	require.NoError(t, err)

	result, err := retriever.Retrieve(ctx, "sess-1", "indexless", domain.RetrievalModeSemantic)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, domain.RetrievalModeBasic, result.Mode)
}

func TestRetrieve_CachedQuerySkipsModel(t *testing.T) {
	f := newRetrievalFixture(t, WithMinScore(0.0))
	ctx := context.Background()

	f.addDocument(t, strings.Repeat("cache warm query text ", 5))
	f.runUntilIdle(t)

	calls := f.model.callCount()
	_, err := f.retriever.Retrieve(ctx, "sess-1", "cache warm query text", domain.RetrievalModeSemantic)
	require.NoError(t, err)
	first := f.model.callCount()
	assert.Equal(t, calls+1, first)

	// Same query again comes from cache
	result, err := f.retriever.Retrieve(ctx, "sess-1", "cache warm query text", domain.RetrievalModeSemantic)
	require.NoError(t, err)
	assert.Equal(t, first, f.model.callCount())
	assert.Zero(t, result.QueryEmbedMs)
}

func TestRetrieve_RecordsTelemetry(t *testing.T) {
	f := newRetrievalFixture(t)
	ctx := context.Background()

	f.addDocument(t, "telemetry content")

	_, err := f.retriever.Retrieve(ctx, "sess-1", "telemetry", domain.RetrievalModeBasic)
	require.NoError(t, err)

	f.model.fail = true
	_, err = f.retriever.Retrieve(ctx, "sess-1", "telemetry", domain.RetrievalModeSemantic)
	require.NoError(t, err)

	assert.Equal(t, 2, f.telemetry.Len())
}

func TestRetrieve_TopKBound(t *testing.T) {
	f := newRetrievalFixture(t, WithTopK(2), WithMinScore(0.0))
	ctx := context.Background()

	f.addDocument(t, strings.Repeat("bounded result set content words ", 8))
	f.runUntilIdle(t)

	result, err := f.retriever.Retrieve(ctx, "sess-1", "bounded result set", domain.RetrievalModeSemantic)
	require.NoError(t, err)
	require.NotNil(t, result.Semantic)
	assert.LessOrEqual(t, len(result.Semantic.Chunks), 2)
}

func TestRetrieve_MinScoreFiltersWeakMatches(t *testing.T) {
	f := newRetrievalFixture(t, WithMinScore(0.999))
	ctx := context.Background()

	f.addDocument(t, strings.Repeat("high threshold content ", 5))
	f.runUntilIdle(t)

	// An unrelated query cannot clear a near-exact threshold
	result, err := f.retriever.Retrieve(ctx, "sess-1", "zzz completely unrelated qqq", domain.RetrievalModeSemantic)
	require.NoError(t, err)
	require.NotNil(t, result.Semantic)
	assert.Empty(t, result.Semantic.Chunks)
}
