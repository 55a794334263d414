package sqlite

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "ragcore-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// testDocument builds a document with sensible defaults.
func testDocument(id string) *domain.Document {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Document{
		ID:              id,
		UserID:          "user-1",
		Filename:        id + ".txt",
		Content:         "content of " + id,
		MimeType:        "text/plain",
		SizeBytes:       64,
		SessionID:       "sess-1",
		ActiveSessions:  []string{"sess-1"},
		ChunkCount:      2,
		EmbeddingStatus: domain.EmbeddingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// testChunks builds n chunks for a document.
func testChunks(docID string, n int) []domain.DocumentChunk {
	chunks := make([]domain.DocumentChunk, n)
	for i := range chunks {
		chunks[i] = domain.DocumentChunk{
			ID:              fmt.Sprintf("%s-chunk-%d", docID, i),
			DocumentID:      docID,
			ChunkIndex:      i,
			Text:            fmt.Sprintf("chunk %d of %s", i, docID),
			CharOffsetStart: i * 10,
			CharOffsetEnd:   (i + 1) * 10,
		}
	}
	return chunks
}

// testEmbedding builds an embedding for a chunk.
func testEmbedding(chunkID, docID string, chunkIndex int, key string) *domain.VectorEmbedding {
	emb := &domain.VectorEmbedding{
		ID:         "emb-" + chunkID,
		ChunkID:    chunkID,
		DocumentID: docID,
		SessionID:  "sess-1",
		ChunkIndex: chunkIndex,
		Vector:     []float32{0.1, 0.2, 0.3},
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	for i := range emb.DistanceKeys {
		emb.DistanceKeys[i] = key
	}
	return emb
}

func TestNewStore_RunsMigrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	// Migrations are idempotent across reopen
	path := store.Path()
	assert.FileExists(t, path)

	var version int
	err := store.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, 1)
}

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	doc := testDocument("doc-1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.ActiveSessions, got.ActiveSessions)
	assert.Equal(t, doc.EmbeddingStatus, got.EmbeddingStatus)

	_, err = docs.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_SaveDocumentUpserts(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	doc := testDocument("doc-1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	doc.ActiveSessions = []string{"sess-1", "sess-2"}
	doc.AccessCount = 3
	doc.EmbeddingStatus = domain.EmbeddingStatusComplete
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1", "sess-2"}, got.ActiveSessions)
	assert.Equal(t, 3, got.AccessCount)
	assert.Equal(t, domain.EmbeddingStatusComplete, got.EmbeddingStatus)
}

func TestDocumentStore_ChunkRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	chunks := testChunks("doc-1", 3)
	require.NoError(t, docs.SaveChunks(ctx, chunks))

	got, err := docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, chunk := range got {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, chunks[i].Text, chunk.Text)
	}

	one, err := docs.GetChunk(ctx, chunks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, chunks[1].Text, one.Text)

	count, err := docs.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDocumentStore_ListChunksPaging(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	require.NoError(t, docs.SaveChunks(ctx, testChunks("doc-1", 5)))

	var seen []string
	cursor := ""
	for {
		page, next, err := docs.ListChunks(ctx, cursor, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, chunk := range page {
			seen = append(seen, chunk.ID)
		}
		cursor = next
	}

	assert.Len(t, seen, 5)

	// Chunks written after the cursor show up on the next page
	require.NoError(t, docs.SaveChunks(ctx, testChunks("doc-2", 1)))
	page, _, err := docs.ListChunks(ctx, cursor, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "doc-2", page[0].DocumentID)
}

func TestDocumentStore_ListChunksRejectsBadCursor(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, _, err := store.DocumentStore().ListChunks(context.Background(), "not-a-cursor", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_DeleteChunksReportsCount(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	require.NoError(t, docs.SaveChunks(ctx, testChunks("doc-1", 4)))
	require.NoError(t, docs.SaveChunks(ctx, testChunks("doc-2", 2)))

	n, err := docs.DeleteChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, total, err := docs.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestDocumentStore_ListActiveDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	active := testDocument("doc-active")
	require.NoError(t, docs.SaveDocument(ctx, active))

	orphan := testDocument("doc-orphan")
	orphan.ActiveSessions = []string{}
	require.NoError(t, docs.SaveDocument(ctx, orphan))

	other := testDocument("doc-other")
	other.ActiveSessions = []string{"sess-2"}
	require.NoError(t, docs.SaveDocument(ctx, other))

	got, err := docs.ListActiveDocuments(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc-active", got[0].ID)
}

func TestDocumentStore_ListChunkDocumentIDsIncludesDangling(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	// Chunks without a document record still report their reference
	require.NoError(t, docs.SaveChunks(ctx, testChunks("ghost-doc", 2)))

	ids, err := docs.ListChunkDocumentIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost-doc"}, ids)
}

func TestDocumentStore_WatchSignalsOnChunkWrite(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	docs := store.DocumentStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := docs.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, docs.SaveChunks(ctx, testChunks("doc-1", 1)))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("watch channel never signalled")
	}
}

func TestVectorStore_InsertAndRange(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	vectors := store.VectorStore()

	require.NoError(t, vectors.Insert(ctx, testEmbedding("chunk-a", "doc-1", 0, "0.250000")))
	require.NoError(t, vectors.Insert(ctx, testEmbedding("chunk-b", "doc-1", 1, "0.500000")))
	require.NoError(t, vectors.Insert(ctx, testEmbedding("chunk-c", "doc-2", 0, "0.900000")))

	got, err := vectors.RangeByDistanceKey(ctx, 0, "0.200000", "0.600000")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, emb := range got {
		assert.NotEmpty(t, emb.Vector)
		assert.Equal(t, "doc-1", emb.DocumentID)
	}

	// Bounds are inclusive
	got, err = vectors.RangeByDistanceKey(ctx, 3, "0.900000", "0.900000")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestVectorStore_RangeRejectsBadAxis(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.VectorStore().RangeByDistanceKey(context.Background(), 5, "0", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorStore_RejectsDuplicateChunk(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	vectors := store.VectorStore()

	require.NoError(t, vectors.Insert(ctx, testEmbedding("chunk-a", "doc-1", 0, "0.100000")))

	dup := testEmbedding("chunk-a", "doc-1", 0, "0.100000")
	dup.ID = "emb-other"
	assert.ErrorIs(t, vectors.Insert(ctx, dup), domain.ErrAlreadyExists)

	exists, err := vectors.ExistsForChunk(ctx, "chunk-a")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestVectorStore_DeleteForDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	vectors := store.VectorStore()

	require.NoError(t, vectors.Insert(ctx, testEmbedding("chunk-a", "doc-1", 0, "0.100000")))
	require.NoError(t, vectors.Insert(ctx, testEmbedding("chunk-b", "doc-1", 1, "0.200000")))
	require.NoError(t, vectors.Insert(ctx, testEmbedding("chunk-c", "doc-2", 0, "0.300000")))

	n, err := vectors.DeleteForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	ids, err := vectors.ListDocumentIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-2"}, ids)
}

func TestSampleStore_RoundTripAndImmutability(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	samples := store.SampleStore()

	_, err := samples.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	set := &domain.SampleSet{
		Seed:       42,
		Dimensions: 3,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	for i := range set.Vectors {
		set.Vectors[i] = []float32{float32(i), float32(i) + 0.5, float32(i) + 0.25}
	}
	require.NoError(t, samples.Save(ctx, set))

	got, err := samples.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, set.Seed, got.Seed)
	assert.Equal(t, set.Dimensions, got.Dimensions)
	assert.Equal(t, set.Vectors, got.Vectors)

	// A second save must never replace the live set
	assert.ErrorIs(t, samples.Save(ctx, set), domain.ErrSampleSetImmutable)
}

func TestCheckpointStore_RoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	cps := store.CheckpointStore()

	cp, err := cps.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Empty(t, cp.Cursor)

	require.NoError(t, cps.SaveCheckpoint(ctx, &domain.Checkpoint{
		Cursor: "42", Completed: 10, Errors: 1,
		FailedChunks: []string{"chunk-9"},
	}))

	cp, err = cps.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", cp.Cursor)
	assert.Equal(t, 10, cp.Completed)
	assert.Equal(t, 1, cp.Errors)
	assert.Equal(t, []string{"chunk-9"}, cp.FailedChunks)
	assert.False(t, cp.UpdatedAt.IsZero())

	require.NoError(t, cps.ResetCheckpoint(ctx))
	cp, err = cps.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Empty(t, cp.Cursor)
	assert.Zero(t, cp.Completed)
}

func TestLeaderElector_SingleHolder(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	leader := store.LeaderElector()

	ok, err := leader.Acquire(ctx, "tab-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// A competing holder cannot take a live lease
	ok, err = leader.Acquire(ctx, "tab-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// The holder reacquires and renews freely
	ok, err = leader.Acquire(ctx, "tab-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = leader.Renew(ctx, "tab-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Release hands the lease over
	require.NoError(t, leader.Release(ctx, "tab-a"))
	ok, err = leader.Acquire(ctx, "tab-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaderElector_ExpiredLeaseIsClaimable(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	leader := store.LeaderElector()

	ok, err := leader.Acquire(ctx, "tab-a", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	ok, err = leader.Acquire(ctx, "tab-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// The stale holder cannot renew
	ok, err = leader.Renew(ctx, "tab-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTelemetryStore_RecordAndExpire(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	telemetry := store.TelemetryStore()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, telemetry.RecordRetrieval(ctx, &domain.RetrievalTelemetry{
		ID: "old", SessionID: "sess-1", Mode: domain.RetrievalModeBasic,
		CreatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, telemetry.RecordRetrieval(ctx, &domain.RetrievalTelemetry{
		ID: "fresh", SessionID: "sess-1", Mode: domain.RetrievalModeSemantic,
		Degraded: true, LatencyMs: 12, ResultCount: 3, CreatedAt: now,
	}))

	n, err := telemetry.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = telemetry.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
