package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// ==================== Vector Store ====================

// vectorStore implements driven.VectorStore. Distance keys live in
// five indexed TEXT columns so the index's per-axis candidate lookups
// become plain BETWEEN range scans.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// embeddingColumns is the shared select list for embedding queries.
const embeddingColumns = `id, chunk_id, document_id, session_id, chunk_index,
	vector, idx0, idx1, idx2, idx3, idx4, created_at`

// Insert stores an embedding record. A second embedding for the same
// chunk is rejected with domain.ErrAlreadyExists.
func (s *vectorStore) Insert(ctx context.Context, emb *domain.VectorEmbedding) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO embeddings
			(id, chunk_id, document_id, session_id, chunk_index,
			 vector, idx0, idx1, idx2, idx3, idx4, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, emb.ID, emb.ChunkID, emb.DocumentID, emb.SessionID, emb.ChunkIndex,
		float32SliceToBytes(emb.Vector),
		emb.DistanceKeys[0], emb.DistanceKeys[1], emb.DistanceKeys[2],
		emb.DistanceKeys[3], emb.DistanceKeys[4], emb.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("inserting embedding: %w", err)
	}
	return nil
}

// ExistsForChunk reports whether an embedding exists for the chunk.
func (s *vectorStore) ExistsForChunk(ctx context.Context, chunkID string) (bool, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE chunk_id = ?", chunkID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking embedding existence: %w", err)
	}
	return count > 0, nil
}

// RangeByDistanceKey returns embeddings whose key on the given sample
// axis lies within [low, high] inclusive.
func (s *vectorStore) RangeByDistanceKey(ctx context.Context, axis int, low, high string) ([]domain.VectorEmbedding, error) {
	if axis < 0 || axis >= domain.SampleCount {
		return nil, fmt.Errorf("sample axis %d out of range: %w", axis, domain.ErrInvalidInput)
	}

	// The column name is formatted in, not bound: SQLite cannot
	// parameterise identifiers, and axis is validated above.
	query := fmt.Sprintf(
		"SELECT %s FROM embeddings WHERE idx%d BETWEEN ? AND ?", embeddingColumns, axis)

	rows, err := s.store.db.QueryContext(ctx, query, low, high)
	if err != nil {
		return nil, fmt.Errorf("range scanning axis %d: %w", axis, err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// All returns every embedding.
func (s *vectorStore) All(ctx context.Context) ([]domain.VectorEmbedding, error) {
	rows, err := s.store.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM embeddings", embeddingColumns))
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// DeleteForChunk removes the embedding for a chunk, if any.
func (s *vectorStore) DeleteForChunk(ctx context.Context, chunkID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM embeddings WHERE chunk_id = ?", chunkID)
	if err != nil {
		return fmt.Errorf("deleting embedding: %w", err)
	}
	return nil
}

// DeleteForDocument removes all embeddings for a document.
func (s *vectorStore) DeleteForDocument(ctx context.Context, documentID string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted embeddings: %w", err)
	}
	return int(n), nil
}

// CountForDocument returns the number of embeddings for a document.
func (s *vectorStore) CountForDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE document_id = ?", documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return count, nil
}

// Count returns the total number of embeddings.
func (s *vectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return count, nil
}

// ListDocumentIDs returns the distinct document IDs with embeddings.
func (s *vectorStore) ListDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT DISTINCT document_id FROM embeddings")
	if err != nil {
		return nil, fmt.Errorf("querying embedding document ids: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// scanEmbeddings scans embedding rows.
func scanEmbeddings(rows *sql.Rows) ([]domain.VectorEmbedding, error) {
	var embs []domain.VectorEmbedding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var emb domain.VectorEmbedding
		var vectorBlob []byte
		if err := rows.Scan(&emb.ID, &emb.ChunkID, &emb.DocumentID, &emb.SessionID,
			&emb.ChunkIndex, &vectorBlob,
			&emb.DistanceKeys[0], &emb.DistanceKeys[1], &emb.DistanceKeys[2],
			&emb.DistanceKeys[3], &emb.DistanceKeys[4], &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		emb.Vector = bytesToFloat32Slice(vectorBlob)
		embs = append(embs, emb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	return embs, nil
}

// ==================== Sample Store ====================

// sampleStore implements driven.SampleStore. The sample set lives in a
// single row; the five vectors are packed into one blob back to back.
type sampleStore struct {
	store *Store
}

var _ driven.SampleStore = (*sampleStore)(nil)

// Load returns the persisted sample set.
func (s *sampleStore) Load(ctx context.Context) (*domain.SampleSet, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT seed, dimensions, vectors, created_at FROM sample_set WHERE id = 1")

	var set domain.SampleSet
	var blob []byte
	if err := row.Scan(&set.Seed, &set.Dimensions, &blob, &set.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning sample set: %w", err)
	}

	all := bytesToFloat32Slice(blob)
	if len(all) != domain.SampleCount*set.Dimensions {
		return nil, fmt.Errorf("sample blob holds %d floats, want %d: %w",
			len(all), domain.SampleCount*set.Dimensions, domain.ErrInvalidInput)
	}
	for i := 0; i < domain.SampleCount; i++ {
		set.Vectors[i] = all[i*set.Dimensions : (i+1)*set.Dimensions]
	}

	return &set, nil
}

// Save persists a newly generated sample set. Refuses to overwrite an
// existing one.
func (s *sampleStore) Save(ctx context.Context, set *domain.SampleSet) error {
	packed := make([]float32, 0, domain.SampleCount*set.Dimensions)
	for _, vec := range set.Vectors {
		packed = append(packed, vec...)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sample_set (id, seed, dimensions, vectors, created_at)
		VALUES (1, ?, ?, ?, ?)
	`, set.Seed, set.Dimensions, float32SliceToBytes(packed), set.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "PRIMARY KEY") {
			return domain.ErrSampleSetImmutable
		}
		return fmt.Errorf("saving sample set: %w", err)
	}
	return nil
}
