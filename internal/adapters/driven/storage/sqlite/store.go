package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/docuchat/ragcore/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to all
// engine store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string

	mu       sync.Mutex
	watchers []chan struct{}
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ragcore/data/engine.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragcore", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "engine.db")

	// WAL mode so readers never block the pipeline's writes
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// VectorStore returns a VectorStore interface backed by this store.
func (s *Store) VectorStore() driven.VectorStore {
	return &vectorStore{store: s}
}

// SampleStore returns a SampleStore interface backed by this store.
func (s *Store) SampleStore() driven.SampleStore {
	return &sampleStore{store: s}
}

// CheckpointStore returns a CheckpointStore interface backed by this store.
func (s *Store) CheckpointStore() driven.CheckpointStore {
	return &checkpointStore{store: s}
}

// LeaderElector returns a LeaderElector interface backed by this store.
func (s *Store) LeaderElector() driven.LeaderElector {
	return &leaderElector{store: s}
}

// TelemetryStore returns a TelemetryStore interface backed by this store.
func (s *Store) TelemetryStore() driven.TelemetryStore {
	return &telemetryStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// notifyWatchers signals every registered watcher without blocking.
func (s *Store) notifyWatchers() {
	s.mu.Lock()
	watchers := make([]chan struct{}, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	sessionsJSON, err := json.Marshal(doc.ActiveSessions)
	if err != nil {
		return fmt.Errorf("marshalling active sessions: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, user_id, filename, content, mime_type, size_bytes, session_id,
			 active_sessions, access_count, chunk_count, embedding_status,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			filename = excluded.filename,
			content = excluded.content,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			session_id = excluded.session_id,
			active_sessions = excluded.active_sessions,
			access_count = excluded.access_count,
			chunk_count = excluded.chunk_count,
			embedding_status = excluded.embedding_status,
			updated_at = excluded.updated_at
	`, doc.ID, doc.UserID, doc.Filename, doc.Content, doc.MimeType, doc.SizeBytes,
		doc.SessionID, string(sessionsJSON), doc.AccessCount, doc.ChunkCount,
		string(doc.EmbeddingStatus), doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// SaveChunks stores chunks in bulk and signals watchers.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, char_offset_start, char_offset_end)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			char_offset_start = excluded.char_offset_start,
			char_offset_end = excluded.char_offset_end
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID,
			chunk.ChunkIndex, chunk.Text, chunk.CharOffsetStart, chunk.CharOffsetEnd); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.store.notifyWatchers()
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, content, mime_type, size_bytes, session_id,
		       active_sessions, access_count, chunk_count, embedding_status,
		       created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row)
}

// GetChunks retrieves all chunks for a document in ChunkIndex order.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.DocumentChunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, char_offset_start, char_offset_end
		FROM chunks WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex,
			&chunk.Text, &chunk.CharOffsetStart, &chunk.CharOffsetEnd); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.DocumentChunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, chunk_index, content, char_offset_start, char_offset_end
		FROM chunks WHERE id = ?
	`, id)

	var chunk domain.DocumentChunk
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex,
		&chunk.Text, &chunk.CharOffsetStart, &chunk.CharOffsetEnd); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return &chunk, nil
}

// ListChunks pages through chunks in rowid order. The cursor is the
// last seen rowid.
func (s *documentStore) ListChunks(ctx context.Context, cursor string, limit int) ([]domain.DocumentChunk, string, error) {
	after := int64(0)
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", domain.ErrInvalidInput
		}
		after = n
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT rowid, id, document_id, chunk_index, content, char_offset_start, char_offset_end
		FROM chunks WHERE rowid > ?
		ORDER BY rowid LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, "", fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk //nolint:prealloc // size unknown from query
	last := after
	for rows.Next() {
		var rowid int64
		var chunk domain.DocumentChunk
		if err := rows.Scan(&rowid, &chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex,
			&chunk.Text, &chunk.CharOffsetStart, &chunk.CharOffsetEnd); err != nil {
			return nil, "", fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, chunk)
		last = rowid
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, strconv.FormatInt(last, 10), nil
}

// CountChunks returns the number of chunks for a document.
func (s *documentStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_id = ?", documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteDocument removes the document record only.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// DeleteChunks removes all chunks for a document.
func (s *documentStore) DeleteChunks(ctx context.Context, documentID string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}
	return int(n), nil
}

// ListDocuments returns all documents for a user.
func (s *documentStore) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, user_id, filename, content, mime_type, size_bytes, session_id,
		       active_sessions, access_count, chunk_count, embedding_status,
		       created_at, updated_at
		FROM documents WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	return scanDocumentRows(rows)
}

// ListActiveDocuments returns documents active in a session. Session
// membership lives in a JSON column, so this filters after the scan.
func (s *documentStore) ListActiveDocuments(ctx context.Context, sessionID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, user_id, filename, content, mime_type, size_bytes, session_id,
		       active_sessions, access_count, chunk_count, embedding_status,
		       created_at, updated_at
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	active := docs[:0]
	for i := range docs {
		if docs[i].IsActiveIn(sessionID) {
			active = append(active, docs[i])
		}
	}
	return active, nil
}

// ListDocumentIDs returns the IDs of every document.
func (s *documentStore) ListDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT id FROM documents")
	if err != nil {
		return nil, fmt.Errorf("querying document ids: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ListChunkDocumentIDs returns the distinct document IDs referenced by
// chunks, including dangling references.
func (s *documentStore) ListChunkDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT DISTINCT document_id FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("querying chunk document ids: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// Counts returns total documents and chunks.
func (s *documentStore) Counts(ctx context.Context) (int, int, error) {
	var docs, chunks int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&docs); err != nil {
		return 0, 0, fmt.Errorf("counting documents: %w", err)
	}
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("counting chunks: %w", err)
	}
	return docs, chunks, nil
}

// Watch returns a channel signalled on chunk writes through this
// store handle.
func (s *documentStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.store.mu.Lock()
	s.store.watchers = append(s.store.watchers, ch)
	s.store.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.store.mu.Lock()
		for i, w := range s.store.watchers {
			if w == ch {
				s.store.watchers = append(s.store.watchers[:i], s.store.watchers[i+1:]...)
				break
			}
		}
		s.store.mu.Unlock()
	}()

	return ch, nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var sessionsJSON, status string

	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.Content,
		&doc.MimeType, &doc.SizeBytes, &doc.SessionID, &sessionsJSON,
		&doc.AccessCount, &doc.ChunkCount, &status,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.EmbeddingStatus = domain.EmbeddingStatus(status)
	if err := json.Unmarshal([]byte(sessionsJSON), &doc.ActiveSessions); err != nil {
		return nil, fmt.Errorf("unmarshaling active sessions: %w", err)
	}

	return &doc, nil
}

// scanDocumentRows scans documents from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc domain.Document
		var sessionsJSON, status string

		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.Content,
			&doc.MimeType, &doc.SizeBytes, &doc.SessionID, &sessionsJSON,
			&doc.AccessCount, &doc.ChunkCount, &status,
			&doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		doc.EmbeddingStatus = domain.EmbeddingStatus(status)
		if err := json.Unmarshal([]byte(sessionsJSON), &doc.ActiveSessions); err != nil {
			return nil, fmt.Errorf("unmarshaling active sessions: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// scanIDs collects single-column string rows.
func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ids: %w", err)
	}

	return ids, nil
}
