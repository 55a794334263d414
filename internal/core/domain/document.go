package domain

import (
	"slices"
	"time"
)

// EmbeddingStatus tracks the embedding progress of a document.
type EmbeddingStatus string

// Embedding status values for a document.
const (
	EmbeddingStatusNone     EmbeddingStatus = "none"
	EmbeddingStatusPending  EmbeddingStatus = "pending"
	EmbeddingStatusComplete EmbeddingStatus = "complete"
	EmbeddingStatusError    EmbeddingStatus = "error"
)

// Document represents an uploaded document owned by a user.
// Documents are split into chunks at upload time; the embedding
// pipeline fills in vectors asynchronously.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// UserID identifies the owning user.
	UserID string

	// Filename is the original upload filename.
	Filename string

	// Content is the full extracted text of the document.
	Content string

	// MimeType is the declared content type of the upload.
	MimeType string

	// SizeBytes is the size of the original upload.
	SizeBytes int64

	// SessionID is the chat session that uploaded the document.
	SessionID string

	// ActiveSessions lists the chat sessions currently referencing
	// this document. A document with no active sessions is orphaned
	// and eligible for reclamation, but is never auto-deleted.
	ActiveSessions []string

	// AccessCount is incremented every time the document is
	// activated for a session.
	AccessCount int

	// ChunkCount is the number of chunks the content was split into.
	ChunkCount int

	// EmbeddingStatus reflects pipeline progress for this document.
	EmbeddingStatus EmbeddingStatus

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time
}

// IsActiveIn reports whether the document is active in the given session.
func (d *Document) IsActiveIn(sessionID string) bool {
	return slices.Contains(d.ActiveSessions, sessionID)
}

// IsOrphaned reports whether no session currently references the document.
func (d *Document) IsOrphaned() bool {
	return len(d.ActiveSessions) == 0
}

// DocumentChunk is a bounded contiguous slice of a document's text.
// Chunks are created in bulk when a document is split and are
// immutable thereafter; they are destroyed only by cascade when the
// owning document is destroyed.
//
// Chunk indices for a document are contiguous starting at 0, and
// concatenating chunks in ChunkIndex order (dropping the configured
// overlap) reproduces the original text.
type DocumentChunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// ChunkIndex is the ordinal position within the document.
	ChunkIndex int

	// Text is the chunk content.
	Text string

	// CharOffsetStart is the byte offset of the chunk start in the
	// original document content.
	CharOffsetStart int

	// CharOffsetEnd is the byte offset one past the chunk end.
	CharOffsetEnd int
}

// StorageStats summarises the persisted state of the engine.
type StorageStats struct {
	// Documents is the total number of documents.
	Documents int

	// Chunks is the total number of chunks.
	Chunks int

	// Embeddings is the total number of vector embeddings.
	Embeddings int

	// OrphanedDocuments counts documents with no active session.
	OrphanedDocuments int

	// CacheEntries is the current embedding cache occupancy.
	CacheEntries int

	// CacheCapacity is the configured embedding cache bound.
	CacheCapacity int
}
