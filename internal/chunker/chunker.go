// Package chunker splits document text into overlapping fixed-size chunks.
package chunker

import (
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker splits document content into fixed-size chunks with
// recorded character offsets. Chunk indices are contiguous from 0, so
// concatenating chunks in index order and dropping the overlap
// reproduces the original text.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Overlap returns the configured overlap in characters.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split breaks content into chunks owned by documentID.
// Empty content produces no chunks. Chunk edges are snapped back to
// rune starts so multi-byte UTF-8 content never yields a chunk with a
// torn rune at either end; offsets stay byte-accurate.
func (c *Chunker) Split(documentID, content string) []domain.DocumentChunk {
	if content == "" {
		return nil
	}

	contentLen := len(content)
	step := c.chunkSize - c.overlap

	chunks := make([]domain.DocumentChunk, 0, contentLen/step+1)

	index := 0
	start := 0

	for start < contentLen {
		end := runeBoundary(content, start+c.chunkSize)
		if end <= start {
			end = start + c.chunkSize
			if end > contentLen {
				end = contentLen
			}
		}

		chunks = append(chunks, domain.DocumentChunk{
			ID:              uuid.New().String(),
			DocumentID:      documentID,
			ChunkIndex:      index,
			Text:            content[start:end],
			CharOffsetStart: start,
			CharOffsetEnd:   end,
		})
		index++

		if end == contentLen {
			break
		}
		next := runeBoundary(content, end-c.overlap)
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// runeBoundary clamps pos to the content length and pulls it back to
// the nearest rune start.
func runeBoundary(content string, pos int) int {
	if pos >= len(content) {
		return len(content)
	}
	for pos > 0 && !utf8.RuneStart(content[pos]) {
		pos--
	}
	return pos
}

// Reconstruct rebuilds the original text from chunks sorted by
// ChunkIndex, using the recorded offsets to drop each chunk's overlap
// with its predecessor. Used to verify lossless chunking.
func (*Chunker) Reconstruct(chunks []domain.DocumentChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	out := chunks[0].Text
	prevEnd := chunks[0].CharOffsetEnd
	for _, chunk := range chunks[1:] {
		if chunk.CharOffsetEnd <= prevEnd {
			continue
		}
		skip := prevEnd - chunk.CharOffsetStart
		if skip < 0 {
			skip = 0
		}
		out += chunk.Text[skip:]
		prevEnd = chunk.CharOffsetEnd
	}
	return out
}
