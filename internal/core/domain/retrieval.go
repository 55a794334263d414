package domain

// RetrievalMode selects how documents are retrieved at query time.
type RetrievalMode string

// Retrieval modes.
const (
	// RetrievalModeBasic returns whole active documents without
	// vector search, ranked by lexical overlap then recency.
	RetrievalModeBasic RetrievalMode = "basic"

	// RetrievalModeSemantic embeds the query and performs a
	// candidate search plus exact re-rank in the vector index.
	RetrievalModeSemantic RetrievalMode = "semantic"
)

// Valid reports whether the mode is a known retrieval mode.
func (m RetrievalMode) Valid() bool {
	return m == RetrievalModeBasic || m == RetrievalModeSemantic
}

// RetrievalResult is the tagged union returned by the retrieval
// manager. Mode selects which variant is populated. Retrieval always
// returns a result (possibly empty or degraded) rather than an error,
// so the chat flow is never blocked by engine failures.
type RetrievalResult struct {
	// Mode is the mode that actually produced the result. A semantic
	// request that degrades reports RetrievalModeBasic here.
	Mode RetrievalMode

	// Degraded is true when a semantic request fell back to basic
	// mode because the query could not be embedded.
	Degraded bool

	// LatencyMs is measured end-to-end inside the retrieval manager,
	// excluding embedding-model network time for the query.
	LatencyMs int64

	// QueryEmbedMs is the embedding-model time for the query,
	// reported separately. Zero in basic mode.
	QueryEmbedMs int64

	// Basic is populated when Mode is RetrievalModeBasic.
	Basic *BasicResult

	// Semantic is populated when Mode is RetrievalModeSemantic.
	Semantic *SemanticResult
}

// BasicResult holds whole active documents for the session.
type BasicResult struct {
	// Documents are the session's active documents, ranked by
	// lexical overlap with the query, then recency.
	Documents []Document
}

// SemanticResult holds ranked chunks from the vector index.
type SemanticResult struct {
	// Chunks are the matches, best first.
	Chunks []RankedChunk

	// TopScore is the highest similarity among Chunks, 0 when empty.
	TopScore float64

	// AverageScore is the mean similarity across Chunks, 0 when empty.
	AverageScore float64
}

// RankedChunk is a chunk scored against the query vector.
type RankedChunk struct {
	// Chunk is the matched chunk.
	Chunk DocumentChunk

	// Similarity is the exact cosine similarity to the query, 0-1.
	Similarity float64
}
