package driving

import (
	"context"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// Retriever answers chat-time retrieval requests.
type Retriever interface {
	// Retrieve returns passages relevant to query for the session.
	// Basic mode returns whole active documents; semantic mode embeds
	// the query and re-ranks vector index candidates. A semantic
	// request whose query cannot be embedded degrades to basic mode
	// instead of failing.
	Retrieve(ctx context.Context, sessionID, query string, mode domain.RetrievalMode) (*domain.RetrievalResult, error)
}
