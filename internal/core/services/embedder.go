package services

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
	"github.com/docuchat/ragcore/internal/logger"
)

// cachedEmbedder is the shared cache-then-model embedding path used
// by both the pipeline and the retrieval manager. The rate limiter
// throttles model calls so background embedding cannot starve
// interactive queries; cache hits bypass it entirely.
type cachedEmbedder struct {
	model   driven.EmbeddingService
	cache   driven.EmbeddingCache
	limiter *rate.Limiter
}

func newCachedEmbedder(model driven.EmbeddingService, cache driven.EmbeddingCache, limiter *rate.Limiter) *cachedEmbedder {
	return &cachedEmbedder{
		model:   model,
		cache:   cache,
		limiter: limiter,
	}
}

// embed returns the vector for text, consulting the cache first.
// The second return reports whether the vector came from cache.
func (e *cachedEmbedder) embed(ctx context.Context, text string) ([]float32, bool, error) {
	if e.cache != nil {
		if vec, ok := e.cache.Get(text); ok {
			return vec, true, nil
		}
	}

	if e.model == nil {
		return nil, false, domain.ErrEmbeddingUnavailable
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, false, fmt.Errorf("waiting for embed slot: %w", err)
		}
	}

	vec, err := e.model.Embed(ctx, text)
	if err != nil {
		return nil, false, fmt.Errorf("embedding text: %w", err)
	}
	if len(vec) == 0 {
		return nil, false, fmt.Errorf("model returned empty vector: %w", domain.ErrEmbeddingUnavailable)
	}

	if e.cache != nil {
		e.cache.Put(text, vec)
	}

	logger.Debug("embedder: computed %d-dimension vector", len(vec))
	return vec, false, nil
}
