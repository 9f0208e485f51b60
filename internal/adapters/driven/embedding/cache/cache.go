// Package cache wraps an embedding service with an expiring LRU of query
// embeddings.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultTTL is how long a cached embedding stays valid.
const DefaultTTL = time.Hour

// EmbeddingService caches Embed results. EmbedBatch is passed through:
// ingestion texts are rarely repeated.
type EmbeddingService struct {
	next   driven.EmbeddingService
	cache  *expirable.LRU[string, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

// Wrap returns next unchanged when size or ttl is not positive.
func Wrap(next driven.EmbeddingService, size int, ttl time.Duration) driven.EmbeddingService {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &EmbeddingService{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Embed returns the cached embedding for text or computes it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(s.next.ModelName(), text)
	if cached, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		logger.Debug("embedding cache hit")
		return clone(cached), nil
	}
	s.misses.Add(1)

	vec, err := s.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, clone(vec))
	return vec, nil
}

// EmbedBatch implements driven.EmbeddingService.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.next.EmbedBatch(ctx, texts)
}

// Dimensions implements driven.EmbeddingService.
func (s *EmbeddingService) Dimensions() int {
	return s.next.Dimensions()
}

// ModelName implements driven.EmbeddingService.
func (s *EmbeddingService) ModelName() string {
	return s.next.ModelName()
}

// Ping implements driven.EmbeddingService.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close purges the cache and closes the wrapped service.
func (s *EmbeddingService) Close() error {
	s.cache.Purge()
	return s.next.Close()
}

// Stats returns cache hits and misses.
func (s *EmbeddingService) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func clone(values []float32) []float32 {
	if values == nil {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
