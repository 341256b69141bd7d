package semcache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/ai"
	"github.com/xxxsen/scholarai/internal/model"
	"github.com/xxxsen/scholarai/internal/vectorindex"
)

const DefaultThreshold = 0.2

// Cache answers paraphrased questions from earlier answers. Entries live in
// a scope (the document id) and never match across scopes.
type Cache interface {
	Lookup(ctx context.Context, scope, query string) (*model.CacheEntry, bool, error)
	Store(ctx context.Context, scope, query, answer string, context []string) error
	Purge(ctx context.Context, scope string) error
}

// Backend stores cache entries and finds the closest one to a vector.
type Backend interface {
	Nearest(ctx context.Context, scope string, vec []float32) (*model.CacheEntry, bool, error)
	Put(ctx context.Context, entry *model.CacheEntry) error
	DeleteScope(ctx context.Context, scope string) error
}

type Config struct {
	// Threshold is the largest cosine distance that still counts as a hit.
	Threshold float64
}

type semanticCache struct {
	embedder  ai.IEmbedder
	backend   Backend
	threshold float64
}

func New(embedder ai.IEmbedder, backend Backend, cfg Config) (Cache, error) {
	if embedder == nil || backend == nil {
		return nil, fmt.Errorf("semantic cache requires an embedder and a backend")
	}
	if cfg.Threshold < 0 || cfg.Threshold > 2 {
		return nil, fmt.Errorf("semantic cache threshold %v out of range [0, 2]", cfg.Threshold)
	}
	return &semanticCache{embedder: embedder, backend: backend, threshold: cfg.Threshold}, nil
}

// CosineDistance is 1 - cosine similarity, in [0, 2].
func CosineDistance(a, b []float32) float64 {
	return 1 - vectorindex.CosineSimilarity(a, b)
}

func (c *semanticCache) Lookup(ctx context.Context, scope, query string) (*model.CacheEntry, bool, error) {
	vec, err := c.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, false, fmt.Errorf("embed cache query: %w", err)
	}
	entry, ok, err := c.backend.Nearest(ctx, scope, vec)
	if err != nil {
		return nil, false, fmt.Errorf("cache nearest: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	// inclusive: an entry exactly at the threshold is a hit
	if entry.Distance > c.threshold {
		logutil.GetLogger(ctx).Debug("semantic cache miss",
			zap.String("scope", scope), zap.Float64("distance", entry.Distance))
		return nil, false, nil
	}
	logutil.GetLogger(ctx).Debug("semantic cache hit",
		zap.String("scope", scope), zap.Float64("distance", entry.Distance))
	return entry, true, nil
}

func (c *semanticCache) Store(ctx context.Context, scope, query, answer string, chunks []string) error {
	vec, err := c.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return fmt.Errorf("embed cache query: %w", err)
	}
	return c.backend.Put(ctx, &model.CacheEntry{
		ID:        uuid.NewString(),
		Scope:     scope,
		Question:  query,
		Answer:    answer,
		Context:   append([]string(nil), chunks...),
		Embedding: vec,
		Ctime:     time.Now().Unix(),
	})
}

func (c *semanticCache) Purge(ctx context.Context, scope string) error {
	return c.backend.DeleteScope(ctx, scope)
}

type nopCache struct{}

// NewNop returns a cache that never hits.
func NewNop() Cache {
	return nopCache{}
}

func (nopCache) Lookup(ctx context.Context, scope, query string) (*model.CacheEntry, bool, error) {
	return nil, false, nil
}

func (nopCache) Store(ctx context.Context, scope, query, answer string, context []string) error {
	return nil
}

func (nopCache) Purge(ctx context.Context, scope string) error {
	return nil
}
