package semcache

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/scholarai/internal/model"
)

type memoryBackend struct {
	lru *expirable.LRU[string, *model.CacheEntry]
}

// NewMemoryBackend keeps at most size entries, each for ttl. A zero ttl
// disables expiry.
func NewMemoryBackend(size int, ttl time.Duration) Backend {
	if size <= 0 {
		size = 10000
	}
	return &memoryBackend{lru: expirable.NewLRU[string, *model.CacheEntry](size, nil, ttl)}
}

func memoryKey(scope, id string) string {
	return scope + "\x00" + id
}

// Nearest scans the scope. On equal distances the older entry wins, which
// depends on insertion order and is not stable across restarts.
func (m *memoryBackend) Nearest(ctx context.Context, scope string, vec []float32) (*model.CacheEntry, bool, error) {
	var (
		best     *model.CacheEntry
		bestDist = math.Inf(1)
	)
	for _, entry := range m.lru.Values() {
		if entry.Scope != scope {
			continue
		}
		if d := CosineDistance(vec, entry.Embedding); d < bestDist {
			best, bestDist = entry, d
		}
	}
	if best == nil {
		return nil, false, nil
	}
	m.lru.Get(memoryKey(best.Scope, best.ID))
	out := *best
	out.Distance = bestDist
	out.Context = append([]string(nil), best.Context...)
	return &out, true, nil
}

func (m *memoryBackend) Put(ctx context.Context, entry *model.CacheEntry) error {
	stored := *entry
	stored.Embedding = append([]float32(nil), entry.Embedding...)
	m.lru.Add(memoryKey(entry.Scope, entry.ID), &stored)
	return nil
}

func (m *memoryBackend) DeleteScope(ctx context.Context, scope string) error {
	prefix := scope + "\x00"
	for _, key := range m.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.lru.Remove(key)
		}
	}
	return nil
}
