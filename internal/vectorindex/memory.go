package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

func init() {
	Register("memory", func(args interface{}, env *Env) (Index, error) {
		return NewMemory(), nil
	})
}

type memoryItem struct {
	item Item
	seq  uint64
}

type memoryCollection struct {
	dimension int
	metric    Metric
	items     map[string]*memoryItem
}

// memoryIndex keeps everything in process; it is used for tests and single
// node development runs.
type memoryIndex struct {
	mu          sync.RWMutex
	seq         uint64
	collections map[string]*memoryCollection
}

func NewMemory() Index {
	return &memoryIndex{collections: map[string]*memoryCollection{}}
}

func (m *memoryIndex) CreateCollection(ctx context.Context, name string, dimension int, metric Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", appErr.ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.collections[name]; ok {
		return checkDimension(name, existing.dimension, dimension)
	}
	m.collections[name] = &memoryCollection{
		dimension: dimension,
		metric:    metric,
		items:     map[string]*memoryItem{},
	}
	return nil
}

func (m *memoryIndex) Insert(ctx context.Context, collection string, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: collection %s", appErr.ErrNotFound, collection)
	}
	for _, it := range items {
		if err := checkDimension(collection, col.dimension, len(it.Vector)); err != nil {
			return err
		}
	}
	for _, it := range items {
		m.seq++
		it.Vector = append([]float32(nil), it.Vector...)
		col.items[it.ID] = &memoryItem{item: it, seq: m.seq}
	}
	return nil
}

func (m *memoryIndex) Query(ctx context.Context, collection string, q Query) ([]Hit, error) {
	fetch, err := normalize(&q)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", appErr.ErrNotFound, collection)
	}
	if err := checkDimension(collection, col.dimension, len(q.Vector)); err != nil {
		return nil, err
	}
	type scored struct {
		hit Hit
		seq uint64
	}
	var matches []scored
	for _, mi := range col.items {
		if mi.item.DocumentID != q.DocumentID {
			continue
		}
		matches = append(matches, scored{
			hit: Hit{
				ID:         mi.item.ID,
				DocumentID: mi.item.DocumentID,
				Text:       mi.item.Text,
				Score:      score(col.metric, q.Vector, mi.item.Vector),
				Metadata:   mi.item.Metadata,
				Vector:     mi.item.Vector,
			},
			seq: mi.seq,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].hit.Score != matches[j].hit.Score {
			return matches[i].hit.Score > matches[j].hit.Score
		}
		return matches[i].seq < matches[j].seq
	})
	if len(matches) > fetch {
		matches = matches[:fetch]
	}
	hits := make([]Hit, 0, len(matches))
	for _, s := range matches {
		hits = append(hits, s.hit)
	}
	return finish(q, hits), nil
}

func (m *memoryIndex) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil
	}
	for id, mi := range col.items {
		if mi.item.DocumentID == documentID {
			delete(col.items, id)
		}
	}
	return nil
}

func (m *memoryIndex) Close() error {
	return nil
}
