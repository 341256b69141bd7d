package vectorindex

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

type chromemConfig struct {
	Path     string `json:"path"`
	Compress bool   `json:"compress"`
}

func init() {
	Register("chromem", func(args interface{}, env *Env) (Index, error) {
		cfg := &chromemConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		return NewChromem(cfg.Path, cfg.Compress)
	})
}

// chromemIndex is an embedded store. Vectors are always supplied by the
// caller, so the collection embedding func is never expected to run.
type chromemIndex struct {
	db         *chromem.DB
	mu         sync.Mutex
	dimensions map[string]int
}

// NewChromem opens a persistent database at path, or an in-memory one when
// path is empty.
func NewChromem(path string, compress bool) (Index, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create chromem dir: %w", err)
		}
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	return &chromemIndex{db: db, dimensions: map[string]int{}}, nil
}

func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: chromem collections take precomputed embeddings", appErr.ErrInternal)
}

func (c *chromemIndex) CreateCollection(ctx context.Context, name string, dimension int, metric Metric) error {
	if metric != MetricCosine {
		return fmt.Errorf("%w: chromem only supports cosine distance", appErr.ErrInvalid)
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", appErr.ErrInvalid)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing := c.db.GetCollection(name, noEmbedding); existing != nil {
		if dim, ok := c.dimensions[name]; ok {
			return checkDimension(name, dim, dimension)
		}
		c.dimensions[name] = dimension
		return nil
	}
	meta := map[string]string{"dimension": strconv.Itoa(dimension)}
	if _, err := c.db.CreateCollection(name, meta, noEmbedding); err != nil {
		return fmt.Errorf("create chromem collection %s: %w", name, err)
	}
	c.dimensions[name] = dimension
	return nil
}

func (c *chromemIndex) collection(name string) (*chromem.Collection, error) {
	col := c.db.GetCollection(name, noEmbedding)
	if col == nil {
		return nil, fmt.Errorf("%w: collection %s", appErr.ErrNotFound, name)
	}
	return col, nil
}

func (c *chromemIndex) dimension(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimensions[name]
}

func (c *chromemIndex) Insert(ctx context.Context, collection string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	col, err := c.collection(collection)
	if err != nil {
		return err
	}
	dim := c.dimension(collection)
	docs := make([]chromem.Document, 0, len(items))
	for _, it := range items {
		if dim > 0 {
			if err := checkDimension(collection, dim, len(it.Vector)); err != nil {
				return err
			}
		}
		meta := make(map[string]string, len(it.Metadata)+1)
		for k, v := range it.Metadata {
			meta[k] = v
		}
		meta[MetaDocumentID] = it.DocumentID
		docs = append(docs, chromem.Document{
			ID:        it.ID,
			Content:   it.Text,
			Metadata:  meta,
			Embedding: append([]float32(nil), it.Vector...),
		})
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add chromem documents: %w", err)
	}
	return nil
}

func (c *chromemIndex) Query(ctx context.Context, collection string, q Query) ([]Hit, error) {
	fetch, err := normalize(&q)
	if err != nil {
		return nil, err
	}
	col, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	count := col.Count()
	if count == 0 {
		return []Hit{}, nil
	}
	// chromem rejects nResults larger than the collection
	if fetch > count {
		fetch = count
	}
	results, err := col.QueryEmbedding(ctx, q.Vector, fetch, map[string]string{MetaDocumentID: q.DocumentID}, nil)
	if err != nil {
		return nil, fmt.Errorf("query chromem collection %s: %w", collection, err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:         r.ID,
			DocumentID: r.Metadata[MetaDocumentID],
			Text:       r.Content,
			Score:      float64(r.Similarity),
			Metadata:   r.Metadata,
			Vector:     r.Embedding,
		})
	}
	return finish(q, hits), nil
}

func (c *chromemIndex) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	col := c.db.GetCollection(collection, noEmbedding)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{MetaDocumentID: documentID}, nil); err != nil {
		return fmt.Errorf("delete chromem documents: %w", err)
	}
	return nil
}

func (c *chromemIndex) Close() error {
	return nil
}
