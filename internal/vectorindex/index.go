package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricDot    Metric = "dot"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricCosine:
		return MetricCosine, nil
	case MetricL2:
		return MetricL2, nil
	case MetricDot:
		return MetricDot, nil
	}
	return "", fmt.Errorf("unsupported distance metric: %s", s)
}

type Mode string

const (
	ModeSimilarity Mode = "similarity"
	ModeMMR        Mode = "mmr"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSimilarity:
		return ModeSimilarity, nil
	case ModeMMR:
		return ModeMMR, nil
	}
	return "", fmt.Errorf("unsupported query mode: %s", s)
}

const (
	MetaDocumentID = "document_id"
	MetaPage       = "page"
	MetaIndex      = "chunk_index"

	DefaultMMRLambda = 0.5
	minFetchK        = 20
)

type Item struct {
	ID         string
	DocumentID string
	Vector     []float32
	Text       string
	Metadata   map[string]string
}

// Query always targets a single document; DocumentID is required.
type Query struct {
	Vector     []float32
	K          int
	Mode       Mode
	DocumentID string
	FetchK     int
	Lambda     float64
}

type Hit struct {
	ID         string
	DocumentID string
	Text       string
	Score      float64
	Metadata   map[string]string
	Vector     []float32
}

// Index is a vector store partitioned into named collections.
type Index interface {
	CreateCollection(ctx context.Context, name string, dimension int, metric Metric) error
	Insert(ctx context.Context, collection string, items []Item) error
	Query(ctx context.Context, collection string, q Query) ([]Hit, error)
	DeleteByDocument(ctx context.Context, collection, documentID string) error
	Close() error
}

type Env struct {
	DB *sql.DB
}

type Option func(*Env)

func WithDB(db *sql.DB) Option {
	return func(e *Env) {
		e.DB = db
	}
}

type Factory func(args interface{}, env *Env) (Index, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(kind string, args interface{}, opts ...Option) (Index, error) {
	key := strings.ToLower(strings.TrimSpace(kind))
	if key == "" {
		return nil, fmt.Errorf("vector_index.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector index type: %s", kind)
	}
	env := &Env{}
	for _, opt := range opts {
		opt(env)
	}
	return factory(args, env)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode index config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode index config: %w", err)
	}
	return nil
}

// normalize validates q and fills defaults. It returns the number of
// candidates a backend should fetch.
func normalize(q *Query) (int, error) {
	if strings.TrimSpace(q.DocumentID) == "" {
		return 0, fmt.Errorf("%w: query requires a document_id filter", appErr.ErrInvalid)
	}
	if q.K <= 0 {
		return 0, fmt.Errorf("%w: k must be positive", appErr.ErrInvalid)
	}
	if len(q.Vector) == 0 {
		return 0, fmt.Errorf("%w: empty query vector", appErr.ErrInvalid)
	}
	if q.Mode == "" {
		q.Mode = ModeSimilarity
	}
	if q.Mode != ModeMMR {
		return q.K, nil
	}
	if q.Lambda <= 0 || q.Lambda > 1 {
		q.Lambda = DefaultMMRLambda
	}
	if q.FetchK < q.K {
		q.FetchK = 4 * q.K
		if q.FetchK < minFetchK {
			q.FetchK = minFetchK
		}
	}
	return q.FetchK, nil
}

// finish applies the query mode to candidates already sorted by relevance.
func finish(q Query, candidates []Hit) []Hit {
	if q.Mode == ModeMMR {
		return MaxMarginalRelevance(q.Vector, candidates, q.K, q.Lambda)
	}
	if len(candidates) > q.K {
		candidates = candidates[:q.K]
	}
	return candidates
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", appErr.ErrRetrievalUnavailable, op, err)
}

func checkDimension(name string, want, got int) error {
	if want != got {
		return fmt.Errorf("%w: collection %s has dimension %d, got %d", appErr.ErrDimensionMismatch, name, want, got)
	}
	return nil
}
