package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/scholarai/internal/pkg/dbutil"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

func init() {
	Register("pgvector", func(args interface{}, env *Env) (Index, error) {
		if env == nil || env.DB == nil {
			return nil, fmt.Errorf("pgvector index requires a database")
		}
		return NewPGVector(env.DB), nil
	})
}

type collectionInfo struct {
	dimension int
	metric    Metric
}

// pgIndex stores every collection in the shared vector_chunks table.
type pgIndex struct {
	db          *sql.DB
	collections sync.Map
}

func NewPGVector(db *sql.DB) Index {
	return &pgIndex{db: db}
}

func (p *pgIndex) CreateCollection(ctx context.Context, name string, dimension int, metric Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", appErr.ErrInvalid)
	}
	info, ok, err := p.loadCollection(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		const insert = `
			INSERT INTO vector_collections (name, dimension, metric, ctime)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`
		if _, err := p.db.ExecContext(ctx, insert, name, dimension, string(metric), time.Now().Unix()); err != nil {
			return p.wrapErr("create collection", err)
		}
		// another instance may have won the insert; read back what is stored
		info, ok, err = p.loadCollection(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: collection %s missing after create", appErr.ErrInternal, name)
		}
	}
	return checkDimension(name, info.dimension, dimension)
}

func (p *pgIndex) loadCollection(ctx context.Context, name string) (collectionInfo, bool, error) {
	if cached, ok := p.collections.Load(name); ok {
		return cached.(collectionInfo), true, nil
	}
	const query = `SELECT dimension, metric FROM vector_collections WHERE name = $1`
	var (
		info   collectionInfo
		metric string
	)
	if err := p.db.QueryRowContext(ctx, query, name).Scan(&info.dimension, &metric); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return collectionInfo{}, false, nil
		}
		return collectionInfo{}, false, p.wrapErr("load collection", err)
	}
	info.metric = Metric(metric)
	p.collections.Store(name, info)
	return info, true, nil
}

func (p *pgIndex) mustCollection(ctx context.Context, name string) (collectionInfo, error) {
	info, ok, err := p.loadCollection(ctx, name)
	if err != nil {
		return collectionInfo{}, err
	}
	if !ok {
		return collectionInfo{}, fmt.Errorf("%w: collection %s", appErr.ErrNotFound, name)
	}
	return info, nil
}

func (p *pgIndex) Insert(ctx context.Context, collection string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	info, err := p.mustCollection(ctx, collection)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := checkDimension(collection, info.dimension, len(it.Vector)); err != nil {
			return err
		}
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.wrapErr("begin insert", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	const upsert = `
		INSERT INTO vector_chunks (collection, id, document_id, content, metadata, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (collection, id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	now := time.Now().Unix()
	for _, it := range items {
		meta, err := json.Marshal(it.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsert, collection, it.ID, it.DocumentID, it.Text, meta, pgvector.NewVector(it.Vector), now); err != nil {
			return p.wrapErr("insert chunk", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return p.wrapErr("commit insert", err)
	}
	return nil
}

func distanceOperator(metric Metric) string {
	switch metric {
	case MetricL2:
		return "<->"
	case MetricDot:
		return "<#>"
	default:
		return "<=>"
	}
}

// scoreFromDistance turns the operator result into a higher-is-better score.
func scoreFromDistance(metric Metric, distance float64) float64 {
	if metric == MetricCosine || metric == "" {
		return 1 - distance
	}
	return -distance
}

func (p *pgIndex) Query(ctx context.Context, collection string, q Query) ([]Hit, error) {
	fetch, err := normalize(&q)
	if err != nil {
		return nil, err
	}
	info, err := p.mustCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := checkDimension(collection, info.dimension, len(q.Vector)); err != nil {
		return nil, err
	}
	op := distanceOperator(info.metric)
	query := fmt.Sprintf(`
		SELECT id, document_id, content, metadata, embedding, embedding %s $1 AS distance
		FROM vector_chunks
		WHERE collection = $2 AND document_id = $3
		ORDER BY embedding %s $1
		LIMIT $4
	`, op, op)
	rows, err := p.db.QueryContext(ctx, query, pgvector.NewVector(q.Vector), collection, q.DocumentID, fetch)
	if err != nil {
		return nil, p.wrapErr("query chunks", err)
	}
	defer rows.Close()
	hits := make([]Hit, 0, fetch)
	for rows.Next() {
		var (
			hit       Hit
			meta      []byte
			embedding pgvector.Vector
			distance  float64
		)
		if err := rows.Scan(&hit.ID, &hit.DocumentID, &hit.Text, &meta, &embedding, &distance); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		hit.Vector = embedding.Slice()
		hit.Score = scoreFromDistance(info.metric, distance)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, p.wrapErr("iterate chunks", err)
	}
	return finish(q, hits), nil
}

func (p *pgIndex) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	const query = `DELETE FROM vector_chunks WHERE collection = $1 AND document_id = $2`
	if _, err := p.db.ExecContext(ctx, query, collection, documentID); err != nil {
		return p.wrapErr("delete chunks", err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (p *pgIndex) Close() error {
	return nil
}

func (p *pgIndex) wrapErr(op string, err error) error {
	if dbutil.IsUnavailable(err) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
