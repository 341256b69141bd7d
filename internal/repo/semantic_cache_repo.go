package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/scholarai/internal/model"
)

// SemanticCacheRepo is the postgres backend of the semantic cache. Entries
// older than ttl are ignored by Nearest and removed by DeleteBefore.
type SemanticCacheRepo struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSemanticCacheRepo(db *sql.DB, ttl time.Duration) *SemanticCacheRepo {
	return &SemanticCacheRepo{db: db, ttl: ttl, now: time.Now}
}

func (r *SemanticCacheRepo) Nearest(ctx context.Context, scope string, vec []float32) (*model.CacheEntry, bool, error) {
	const query = `SELECT id, scope, question, answer, context, embedding, embedding <=> $1 AS distance
		FROM semantic_cache
		WHERE scope = $2 AND ctime >= $3
		ORDER BY embedding <=> $1
		LIMIT 1`
	var minCtime int64
	if r.ttl > 0 {
		minCtime = r.now().Add(-r.ttl).Unix()
	}
	var (
		entry     model.CacheEntry
		rawCtx    []byte
		embedding pgvector.Vector
	)
	err := r.db.QueryRowContext(ctx, query, pgvector.NewVector(vec), scope, minCtime).
		Scan(&entry.ID, &entry.Scope, &entry.Question, &entry.Answer, &rawCtx, &embedding, &entry.Distance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapErr("select", "semantic_cache", err)
	}
	chunks, err := decodeContext(rawCtx)
	if err != nil {
		return nil, false, err
	}
	entry.Context = chunks
	entry.Embedding = embedding.Slice()
	return &entry, true, nil
}

func (r *SemanticCacheRepo) Put(ctx context.Context, entry *model.CacheEntry) error {
	contextJSON, err := encodeContext(entry.Context)
	if err != nil {
		return err
	}
	const query = `INSERT INTO semantic_cache (id, scope, question, answer, context, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.ExecContext(ctx, query, entry.ID, entry.Scope, entry.Question, entry.Answer,
		contextJSON, pgvector.NewVector(entry.Embedding), entry.Ctime)
	if err != nil {
		return wrapErr("insert", "semantic_cache", err)
	}
	return nil
}

func (r *SemanticCacheRepo) DeleteScope(ctx context.Context, scope string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM semantic_cache WHERE scope = $1`, scope); err != nil {
		return wrapErr("delete", "semantic_cache", err)
	}
	return nil
}

// DeleteBefore removes entries written before cutoff (unix seconds).
func (r *SemanticCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM semantic_cache WHERE ctime < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("delete", "semantic_cache", err)
	}
	return res.RowsAffected()
}
