package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type expiringStore interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// CacheCleanupJob drops cache rows older than maxAge.
type CacheCleanupJob struct {
	name   string
	store  expiringStore
	maxAge time.Duration
	now    func() time.Time
}

func NewCacheCleanupJob(name string, store expiringStore, maxAge time.Duration) *CacheCleanupJob {
	return &CacheCleanupJob{name: name, store: store, maxAge: maxAge, now: time.Now}
}

// NewEmbeddingCacheCleanupJob falls back to 30 days when maxAgeDays is unset.
func NewEmbeddingCacheCleanupJob(store expiringStore, maxAgeDays int) *CacheCleanupJob {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return NewCacheCleanupJob("embedding_cache_cleanup", store, time.Duration(maxAgeDays)*24*time.Hour)
}

func NewSemanticCacheCleanupJob(store expiringStore, ttl time.Duration) *CacheCleanupJob {
	return NewCacheCleanupJob("semantic_cache_cleanup", store, ttl)
}

func (j *CacheCleanupJob) Name() string {
	return j.name
}

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if j.store == nil || j.maxAge <= 0 {
		return nil
	}
	cutoff := j.now().Add(-j.maxAge).Unix()
	removed, err := j.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired cache entries removed",
			zap.String("job", j.name), zap.Int64("removed", removed))
	}
	return nil
}
