package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	cutoff int64
	calls  int
	err    error
}

func (f *fakeStore) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 3, f.err
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	store := &fakeStore{}
	j := NewEmbeddingCacheCleanupJob(store, 0)
	now := time.Unix(100*24*3600, 0)
	j.now = func() time.Time { return now }

	require.Equal(t, "embedding_cache_cleanup", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-30*24*time.Hour).Unix(), store.cutoff)
}

func TestSemanticCacheCleanupJob(t *testing.T) {
	store := &fakeStore{}
	j := NewSemanticCacheCleanupJob(store, time.Hour)
	now := time.Unix(10000, 0)
	j.now = func() time.Time { return now }

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, int64(10000-3600), store.cutoff)

	store.err = errors.New("db down")
	require.Error(t, j.Run(context.Background()))
}

func TestCacheCleanupJobDisabled(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, NewSemanticCacheCleanupJob(store, 0).Run(context.Background()))
	require.NoError(t, NewCacheCleanupJob("nil", nil, time.Hour).Run(context.Background()))
	require.Zero(t, store.calls)
}
