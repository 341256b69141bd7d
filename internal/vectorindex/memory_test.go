package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

func seedMemory(t *testing.T) Index {
	t.Helper()
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.CreateCollection(ctx, "demo_collection", 3, MetricCosine))
	require.NoError(t, idx.Insert(ctx, "demo_collection", []Item{
		{ID: "a1", DocumentID: "doc-a", Vector: []float32{1, 0, 0}, Text: "alpha"},
		{ID: "a2", DocumentID: "doc-a", Vector: []float32{0.9, 0.1, 0}, Text: "alpha prime"},
		{ID: "a3", DocumentID: "doc-a", Vector: []float32{0, 1, 0}, Text: "beta"},
		{ID: "b1", DocumentID: "doc-b", Vector: []float32{1, 0, 0}, Text: "other doc"},
	}))
	return idx
}

func TestMemoryCreateCollectionIdempotent(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.CreateCollection(ctx, "demo_collection", 768, MetricCosine))
	require.NoError(t, idx.CreateCollection(ctx, "demo_collection", 768, MetricCosine))
	require.Len(t, idx.(*memoryIndex).collections, 1)

	err := idx.CreateCollection(ctx, "demo_collection", 384, MetricCosine)
	require.True(t, errors.Is(err, appErr.ErrDimensionMismatch))
}

func TestMemoryQueryFiltersByDocument(t *testing.T) {
	idx := seedMemory(t)
	hits, err := idx.Query(context.Background(), "demo_collection", Query{
		Vector: []float32{1, 0, 0}, K: 10, DocumentID: "doc-a",
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "alpha", hits[0].Text)
	require.Equal(t, "alpha prime", hits[1].Text)
	for _, h := range hits {
		require.Equal(t, "doc-a", h.DocumentID)
	}
}

func TestMemoryQueryRequiresDocumentFilter(t *testing.T) {
	idx := seedMemory(t)
	_, err := idx.Query(context.Background(), "demo_collection", Query{Vector: []float32{1, 0, 0}, K: 2})
	require.True(t, errors.Is(err, appErr.ErrInvalid))
}

func TestMemoryQueryEmptyPartition(t *testing.T) {
	idx := seedMemory(t)
	hits, err := idx.Query(context.Background(), "demo_collection", Query{
		Vector: []float32{1, 0, 0}, K: 3, DocumentID: "missing",
	})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestMemoryInsertOverwritesDuplicateID(t *testing.T) {
	idx := seedMemory(t)
	ctx := context.Background()
	require.NoError(t, idx.Insert(ctx, "demo_collection", []Item{
		{ID: "a1", DocumentID: "doc-a", Vector: []float32{1, 0, 0}, Text: "alpha v2"},
	}))
	hits, err := idx.Query(ctx, "demo_collection", Query{Vector: []float32{1, 0, 0}, K: 10, DocumentID: "doc-a"})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "alpha v2", hits[0].Text)
}

func TestMemoryInsertRejectsWrongDimension(t *testing.T) {
	idx := seedMemory(t)
	err := idx.Insert(context.Background(), "demo_collection", []Item{{ID: "x", DocumentID: "doc-a", Vector: []float32{1}}})
	require.True(t, errors.Is(err, appErr.ErrDimensionMismatch))
}

func TestMemoryMMRDiversifies(t *testing.T) {
	idx := seedMemory(t)
	hits, err := idx.Query(context.Background(), "demo_collection", Query{
		Vector: []float32{1, 0, 0}, K: 2, Mode: ModeMMR, DocumentID: "doc-a", Lambda: 0.3,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "alpha", hits[0].Text)
	require.Equal(t, "beta", hits[1].Text)
}

func TestMemoryDeleteByDocument(t *testing.T) {
	idx := seedMemory(t)
	ctx := context.Background()
	require.NoError(t, idx.DeleteByDocument(ctx, "demo_collection", "doc-a"))
	hits, err := idx.Query(ctx, "demo_collection", Query{Vector: []float32{1, 0, 0}, K: 3, DocumentID: "doc-a"})
	require.NoError(t, err)
	require.Empty(t, hits)
	hits, err = idx.Query(ctx, "demo_collection", Query{Vector: []float32{1, 0, 0}, K: 3, DocumentID: "doc-b"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}
