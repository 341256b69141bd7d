package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

func TestChromemCreateCollectionIdempotent(t *testing.T) {
	idx, err := NewChromem("", false)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.CreateCollection(ctx, "demo_collection", 3, MetricCosine))
	require.NoError(t, idx.CreateCollection(ctx, "demo_collection", 3, MetricCosine))
	require.Len(t, idx.(*chromemIndex).db.ListCollections(), 1)

	err = idx.CreateCollection(ctx, "demo_collection", 4, MetricCosine)
	require.True(t, errors.Is(err, appErr.ErrDimensionMismatch))
	err = idx.CreateCollection(ctx, "other", 3, MetricL2)
	require.True(t, errors.Is(err, appErr.ErrInvalid))
}

func TestChromemQueryEmptyCollection(t *testing.T) {
	idx, err := NewChromem("", false)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, idx.CreateCollection(ctx, "demo_collection", 3, MetricCosine))

	hits, err := idx.Query(ctx, "demo_collection", Query{Vector: []float32{1, 0, 0}, K: 3, DocumentID: "doc-1"})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestChromemInsertQueryDelete(t *testing.T) {
	idx, err := NewChromem("", false)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, idx.CreateCollection(ctx, "demo_collection", 3, MetricCosine))
	require.NoError(t, idx.Insert(ctx, "demo_collection", []Item{
		{ID: "c1", DocumentID: "doc-1", Vector: []float32{1, 0, 0}, Text: "Chapter 1: Intro"},
		{ID: "c2", DocumentID: "doc-1", Vector: []float32{0, 1, 0}, Text: "Chapter 2: Details"},
		{ID: "c3", DocumentID: "doc-2", Vector: []float32{1, 0, 0}, Text: "unrelated"},
	}))

	hits, err := idx.Query(ctx, "demo_collection", Query{Vector: []float32{1, 0, 0}, K: 1, DocumentID: "doc-1"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Chapter 1: Intro", hits[0].Text)
	require.Equal(t, "doc-1", hits[0].DocumentID)

	require.NoError(t, idx.DeleteByDocument(ctx, "demo_collection", "doc-1"))
	hits, err = idx.Query(ctx, "demo_collection", Query{Vector: []float32{1, 0, 0}, K: 1, DocumentID: "doc-2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "unrelated", hits[0].Text)
}
