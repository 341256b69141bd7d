package vectorindex

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

func TestPGVectorCreateCollectionSkipsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT dimension, metric FROM vector_collections").
		WithArgs("demo_collection").
		WillReturnRows(sqlmock.NewRows([]string{"dimension", "metric"}).AddRow(768, "cosine"))

	idx := NewPGVector(db)
	require.NoError(t, idx.CreateCollection(context.Background(), "demo_collection", 768, MetricCosine))
	// the second call is answered from the cached registry row
	require.NoError(t, idx.CreateCollection(context.Background(), "demo_collection", 768, MetricCosine))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorCreateCollectionInsertsMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT dimension, metric FROM vector_collections").
		WithArgs("demo_collection").
		WillReturnRows(sqlmock.NewRows([]string{"dimension", "metric"}))
	mock.ExpectExec("INSERT INTO vector_collections").
		WithArgs("demo_collection", 768, "cosine", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT dimension, metric FROM vector_collections").
		WithArgs("demo_collection").
		WillReturnRows(sqlmock.NewRows([]string{"dimension", "metric"}).AddRow(768, "cosine"))

	idx := NewPGVector(db)
	require.NoError(t, idx.CreateCollection(context.Background(), "demo_collection", 768, MetricCosine))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorCreateCollectionDimensionMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT dimension, metric FROM vector_collections").
		WillReturnRows(sqlmock.NewRows([]string{"dimension", "metric"}).AddRow(384, "cosine"))

	err = NewPGVector(db).CreateCollection(context.Background(), "demo_collection", 768, MetricCosine)
	require.True(t, errors.Is(err, appErr.ErrDimensionMismatch))
}

func TestPGVectorQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT dimension, metric FROM vector_collections").
		WillReturnRows(sqlmock.NewRows([]string{"dimension", "metric"}).AddRow(3, "cosine"))
	mock.ExpectQuery("FROM vector_chunks").
		WithArgs(sqlmock.AnyArg(), "demo_collection", "doc-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "content", "metadata", "embedding", "distance"}).
			AddRow("c1", "doc-1", "Chapter 1: Intro", []byte(`{"page":"1"}`), "[1,0,0]", 0.0).
			AddRow("c2", "doc-1", "Chapter 2: Details", []byte(`{"page":"2"}`), "[0,1,0]", 0.5))

	hits, err := NewPGVector(db).Query(context.Background(), "demo_collection", Query{
		Vector: []float32{1, 0, 0}, K: 2, DocumentID: "doc-1",
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "Chapter 1: Intro", hits[0].Text)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9)
	require.Equal(t, "2", hits[1].Metadata["page"])
	require.Equal(t, []float32{0, 1, 0}, hits[1].Vector)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorQueryUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT dimension, metric FROM vector_collections").
		WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

	_, err = NewPGVector(db).Query(context.Background(), "demo_collection", Query{
		Vector: []float32{1, 0, 0}, K: 2, DocumentID: "doc-1",
	})
	require.True(t, errors.Is(err, appErr.ErrRetrievalUnavailable))
	require.True(t, errors.Is(err, appErr.ErrUnavailable))
}

func TestPGVectorDeleteByDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM vector_chunks").
		WithArgs("demo_collection", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, NewPGVector(db).DeleteByDocument(context.Background(), "demo_collection", "doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
