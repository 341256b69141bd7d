package vectorindex

import (
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

func TestWrapQdrantErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), want: appErr.ErrRetrievalUnavailable},
		{name: "deadline", err: status.Error(codes.DeadlineExceeded, "slow"), want: appErr.ErrUnavailable},
		{name: "exhausted", err: status.Error(codes.ResourceExhausted, "busy"), want: appErr.ErrUnavailable},
		{name: "not found", err: status.Error(codes.NotFound, "no collection"), want: appErr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, errors.Is(wrapQdrantErr("op", tt.err), tt.want))
		})
	}
	err := wrapQdrantErr("op", status.Error(codes.InvalidArgument, "bad"))
	require.False(t, errors.Is(err, appErr.ErrUnavailable))
}

func TestQdrantDistance(t *testing.T) {
	require.Equal(t, qdrant.Distance_Cosine, qdrantDistance(MetricCosine))
	require.Equal(t, qdrant.Distance_Euclid, qdrantDistance(MetricL2))
	require.Equal(t, qdrant.Distance_Dot, qdrantDistance(MetricDot))
}

func TestDocumentFilter(t *testing.T) {
	f := documentFilter("doc-1")
	require.Len(t, f.GetMust(), 1)
	field := f.GetMust()[0].GetField()
	require.Equal(t, MetaDocumentID, field.GetKey())
	require.Equal(t, "doc-1", field.GetMatch().GetKeyword())
}
