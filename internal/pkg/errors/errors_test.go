package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "auth", err: fmt.Errorf("resolve: %w", ErrUnauthorized), want: true},
		{name: "rejected", err: ErrModelRejected, want: true},
		{name: "unsupported file", err: ErrUnsupportedFile, want: true},
		{name: "canceled", err: context.Canceled, want: true},
		{name: "unavailable", err: ErrUnavailable, want: false},
		{name: "retrieval", err: fmt.Errorf("%w: dial tcp", ErrRetrievalUnavailable), want: false},
		{name: "model unavailable", err: ErrModelUnavailable, want: false},
		{name: "unknown", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}

func TestPipelineErrorsWrapTaxonomy(t *testing.T) {
	require.True(t, errors.Is(ErrUnsupportedFile, ErrInvalid))
	require.True(t, errors.Is(ErrRetrievalUnavailable, ErrUnavailable))
	require.True(t, errors.Is(ErrDimensionMismatch, ErrInternal))
	require.Equal(t, "only PDF files are supported", ErrUnsupportedFile.Error())
}
