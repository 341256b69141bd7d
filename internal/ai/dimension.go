package ai

import (
	"context"
	"fmt"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

const dimensionProbeText = "dimension probe"

// VerifyDimension embeds a probe once and checks the vector length against
// the configured index dimension.
func VerifyDimension(ctx context.Context, e IEmbedder, want int) error {
	vec, err := e.Embed(ctx, dimensionProbeText, TaskRetrievalQuery)
	if err != nil {
		return fmt.Errorf("probe embedder %s: %w", e.ModelName(), err)
	}
	if len(vec) != want {
		return fmt.Errorf("%w: embedder %s produces %d dimensions, index expects %d",
			appErr.ErrDimensionMismatch, e.ModelName(), len(vec), want)
	}
	return nil
}
