package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

type ChatModelEntry struct {
	Name  string
	Model IChatModel
}

type groupChatModel struct {
	items []ChatModelEntry
}

// NewGroupChatModel tries each model in order until one answers. A
// rejection is final since another model would see the same content.
func NewGroupChatModel(items []ChatModelEntry) IChatModel {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 {
		return items[0].Model
	}
	return &groupChatModel{items: items}
}

func (g *groupChatModel) Complete(ctx context.Context, systemPrompt string, userMessage string) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Model == nil {
			continue
		}
		res, err := item.Model.Complete(ctx, systemPrompt, userMessage)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("chat model failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if errors.Is(err, appErr.ErrModelRejected) || ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return "", fmt.Errorf("%w: chat model not configured", appErr.ErrInternal)
	}
	return "", lastErr
}
