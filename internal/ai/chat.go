package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

type chatModel struct {
	provider IProvider
	model    string
	timeout  time.Duration
}

// NewChatModel binds a provider to a model. A zero timeout leaves the
// caller's deadline in charge.
func NewChatModel(p IProvider, model string, timeout time.Duration) IChatModel {
	return &chatModel{provider: p, model: model, timeout: timeout}
}

func (c *chatModel) Complete(ctx context.Context, systemPrompt string, userMessage string) (string, error) {
	return generateText(ctx, c.provider, c.model, c.timeout, &Request{System: systemPrompt, Prompt: userMessage})
}

type describer struct {
	provider IProvider
	model    string
	timeout  time.Duration
}

func NewDescriber(p IProvider, model string, timeout time.Duration) IDescriber {
	return &describer{provider: p, model: model, timeout: timeout}
}

func (d *describer) Describe(ctx context.Context, instruction string, media Media) (string, error) {
	return generateText(ctx, d.provider, d.model, d.timeout, &Request{Prompt: instruction, Media: []Media{media}})
}

func generateText(ctx context.Context, p IProvider, model string, timeout time.Duration, req *Request) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := p.Generate(ctx, model, req)
	if err != nil {
		return "", err
	}
	res = strings.TrimSpace(res)
	if res == "" {
		return "", fmt.Errorf("%w: empty ai response", appErr.ErrModelUnavailable)
	}
	return res, nil
}
