package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

type stubEmbedder struct {
	dim int
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) ModelName() string {
	return "stub"
}

type stubChat struct {
	answer string
	err    error
	calls  int
}

func (s *stubChat) Complete(ctx context.Context, systemPrompt string, userMessage string) (string, error) {
	s.calls++
	return s.answer, s.err
}

func TestVerifyDimension(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, VerifyDimension(ctx, &stubEmbedder{dim: 768}, 768))

	err := VerifyDimension(ctx, &stubEmbedder{dim: 384}, 768)
	require.True(t, errors.Is(err, appErr.ErrDimensionMismatch))

	err = VerifyDimension(ctx, &stubEmbedder{err: appErr.ErrModelUnavailable}, 768)
	require.True(t, errors.Is(err, appErr.ErrModelUnavailable))
}

func TestRenderQAPrompt(t *testing.T) {
	system, user := RenderQAPrompt(QAPromptVars{
		Context:         "Chapter 1: Intro",
		Question:        "What is covered?",
		UserDisplayName: "Ada",
	})
	require.Contains(t, system, "Chapter 1: Intro")
	require.Contains(t, system, "helping Ada")
	require.Equal(t, "What is covered?", user)
	require.False(t, strings.Contains(system, "{context}"))

	system, _ = RenderQAPrompt(QAPromptVars{Context: "{question}", Question: "q"})
	require.Contains(t, system, "helping a student")
	require.Contains(t, system, "{question}")
}

func TestGroupChatModelFallsBack(t *testing.T) {
	first := &stubChat{err: appErr.ErrModelUnavailable}
	second := &stubChat{answer: "ok"}
	g := NewGroupChatModel([]ChatModelEntry{{Name: "a", Model: first}, {Name: "b", Model: second}})
	res, err := g.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "ok", res)
	require.Equal(t, 1, first.calls)
}

func TestGroupChatModelStopsOnRejection(t *testing.T) {
	first := &stubChat{err: fmt.Errorf("policy: %w", appErr.ErrModelRejected)}
	second := &stubChat{answer: "ok"}
	g := NewGroupChatModel([]ChatModelEntry{{Name: "a", Model: first}, {Name: "b", Model: second}})
	_, err := g.Complete(context.Background(), "s", "u")
	require.True(t, errors.Is(err, appErr.ErrModelRejected))
	require.Equal(t, 0, second.calls)
}

func TestClassifyCallErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, want: appErr.ErrModelUnavailable},
		{name: "overloaded", err: genai.APIError{Code: 503, Status: "UNAVAILABLE"}, want: appErr.ErrModelUnavailable},
		{name: "server error", err: genai.APIError{Code: 500}, want: appErr.ErrModelUnavailable},
		{name: "bad key", err: genai.APIError{Code: 401, Message: "API key not valid"}, want: appErr.ErrUnauthorized},
		{name: "denied", err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, want: appErr.ErrUnauthorized},
		{name: "bad request", err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, want: appErr.ErrModelRejected},
		{name: "wrapped", err: fmt.Errorf("generate: %w", genai.APIError{Code: 400}), want: appErr.ErrModelRejected},
		{name: "pointer", err: &genai.APIError{Code: 401}, want: appErr.ErrUnauthorized},
		{name: "plain text denied", err: errors.New("rpc error: code = PERMISSION_DENIED"), want: appErr.ErrUnauthorized},
		{name: "plain text blocked", err: errors.New("response blocked by safety filters"), want: appErr.ErrModelRejected},
		{name: "unknown", err: errors.New("something odd"), want: appErr.ErrModelUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyCallErr("gemini", tt.err)
			require.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
	require.True(t, errors.Is(classifyCallErr("gemini", context.Canceled), context.Canceled))
}

func TestClassifyCallErrIgnoresMessageDigits(t *testing.T) {
	// the message mentions 400 but the status is a rate limit
	err := classifyCallErr("gemini", genai.APIError{Code: 429, Message: "error 400 retry later"})
	require.True(t, errors.Is(err, appErr.ErrModelUnavailable))
	require.False(t, errors.Is(err, appErr.ErrModelRejected))
}
