package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultCerebrasBaseURL = "https://api.cerebras.ai/v1"
)

type openAIConfig struct {
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url"`
	Temperature *float32 `json:"temperature"`
}

// openAIProvider talks to any OpenAI compatible endpoint.
type openAIProvider struct {
	name        string
	apiKey      string
	baseURL     string
	temperature *float32
	headers     map[string]string
	client      *http.Client
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIChatMsg `json:"messages"`
	Temperature *float32        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if p.apiKey == "" {
		return ErrNotConfigured
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return classifyCallErr(p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(p.name, resp.StatusCode, string(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", appErr.ErrModelUnavailable, p.name, err)
	}
	return nil
}

func (p *openAIProvider) Generate(ctx context.Context, model string, req *Request) (string, error) {
	if len(req.Media) > 0 {
		return "", fmt.Errorf("%w: %s does not accept media input", appErr.ErrModelRejected, p.name)
	}
	messages := make([]openAIChatMsg, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIChatMsg{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIChatMsg{Role: "user", Content: req.Prompt})
	temperature := req.Temperature
	if temperature == nil {
		temperature = p.temperature
	}
	var out openAIChatResponse
	if err := p.post(ctx, "/chat/completions", openAIChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: %s response has no choices", appErr.ErrModelUnavailable, p.name)
	}
	if out.Choices[0].FinishReason == "content_filter" {
		return "", fmt.Errorf("%w: %s filtered the response", appErr.ErrModelRejected, p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	var out openAIEmbedResponse
	if err := p.post(ctx, "/embeddings", openAIEmbedRequest{Model: model, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: %s response has no embeddings", appErr.ErrModelUnavailable, p.name)
	}
	return out.Data[0].Embedding, nil
}

func newOpenAICompatible(name, defaultBaseURL string, args interface{}) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &openAIProvider{
		name:        name,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		client:      http.DefaultClient,
	}, nil
}

func init() {
	Register("openai", func(args interface{}) (IProvider, error) {
		return newOpenAICompatible("openai", defaultOpenAIBaseURL, args)
	})
	RegisterEmbed("openai", func(args interface{}) (IEmbedProvider, error) {
		return newOpenAICompatible("openai", defaultOpenAIBaseURL, args)
	})
	Register("cerebras", func(args interface{}) (IProvider, error) {
		return newOpenAICompatible("cerebras", defaultCerebrasBaseURL, args)
	})
}
