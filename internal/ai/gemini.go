package ai

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"google.golang.org/genai"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

type geminiConfig struct {
	APIKey    string `json:"api_key"`
	Dimension int32  `json:"dimension"`
}

const fileActivePollInterval = 2 * time.Second

type geminiProvider struct {
	client    *genai.Client
	dimension int32
}

func newGeminiProvider(args interface{}) (*geminiProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	p := &geminiProvider{dimension: cfg.Dimension}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return p, nil
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Generate(ctx context.Context, model string, req *Request) (string, error) {
	if p.client == nil {
		return "", ErrNotConfigured
	}
	parts := make([]*genai.Part, 0, len(req.Media)+1)
	for _, m := range req.Media {
		switch {
		case m.URI != "":
			parts = append(parts, &genai.Part{FileData: &genai.FileData{FileURI: m.URI, MIMEType: m.MimeType}})
		case len(m.Data) > 0 && strings.HasPrefix(m.MimeType, "video/"):
			file, err := p.uploadFile(ctx, m)
			if err != nil {
				return "", err
			}
			defer p.deleteFile(ctx, file.Name)
			parts = append(parts, &genai.Part{FileData: &genai.FileData{FileURI: file.URI, MIMEType: file.MIMEType}})
		case len(m.Data) > 0:
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: m.Data, MIMEType: m.MimeType}})
		}
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	config := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	resp, err := p.client.Models.GenerateContent(ctx, model, []*genai.Content{{Role: "user", Parts: parts}}, config)
	if err != nil {
		return "", classifyCallErr("gemini", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: gemini blocked prompt: %s", appErr.ErrModelRejected, resp.PromptFeedback.BlockReason)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// uploadFile pushes video bytes through the Files API, which inline parts
// cannot carry, and waits until the file can be referenced.
func (p *geminiProvider) uploadFile(ctx context.Context, m Media) (*genai.File, error) {
	file, err := p.client.Files.Upload(ctx, bytes.NewReader(m.Data), &genai.UploadFileConfig{MIMEType: m.MimeType})
	if err != nil {
		return nil, classifyCallErr("gemini", err)
	}
	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			p.deleteFile(ctx, file.Name)
			return nil, ctx.Err()
		case <-time.After(fileActivePollInterval):
		}
		file, err = p.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, classifyCallErr("gemini", err)
		}
	}
	if file.State == genai.FileStateFailed {
		p.deleteFile(ctx, file.Name)
		reason := ""
		if file.Error != nil {
			reason = file.Error.Message
		}
		return nil, fmt.Errorf("%w: gemini could not process file %s: %s", appErr.ErrModelRejected, file.Name, reason)
	}
	return file, nil
}

func (p *geminiProvider) deleteFile(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if _, err := p.client.Files.Delete(context.WithoutCancel(ctx), name, nil); err != nil {
		logutil.GetLogger(ctx).Warn("delete uploaded file failed", zap.String("file", name), zap.Error(err))
	}
}

func (p *geminiProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if p.client == nil {
		return nil, ErrNotConfigured
	}
	config := &genai.EmbedContentConfig{TaskType: taskType}
	if p.dimension > 0 {
		dim := p.dimension
		config.OutputDimensionality = &dim
	}
	resp, err := p.client.Models.EmbedContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, classifyCallErr("gemini", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no embedding values", appErr.ErrModelUnavailable)
	}
	return resp.Embeddings[0].Values, nil
}

func init() {
	Register("gemini", func(args interface{}) (IProvider, error) {
		return newGeminiProvider(args)
	})
	RegisterEmbed("gemini", func(args interface{}) (IEmbedProvider, error) {
		return newGeminiProvider(args)
	})
}
