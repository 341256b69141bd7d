package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/ai"
	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

const (
	defaultMaxImageSize = 10 * 1024 * 1024
	defaultFetchTimeout = 30 * time.Second
)

var imageMimes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

type imageExtractor struct {
	describer ai.IDescriber
	client    *http.Client
	maxSize   int64
}

type ImageOption func(*imageExtractor)

// WithHTTPClient replaces the client used to fetch linked images. A client
// without a timeout gets the default one.
func WithHTTPClient(c *http.Client) ImageOption {
	return func(e *imageExtractor) {
		if c == nil {
			return
		}
		if c.Timeout <= 0 {
			cp := *c
			cp.Timeout = defaultFetchTimeout
			c = &cp
		}
		e.client = c
	}
}

func WithMaxImageSize(n int64) ImageOption {
	return func(e *imageExtractor) { e.maxSize = n }
}

// NewImage describes an uploaded or linked image with a vision model. The
// description becomes the single page of the document.
func NewImage(describer ai.IDescriber, opts ...ImageOption) TextExtractor {
	e := &imageExtractor{describer: describer, client: &http.Client{Timeout: defaultFetchTimeout}, maxSize: defaultMaxImageSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *imageExtractor) Extract(ctx context.Context, src *Source) ([]model.Page, error) {
	if desc := strings.TrimSpace(src.Description); desc != "" {
		return []model.Page{{Number: 1, Text: desc}}, nil
	}
	data, mime := src.Data, normalizeMime(src.MimeType)
	if len(data) == 0 {
		if src.URL == "" {
			return nil, fmt.Errorf("image file or url is required: %w", appErr.ErrInvalid)
		}
		var err error
		data, mime, err = e.fetch(ctx, src.URL)
		if err != nil {
			return nil, err
		}
	}
	if _, ok := imageMimes[mime]; !ok {
		mime = http.DetectContentType(data)
	}
	if _, ok := imageMimes[mime]; !ok {
		return nil, fmt.Errorf("unsupported image type %q: %w", mime, appErr.ErrInvalid)
	}
	if e.describer == nil {
		return nil, ai.ErrNotConfigured
	}
	desc, err := e.describer.Describe(ctx, ai.ImageDescribePrompt, ai.Media{MimeType: mime, Data: data})
	if err != nil {
		return nil, fmt.Errorf("describe image: %w", err)
	}
	logutil.GetLogger(ctx).Debug("image described",
		zap.String("mime", mime), zap.Int("description_len", len(desc)))
	return []model.Page{{Number: 1, Text: desc}}, nil
}

func (e *imageExtractor) fetch(ctx context.Context, raw string) ([]byte, string, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("invalid image url: %w", appErr.ErrInvalid)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", appErr.ErrInvalid)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w: %w", appErr.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", fmt.Errorf("fetch image: status %d: %w", resp.StatusCode, appErr.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("fetch image: status %d: %w", resp.StatusCode, appErr.ErrInvalid)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w: %w", appErr.ErrUnavailable, err)
	}
	if int64(len(data)) > e.maxSize {
		return nil, "", fmt.Errorf("image larger than %d bytes: %w", e.maxSize, appErr.ErrInvalid)
	}
	return data, normalizeMime(resp.Header.Get("Content-Type")), nil
}
