package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/ledongthuc/pdf"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

const mimePDF = "application/pdf"

type pdfExtractor struct{}

// NewPDF returns an extractor producing one page per PDF page.
func NewPDF() TextExtractor {
	return &pdfExtractor{}
}

func (e *pdfExtractor) Extract(ctx context.Context, src *Source) ([]model.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isPDF(src) {
		return nil, appErr.ErrUnsupportedFile
	}
	pages, err := readPDF(src.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", appErr.ErrExtractionFailed, appErr.ErrInvalid, err)
	}
	logutil.GetLogger(ctx).Debug("pdf extracted",
		zap.String("file_name", src.FileName), zap.Int("pages", len(pages)))
	return pages, nil
}

func isPDF(src *Source) bool {
	if len(src.Data) == 0 {
		return false
	}
	if normalizeMime(src.MimeType) == mimePDF {
		return true
	}
	return http.DetectContentType(src.Data) == mimePDF
}

// readPDF recovers from parser panics, which ledongthuc/pdf raises on some
// malformed content streams.
func readPDF(data []byte) (pages []model.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	pages = make([]model.Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, model.Page{Number: i})
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range p.Fonts() {
			f := p.Font(name)
			fonts[name] = &f
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		pages = append(pages, model.Page{Number: i, Text: text})
	}
	return pages, nil
}
