package extract

import (
	"context"
	"strings"

	"github.com/xxxsen/scholarai/internal/model"
)

// Source is one upload handed to an extractor. Data and URL are alternatives;
// extractors document which they accept.
type Source struct {
	FileName    string
	MimeType    string
	Data        []byte
	URL         string
	Description string
}

// TextExtractor turns a source into page texts. Page numbers start at 1.
type TextExtractor interface {
	Extract(ctx context.Context, src *Source) ([]model.Page, error)
}

// HasText reports whether any page carries non-whitespace text.
func HasText(pages []model.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

func normalizeMime(mime string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
}
