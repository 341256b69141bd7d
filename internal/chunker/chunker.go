package chunker

import (
	"context"
	"fmt"
	"unicode"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/model"
)

const (
	DefaultChunkSize = 1200
	DefaultOverlap   = 200
	DefaultMinSize   = 600
)

// Sizes are counted in runes. A zero ChunkSize or MinSize takes the default.
// Overlap of zero disables overlap and a negative one takes the default.
type Options struct {
	ChunkSize int
	Overlap   int
	MinSize   int
}

type Chunker struct {
	opts Options
}

func New(opts Options) (*Chunker, error) {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = DefaultOverlap
	}
	if opts.MinSize == 0 {
		opts.MinSize = DefaultMinSize
	}
	if opts.ChunkSize < 0 || opts.MinSize < 0 {
		return nil, fmt.Errorf("chunk sizes must not be negative")
	}
	if opts.Overlap >= opts.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", opts.Overlap, opts.ChunkSize)
	}
	if opts.MinSize > opts.ChunkSize {
		opts.MinSize = opts.ChunkSize
	}
	return &Chunker{opts: opts}, nil
}

func MustNew(opts Options) *Chunker {
	c, err := New(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// Split cuts every page into overlapping chunks. Chunks never span pages and
// are numbered consecutively across the whole input.
func (c *Chunker) Split(ctx context.Context, pages []model.Page) []model.Chunk {
	var chunks []model.Chunk
	for _, page := range pages {
		for _, span := range c.spans([]rune(page.Text)) {
			chunks = append(chunks, model.Chunk{
				PageNumber: page.Number,
				Index:      len(chunks),
				Offset:     span.start,
				Text:       span.text,
			})
		}
	}
	logutil.GetLogger(ctx).Debug("split pages into chunks",
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", c.opts.ChunkSize),
		zap.Int("overlap", c.opts.Overlap),
	)
	return chunks
}

type span struct {
	start int
	text  string
}

func (c *Chunker) spans(runes []rune) []span {
	var out []span
	n := len(runes)
	start := 0
	for start < n {
		end := n
		if n-start > c.opts.ChunkSize {
			end = c.cut(runes, start)
		}
		if !isBlank(runes[start:end]) {
			out = append(out, span{start: start, text: string(runes[start:end])})
		}
		if end >= n {
			break
		}
		next := end - c.opts.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// cut returns the end of the chunk starting at start: just after the last
// paragraph break in range, or start+ChunkSize when there is none.
func (c *Chunker) cut(runes []rune, start int) int {
	limit := start + c.opts.ChunkSize
	lowest := start + c.opts.MinSize
	if floor := start + c.opts.Overlap + 1; lowest < floor {
		lowest = floor
	}
	for end := limit; end >= lowest && end >= start+2; end-- {
		if runes[end-1] == '\n' && runes[end-2] == '\n' {
			return end
		}
	}
	return limit
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
