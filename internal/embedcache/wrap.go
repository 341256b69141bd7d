package embedcache

import (
	"time"

	"github.com/xxxsen/scholarai/internal/ai"
)

type Options struct {
	LRUSize int
	LRUTTL  time.Duration
	Store   Store
}

// Wrap layers the memory cache over the persistent one.
func Wrap(e ai.IEmbedder, opts Options) ai.IEmbedder {
	e = WrapDBCacheToEmbedder(e, opts.Store)
	return WrapLruCacheToEmbedder(e, opts.LRUSize, opts.LRUTTL)
}
