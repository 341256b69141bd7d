package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 4 * time.Second
	DefaultMaxDelay    = 10 * time.Second
)

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// Retryable is the default classifier: everything except the permanent
// taxonomy errors is retried.
func Retryable(err error) bool {
	return err != nil && !appErr.IsPermanent(err)
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Classify    Classifier
}

// Executor runs operations with bounded exponential backoff. It is safe for
// concurrent use; each call builds its own backoff state.
type Executor struct {
	cfg Config
}

func New(cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.Classify == nil {
		cfg.Classify = Retryable
	}
	return &Executor{cfg: cfg}
}

func (e *Executor) MaxAttempts() int {
	return e.cfg.MaxAttempts
}

func (e *Executor) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.BaseDelay
	b.Multiplier = 2
	b.MaxInterval = e.cfg.MaxDelay
	b.RandomizationFactor = 0
	return b
}

// Run executes op until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx ends. The last error is returned unchanged.
func (e *Executor) Run(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is Run for operations that return a value.
func Do[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || !e.cfg.Classify(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, next time.Duration) {
		logutil.GetLogger(ctx).Warn("operation failed, retrying",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("next_delay", next),
			zap.Error(err))
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(e.newBackOff()),
		backoff.WithMaxTries(uint(e.cfg.MaxAttempts)),
		backoff.WithNotify(notify),
	)
}
