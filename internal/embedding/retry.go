package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/errs"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/logger"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/retry"
)

// RetryOptions bounds calls to the wrapped embedder.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

// Retrying wraps an Embedder with a per-call timeout and bounded retries.
// Exhausted calls fail with errs.EmbeddingServiceFailure.
type Retrying struct {
	inner Embedder
	opts  RetryOptions
	log   *logger.Logger
}

func NewRetrying(inner Embedder, opts RetryOptions, log *logger.Logger) *Retrying {
	if log == nil {
		log = logger.NewNop()
	}
	return &Retrying{inner: inner, opts: opts, log: log.With("component", "embedder")}
}

func (r *Retrying) Dims() int { return r.inner.Dims() }

func (r *Retrying) Embed(ctx context.Context, text string) (Vector, error) {
	var out Vector
	policy := retry.Policy{
		MaxAttempts: r.opts.MaxAttempts,
		BaseDelay:   r.opts.BaseDelay,
		MaxDelay:    r.opts.MaxDelay,
		Timeout:     r.opts.Timeout,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			r.log.Warn("embedding call failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		},
	}
	attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		v, err := r.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		if dims := r.inner.Dims(); dims > 0 && len(v) != dims {
			return retry.Stop(fmt.Errorf("embedding has %d dimensions, want %d", len(v), dims))
		}
		out = v
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, err
		}
		return nil, errs.E(errs.EmbeddingServiceFailure, "embed",
			fmt.Errorf("after %d attempt(s): %w", attempts, err))
	}
	return out, nil
}
