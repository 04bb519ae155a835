// Package retry is a generic retry/backoff harness: two combinators, a
// bounded randomized backoff, and a dead-letter channel for exhausted
// failures. Any caller with a unit of work and a way to tell success from
// failure can drive it through either combinator rather than hand-rolling
// its own retry loop.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/arcgraph/edgestore/pkg/metricsx"
)

// DeadLetter is one element that exhausted its retry budget.
type DeadLetter[T any] struct {
	Element T
	Err     error
}

// Options bounds a harness: Max retries and the backoff ceiling.
type Options struct {
	Max        int // number of retries after the first attempt
	MaxBackoff time.Duration
}

// Harness runs body under a shared retry/backoff policy, dead-lettering
// exhausted elements onto DeadLetters for the harness's owner to drain.
// pkg/commit and pkg/deleteall do not use a Harness.
type Harness[T any] struct {
	opts        Options
	caller      string
	DeadLetters chan DeadLetter[T]
}

// New wires a Harness. caller labels the RetryExhaustedTotal metric so
// distinct call sites are distinguishable.
func New[T any](opts Options, caller string) *Harness[T] {
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 200 * time.Millisecond
	}
	return &Harness[T]{
		opts:        opts,
		caller:      caller,
		DeadLetters: make(chan DeadLetter[T], 64),
	}
}

// backoff sleeps a short randomized delay bounded by MaxBackoff, or returns
// ctx.Err() if ctx is cancelled first.
func (h *Harness[T]) backoff(ctx context.Context, attempt int) error {
	d := time.Duration(rand.Int63n(int64(h.opts.MaxBackoff) + 1))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryOnFailure executes body; on error it re-executes up to opts.Max
// additional times with bounded backoff between attempts. After
// exhaustion, element is dead-lettered and the last error is returned.
func (h *Harness[T]) RetryOnFailure(ctx context.Context, element T, body func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= h.opts.Max; attempt++ {
		if attempt > 0 {
			if err := h.backoff(ctx, attempt); err != nil {
				return err
			}
		}
		lastErr = body(ctx)
		if lastErr == nil {
			return nil
		}
	}
	h.deadLetter(element, lastErr)
	return lastErr
}

// RetryOnSuccess executes body, applies predicate to the result, and
// re-executes while predicate reports false, up to opts.Max additional
// times. After exhaustion, element is dead-lettered with a nil error and
// the last result is returned. If body returns an error, element is
// dead-lettered with that error at once and no further attempt is made.
//
// Go methods cannot introduce a type parameter beyond their receiver's, so
// this is a standalone function over Harness[T] rather than a method.
func RetryOnSuccess[T, R any](h *Harness[T], ctx context.Context, element T, body func(ctx context.Context) (R, error), predicate func(R) bool) (R, error) {
	var zero R
	var result R
	var err error
	for attempt := 0; attempt <= h.opts.Max; attempt++ {
		if attempt > 0 {
			if berr := h.backoff(ctx, attempt); berr != nil {
				return zero, berr
			}
		}
		result, err = body(ctx)
		if err != nil {
			h.deadLetter(element, err)
			return zero, err
		}
		if predicate(result) {
			return result, nil
		}
	}
	h.deadLetter(element, nil)
	return result, nil
}

func (h *Harness[T]) deadLetter(element T, err error) {
	metricsx.RetryExhaustedTotal.WithLabelValues(h.caller).Inc()
	select {
	case h.DeadLetters <- DeadLetter[T]{Element: element, Err: err}:
	default:
		// dead-letter channel full: drop rather than block the caller.
		// Consumers are expected to drain continuously; this is a last
		// resort to preserve forward progress.
	}
}
