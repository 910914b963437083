// Package stage wraps each external analyzer behind a uniform adapter. An adapter
// never returns an error: a failing, panicking or slow analyzer yields its
// documented fallback value and an Outcome marked Degraded.
package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTimeout is recorded on an Outcome when the analyzer exceeded its time budget.
var ErrTimeout = errors.New("stage timed out")

// Outcome is the result of one stage: either analyzer output, or the stage's
// fallback value with Degraded set and the cause in Err.
type Outcome[T any] struct {
	Stage    string
	Value    T
	Degraded bool
	Err      error
	Elapsed  time.Duration
}

type result[T any] struct {
	value T
	err   error
}

// Run executes fn on its own goroutine bounded by timeout. Errors, panics and
// timeouts all resolve to fallback. A timed-out fn keeps running until it
// notices its context is done; its late result is discarded.
func Run[T any](ctx context.Context, log *logrus.Entry, name string, timeout time.Duration, fallback T, fn func(context.Context) (T, error)) Outcome[T] {
	start := time.Now()
	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result[T]{value: zero, err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		v, err := fn(runCtx)
		done <- result[T]{value: v, err: err}
	}()

	var res result[T]
	select {
	case res = <-done:
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res.err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		} else {
			res.err = runCtx.Err()
		}
	}

	out := Outcome[T]{Stage: name, Elapsed: time.Since(start)}
	entry := log.WithField("stage", name).WithField("duration_ms", out.Elapsed.Milliseconds())
	if res.err != nil {
		out.Value = fallback
		out.Degraded = true
		out.Err = res.err
		entry.WithField("error", res.err.Error()).Warn("stage failed, using fallback")
		return out
	}
	out.Value = res.value
	entry.Debug("stage finished")
	return out
}
