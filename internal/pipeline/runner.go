// Package pipeline sequences hooks around a core storage operation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yndnr/stashkv/internal/telemetry/logger"
)

var (
	// ErrSuppressed is returned by an ErrorHook to swallow the failure.
	// The invocation then yields a nil result and no AfterHook runs.
	ErrSuppressed = errors.New("pipeline: error suppressed")

	// ErrDuplicateHook is returned when a hook name is registered twice.
	ErrDuplicateHook = errors.New("pipeline: duplicate hook name")
)

// CoreFunc performs the storage operation described by oc.
type CoreFunc func(ctx context.Context, oc *OperationContext) (any, error)

// Runner holds an ordered hook chain. Order is registration order and
// nothing else. A Runner is safe for concurrent use; each Execute works
// on a snapshot of the chain taken when it starts.
type Runner struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger
}

// NewRunner creates an empty runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger.With("component", "pipeline")}
}

// Register appends hooks to the chain.
func (r *Runner) Register(hooks ...Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range hooks {
		if h == nil {
			return fmt.Errorf("pipeline: nil hook")
		}
		for _, existing := range r.hooks {
			if existing.Name() == h.Name() {
				return fmt.Errorf("%w: %q", ErrDuplicateHook, h.Name())
			}
		}
		r.hooks = append(r.hooks, h)
	}
	return nil
}

// Unregister removes the hook with the given name and returns it.
func (r *Runner) Unregister(name string) (Hook, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, h := range r.hooks {
		if h.Name() == name {
			r.hooks = append(r.hooks[:i:i], r.hooks[i+1:]...)
			return h, true
		}
	}
	return nil, false
}

// Hooks returns a copy of the chain in execution order.
func (r *Runner) Hooks() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Hook(nil), r.hooks...)
}

// Execute runs the before stages, the core operation and the after
// stages in order. The first failure skips everything after it and is
// routed through every ErrorHook before it is returned. FinishHooks
// then observe the outcome.
func (r *Runner) Execute(ctx context.Context, oc *OperationContext, core CoreFunc) (any, error) {
	hooks := r.Hooks()
	ctx = logger.WithOperationID(ctx, oc.ID)
	result, err := r.execute(ctx, hooks, oc, core)
	for _, h := range hooks {
		if fh, ok := h.(FinishHook); ok {
			fh.Finish(ctx, oc, result, err)
		}
	}
	return result, err
}

func (r *Runner) execute(ctx context.Context, hooks []Hook, oc *OperationContext, core CoreFunc) (any, error) {

	for _, h := range hooks {
		bh, ok := h.(BeforeHook)
		if !ok {
			continue
		}
		if err := bh.Before(ctx, oc); err != nil {
			return r.fail(ctx, hooks, oc, err)
		}
	}

	result, err := core(ctx, oc)
	if err != nil {
		return r.fail(ctx, hooks, oc, err)
	}

	for _, h := range hooks {
		ah, ok := h.(AfterHook)
		if !ok {
			continue
		}
		if result, err = ah.After(ctx, oc, result); err != nil {
			return r.fail(ctx, hooks, oc, err)
		}
	}
	return result, nil
}

// fail threads err through the error chain.
func (r *Runner) fail(ctx context.Context, hooks []Hook, oc *OperationContext, err error) (any, error) {
	for _, h := range hooks {
		eh, ok := h.(ErrorHook)
		if !ok {
			continue
		}
		next := eh.OnError(ctx, oc, err)
		if next == nil {
			continue
		}
		if errors.Is(next, ErrSuppressed) {
			r.logger.DebugContext(ctx, "error suppressed",
				"hook", h.Name(),
				"op", oc.Op,
				"namespace", oc.Namespace,
				"error", err)
			return nil, nil
		}
		err = next
	}
	return nil, err
}
