package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds the time hooks get to finish.
const DefaultTimeout = 10 * time.Second

// Handler runs cleanup hooks once a termination signal arrives.
type Handler struct {
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	hooks []namedHook

	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
}

type namedHook struct {
	name string
	fn   func(context.Context) error
}

// NewHandler creates a new shutdown handler. A non-positive timeout
// selects DefaultTimeout.
func NewHandler(timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		timeout: timeout,
		logger:  logger.With("component", "shutdown"),
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(name string, hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: hook})
}

// Trigger starts the shutdown without a signal.
func (h *Handler) Trigger() {
	h.triggerOnce.Do(func() { close(h.trigger) })
}

// Wait blocks until SIGINT, SIGTERM, Trigger or ctx cancellation, then
// runs the hooks under the shutdown timeout and returns their joined
// errors.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.logger.Info("shutdown signal received", "signal", sig.String())
	case <-h.trigger:
		h.logger.Info("shutdown triggered")
	case <-ctx.Done():
		h.logger.Info("shutdown on context end", "reason", context.Cause(ctx))
	}

	return h.run()
}

func (h *Handler) run() error {
	defer close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]namedHook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		start := time.Now()
		if err := hooks[i].fn(ctx); err != nil {
			h.logger.Error("shutdown hook failed", "hook", hooks[i].name, "error", err)
			errs = append(errs, err)
			continue
		}
		h.logger.Debug("shutdown hook done", "hook", hooks[i].name, "elapsed", time.Since(start))
	}
	return errors.Join(errs...)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
