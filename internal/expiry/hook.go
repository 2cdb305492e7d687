package expiry

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/pipeline"
)

// HookName is the name the expiry hook registers under.
const HookName = "expiry"

// Hook enforces expiry on a namespace according to the configured
// strategy. Expired records always read as absent, whatever the health
// of the background worker.
type Hook struct {
	cfg      Config
	registry *Registry
	owned    bool
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHook creates the expiry hook. When the strategy needs a worker and
// registry is nil, the hook creates a registry of its own and closes it
// in Close.
func NewHook(cfg Config, registry *Registry, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	h := &Hook{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With("component", "expiry.hook"),
		limiters: make(map[string]*rate.Limiter),
	}
	if cfg.Strategy.usesWorker() && registry == nil {
		h.registry = NewRegistry(cfg, logger)
		h.owned = true
	}
	return h
}

// Name implements pipeline.Hook.
func (h *Hook) Name() string { return HookName }

// Registry returns the worker registry, nil for the immediate strategy.
func (h *Hook) Registry() *Registry { return h.registry }

// OnRegister starts the namespace's worker. A worker that fails to start
// leaves the namespace on the on-demand fallback; the error is logged.
func (h *Hook) OnRegister(ctx context.Context, host pipeline.Host) error {
	if !h.cfg.Strategy.usesWorker() {
		return nil
	}
	health, err := h.registry.Ensure(ctx, host.Namespace(), host.Store())
	if err != nil {
		h.logger.WarnContext(ctx, "expiry worker unavailable, using on-demand sweeps",
			"namespace", host.Namespace(), "health", health.String(), "error", err)
	}
	return nil
}

// OnUnregister stops the namespace's worker.
func (h *Hook) OnUnregister(_ context.Context, host pipeline.Host) error {
	if h.registry != nil {
		h.registry.Dispose(host.Namespace())
	}
	h.mu.Lock()
	delete(h.limiters, host.Namespace())
	h.mu.Unlock()
	return nil
}

// Before sweeps ahead of keys and length when no healthy worker keeps
// the namespace clean.
func (h *Hook) Before(ctx context.Context, oc *pipeline.OperationContext) error {
	if oc.Op != domain.OpKeys && oc.Op != domain.OpLength {
		return nil
	}
	if h.cfg.Strategy == StrategyImmediate {
		h.sweep(ctx, oc)
		return nil
	}
	if h.registry.Health(oc.Namespace) != Healthy && h.limiter(oc.Namespace).Allow() {
		h.sweep(ctx, oc)
	}
	return nil
}

// After hides expired records from get and get-metadata and keeps the
// worker's timer current after mutations.
func (h *Hook) After(ctx context.Context, oc *pipeline.OperationContext, result any) (any, error) {
	switch oc.Op {
	case domain.OpGet, domain.OpGetMetadata:
		if !oc.Metadata.IsExpired(h.cfg.Now()) {
			return result, nil
		}
		h.evict(ctx, oc)
		if h.cfg.Strategy == StrategyHybrid {
			h.post(oc.Namespace, h.registry.SweepNow)
		}
		oc.Metadata = nil
		return nil, nil

	case domain.OpSet, domain.OpRemove, domain.OpClear:
		if h.cfg.Strategy == StrategyProactive {
			h.post(oc.Namespace, h.registry.Nudge)
		}
	}
	return result, nil
}

// Close releases a registry created by NewHook.
func (h *Hook) Close() error {
	if h.owned {
		return h.registry.Close()
	}
	return nil
}

func (h *Hook) sweep(ctx context.Context, oc *pipeline.OperationContext) {
	res, err := Sweep(ctx, oc.Store, h.cfg.Now())
	if h.cfg.Observer != nil {
		h.cfg.Observer.ObserveSweep(oc.Namespace, res, err)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "on-demand sweep failed", "namespace", oc.Namespace, "error", err)
	}
}

// evict deletes the expired record read by oc unless it was replaced in
// the meantime. Failures are logged only.
func (h *Hook) evict(ctx context.Context, oc *pipeline.OperationContext) {
	rec, err := oc.Store.Get(ctx, oc.Key)
	if err != nil || rec == nil || !rec.IsExpired(h.cfg.Now()) {
		return
	}
	if err := oc.Store.Delete(ctx, oc.Key); err != nil {
		h.logger.DebugContext(ctx, "failed to delete expired record", "namespace", oc.Namespace, "error", err)
	}
}

func (h *Hook) post(ns string, fn func(string) error) {
	if err := fn(ns); err != nil {
		h.logger.Debug("expiry worker notification failed", "namespace", ns, "error", err)
	}
}

func (h *Hook) limiter(ns string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[ns]
	if !ok {
		limit := rate.Inf
		if h.cfg.Throttle > 0 {
			limit = rate.Every(h.cfg.Throttle)
		}
		l = rate.NewLimiter(limit, 1)
		h.limiters[ns] = l
	}
	return l
}
