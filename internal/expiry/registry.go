package expiry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/storage"
)

// Observer receives sweep outcomes and health transitions. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveSweep(namespace string, res SweepResult, err error)
	ObserveHealth(namespace string, h Health)
}

// Config tunes expiry handling.
type Config struct {
	// Strategy selects the removal strategy.
	Strategy Strategy
	// Interval is the sweep period for background and hybrid workers.
	// cron.Every rounds it up to whole seconds.
	Interval time.Duration
	// Throttle bounds how often a namespace without a healthy worker
	// falls back to an on-demand sweep.
	Throttle time.Duration
	// InitTimeout bounds how long Ensure waits for a worker's first sweep.
	InitTimeout time.Duration
	// SendTimeout bounds delivery of a message into a worker's inbox.
	SendTimeout time.Duration
	// SweepTimeout bounds a single sweep.
	SweepTimeout time.Duration
	// Now is the clock used to decide expiry.
	Now func() time.Time
	// Observer is optional.
	Observer Observer
}

// DefaultConfig returns the default expiry configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:     StrategyProactive,
		Interval:     time.Minute,
		Throttle:     time.Second,
		InitTimeout:  5 * time.Second,
		SendTimeout:  time.Second,
		SweepTimeout: 30 * time.Second,
		Now:          time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Throttle < 0 {
		c.Throttle = 0
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = d.InitTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.SweepTimeout <= 0 {
		c.SweepTimeout = d.SweepTimeout
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// WorkerInfo describes a registered worker.
type WorkerInfo struct {
	ID        uuid.UUID
	Namespace string
	Health    Health
	LastError error
	Created   time.Time
}

type entry struct {
	worker  *worker
	health  Health
	lastErr error
	created time.Time
	settled chan struct{}
	once    sync.Once
}

func (e *entry) settle() {
	e.once.Do(func() { close(e.settled) })
}

// Registry keeps at most one worker per namespace and tracks its health.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	events   chan event
	stop     chan struct{}
	loopDone chan struct{}
}

// NewRegistry creates a registry and starts its event loop.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "expiry"),
		entries:  make(map[string]*entry),
		events:   make(chan event, 64),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go r.loop()
	return r
}

// Ensure starts a worker for ns unless one exists, then waits for it to
// finish initializing. It returns the resulting health; a Failed worker
// is stopped and stays Failed until Recreate.
func (r *Registry) Ensure(ctx context.Context, ns string, store storage.Store) (Health, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Uninitialized, domain.ErrStoreClosed
	}
	e, ok := r.entries[ns]
	if !ok {
		w := newWorker(ns, store, r.cfg.Strategy.workerMode(), r.cfg, r.events, r.logger)
		e = &entry{
			worker:  w,
			health:  Uninitialized,
			created: r.cfg.Now(),
			settled: make(chan struct{}),
		}
		r.entries[ns] = e
		r.transition(ns, e, Initializing, nil)
		w.start()
	}
	r.mu.Unlock()

	if !ok {
		if err := r.send(e, cmdInit); err != nil {
			return r.Health(ns), err
		}
	}

	timer := time.NewTimer(r.cfg.InitTimeout)
	defer timer.Stop()

	select {
	case <-e.settled:
	case <-timer.C:
		err := domain.ErrSchedulerInit.WithDetailsf("worker for %q did not become ready within %s", ns, r.cfg.InitTimeout)
		r.fail(ns, e, err)
		return Failed, err
	case <-ctx.Done():
		return r.Health(ns), ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e.health == Failed {
		return Failed, e.lastErr
	}
	return e.health, nil
}

// Recreate disposes any worker for ns and starts a fresh one.
func (r *Registry) Recreate(ctx context.Context, ns string, store storage.Store) (Health, error) {
	r.Dispose(ns)
	return r.Ensure(ctx, ns, store)
}

// Nudge asks the worker for ns to cancel its timer, sweep, and re-arm.
// It is a no-op when no live worker exists.
func (r *Registry) Nudge(ns string) error {
	return r.post(ns, cmdReschedule)
}

// SweepNow asks the worker for ns to sweep immediately.
func (r *Registry) SweepNow(ns string) error {
	return r.post(ns, cmdSweepNow)
}

func (r *Registry) post(ns string, kind command) error {
	r.mu.Lock()
	e, ok := r.entries[ns]
	live := ok && e.health != Failed
	r.mu.Unlock()
	if !live {
		return nil
	}
	return r.send(e, kind)
}

// Health reports the health of the worker for ns.
func (r *Registry) Health(ns string) Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[ns]; ok {
		return e.health
	}
	return Uninitialized
}

// Workers returns a snapshot of all registered workers ordered by namespace.
func (r *Registry) Workers() []WorkerInfo {
	r.mu.Lock()
	out := make([]WorkerInfo, 0, len(r.entries))
	for ns, e := range r.entries {
		out = append(out, WorkerInfo{
			ID:        e.worker.id,
			Namespace: ns,
			Health:    e.health,
			LastError: e.lastErr,
			Created:   e.created,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out
}

// Dispose stops the worker for ns and forgets it.
func (r *Registry) Dispose(ns string) {
	r.mu.Lock()
	e, ok := r.entries[ns]
	if ok {
		delete(r.entries, ns)
		e.settle()
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := r.send(e, cmdDispose); err != nil {
		return
	}

	timer := time.NewTimer(r.cfg.SendTimeout + r.cfg.SweepTimeout)
	defer timer.Stop()
	select {
	case <-e.worker.done:
	case <-timer.C:
		r.logger.Warn("expiry worker did not stop in time", "namespace", ns)
	}
	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveHealth(ns, Uninitialized)
	}
}

// Close disposes every worker and stops the event loop.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	names := make([]string, 0, len(r.entries))
	for ns := range r.entries {
		names = append(names, ns)
	}
	r.mu.Unlock()

	for _, ns := range names {
		r.Dispose(ns)
	}
	close(r.stop)
	<-r.loopDone
	return nil
}

// send delivers a command to e's worker. A worker that has exited or
// whose inbox stays full past SendTimeout is marked Failed and stopped.
func (r *Registry) send(e *entry, kind command) error {
	timer := time.NewTimer(r.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case e.worker.inbox <- message{kind: kind}:
		return nil
	case <-e.worker.done:
	case <-timer.C:
	}

	err := domain.ErrSchedulerCommunication.WithDetailsf("could not deliver %s to worker for %q", kind, e.worker.namespace)
	if kind != cmdDispose {
		r.fail(e.worker.namespace, e, err)
	}
	return err
}

func (r *Registry) fail(ns string, e *entry, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[ns] != e {
		return
	}
	r.transition(ns, e, Failed, err)
}

func (r *Registry) loop() {
	defer close(r.loopDone)
	for {
		select {
		case ev := <-r.events:
			r.apply(ev)
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) apply(ev event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ev.namespace]
	if !ok || e.worker.id != ev.workerID {
		return
	}

	switch ev.kind {
	case evReady:
		r.transition(ev.namespace, e, Healthy, nil)
	case evSwept:
		if e.health == Degraded {
			r.transition(ev.namespace, e, Healthy, nil)
		}
	case evError:
		if ev.fatal {
			r.transition(ev.namespace, e, Failed, ev.err)
		} else if e.health == Healthy {
			r.transition(ev.namespace, e, Degraded, ev.err)
		}
	}
}

// transition must be called with r.mu held.
func (r *Registry) transition(ns string, e *entry, to Health, cause error) {
	from := e.health
	if !canTransition(from, to) {
		return
	}
	e.health = to
	if cause != nil {
		e.lastErr = cause
	}
	if to != Initializing {
		e.settle()
	}
	if to == Failed {
		e.worker.stop()
	}

	log := r.logger.Info
	if to == Failed || to == Degraded {
		log = r.logger.Warn
	}
	args := []any{"namespace", ns, "from", from.String(), "to", to.String()}
	if cause != nil {
		args = append(args, "error", cause)
	}
	log("expiry worker health changed", args...)

	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveHealth(ns, to)
	}
}
