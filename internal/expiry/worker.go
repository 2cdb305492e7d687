package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/storage"
)

// MaxTimerDelay is the longest single timer arm. Expiries further out are
// reached by re-arming after each wake.
const MaxTimerDelay = 2147483647 * time.Millisecond

type mode int

const (
	modeProactive mode = iota
	modeInterval
)

type command int

const (
	cmdInit command = iota
	cmdReschedule
	cmdSweepNow
	cmdDispose
)

func (c command) String() string {
	switch c {
	case cmdInit:
		return "init"
	case cmdReschedule:
		return "reschedule"
	case cmdSweepNow:
		return "sweep-now"
	case cmdDispose:
		return "dispose"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

type message struct {
	kind command
}

type eventKind int

const (
	evReady eventKind = iota
	evSwept
	evError
)

// event is what a worker reports back to its registry.
type event struct {
	kind      eventKind
	workerID  uuid.UUID
	namespace string
	result    SweepResult
	err       error
	fatal     bool
}

// worker owns one namespace's expiry timer. All of its state is touched
// only from run, so it needs no locks.
type worker struct {
	id        uuid.UUID
	namespace string
	store     storage.Store
	mode      mode
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time
	observer  Observer
	logger    *slog.Logger

	inbox  chan message
	events chan<- event
	done   chan struct{}
	quit   chan struct{}
	halt   sync.Once

	timer *time.Timer
	cron  *cron.Cron
}

func newWorker(ns string, store storage.Store, m mode, cfg Config, events chan<- event, logger *slog.Logger) *worker {
	id := uuid.New()
	return &worker{
		id:        id,
		namespace: ns,
		store:     store,
		mode:      m,
		interval:  cfg.Interval,
		timeout:   cfg.SweepTimeout,
		now:       cfg.Now,
		observer:  cfg.Observer,
		logger:    logger.With("namespace", ns, "worker_id", id.String()),
		inbox:     make(chan message, 16),
		events:    events,
		done:      make(chan struct{}),
		quit:      make(chan struct{}),
	}
}

func (w *worker) start() {
	go w.run()
}

// stop makes run return after any sweep in progress. Unlike cmdDispose
// it does not need room in the inbox.
func (w *worker) stop() {
	w.halt.Do(func() { close(w.quit) })
}

func (w *worker) run() {
	defer close(w.done)
	defer w.stopTimers()
	defer func() {
		if r := recover(); r != nil {
			w.emit(event{
				kind: evError,
				err: domain.ErrSchedulerCommunication.WithDetailsf(
					"worker for namespace %q panicked: %v", w.namespace, r),
				fatal: true,
			})
		}
	}()

	for {
		var fire <-chan time.Time
		if w.timer != nil {
			fire = w.timer.C
		}

		select {
		case <-w.quit:
			return
		default:
		}

		select {
		case <-w.quit:
			return
		case msg := <-w.inbox:
			if !w.handle(msg) {
				return
			}
		case <-fire:
			w.timer = nil
			w.sweepAndArm(false)
		}
	}
}

// handle processes one message and returns false once the worker should
// stop. Runs of reschedule and sweep-now requests collapse into one sweep.
func (w *worker) handle(msg message) bool {
	switch msg.kind {
	case cmdInit:
		w.initialize()
		return true
	case cmdDispose:
		return false
	}

drain:
	for {
		select {
		case next := <-w.inbox:
			switch next.kind {
			case cmdDispose:
				return false
			case cmdInit:
				w.initialize()
				return true
			}
		default:
			break drain
		}
	}

	w.sweepAndArm(false)
	return true
}

func (w *worker) initialize() {
	if w.mode == modeInterval && w.cron == nil {
		c := cron.New()
		c.Schedule(cron.Every(w.interval), cron.FuncJob(func() {
			select {
			case w.inbox <- message{kind: cmdSweepNow}:
			default:
			}
		}))
		c.Start()
		w.cron = c
	}
	w.sweepAndArm(true)
}

// sweepAndArm cancels any pending timer, sweeps, and in proactive mode
// arms a new timer for the earliest remaining expiry.
func (w *worker) sweepAndArm(initial bool) {
	w.cancelTimer()

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	res, err := Sweep(ctx, w.store, w.now())
	cancel()

	if w.observer != nil {
		w.observer.ObserveSweep(w.namespace, res, err)
	}

	if err != nil {
		if initial {
			w.emit(event{
				kind:  evError,
				err:   domain.ErrSchedulerInit.WithDetailsf("initial sweep of %q failed", w.namespace).WithCause(err),
				fatal: true,
			})
			return
		}
		w.logger.Warn("expiry sweep failed", "error", err)
		w.emit(event{kind: evError, err: err})
		return
	}

	if res.Deleted > 0 || res.Failed > 0 {
		w.logger.Debug("expiry sweep completed", "deleted", res.Deleted, "failed", res.Failed)
	}

	if w.mode == modeProactive && res.HasNext {
		w.arm(res.NextAt())
	}

	kind := evSwept
	if initial {
		kind = evReady
	}
	w.emit(event{kind: kind, result: res})
}

func (w *worker) arm(at time.Time) {
	delay := at.Sub(w.now())
	if delay < 0 {
		delay = 0
	}
	if delay > MaxTimerDelay {
		delay = MaxTimerDelay
	}
	w.timer = time.NewTimer(delay)
}

func (w *worker) cancelTimer() {
	if w.timer == nil {
		return
	}
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer = nil
}

func (w *worker) stopTimers() {
	w.cancelTimer()
	if w.cron != nil {
		<-w.cron.Stop().Done()
		w.cron = nil
	}
}

func (w *worker) emit(ev event) {
	ev.workerID = w.id
	ev.namespace = w.namespace
	select {
	case w.events <- ev:
	case <-w.quit:
	}
}
