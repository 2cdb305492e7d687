package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/stashkv/internal/core/domain"
)

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites enables fsync after each write.
	// Default: false
	SyncWrites bool

	// InMemory runs Badger without touching disk. Used by tests.
	InMemory bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,  // 64MB
		ValueLogFileSize: 256 << 20, // 256MB
		NumMemtables:     2,
	}
}

// recordPrefix starts every record key: "r" NUL namespace NUL key.
const recordPrefix = "r\x00"

// BadgerEngine is a Backend persisting every namespace in one Badger DB.
type BadgerEngine struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]*BadgerStore
	closed atomic.Bool

	lastGCTime       atomic.Int64  // Unix milliseconds
	gcBytesReclaimed atomic.Uint64 // approximate

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	stopCh chan struct{}
	loops  sync.WaitGroup
}

// NewBadgerEngine opens (or creates) a Badger DB under cfg.Dir.
func NewBadgerEngine(cfg Config, logger *slog.Logger) (*BadgerEngine, error) {
	bcfg := cfg.Badger
	if cfg.Dir == "" && !bcfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage.badger")

	opts := badger.DefaultOptions(cfg.Dir)
	if bcfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	if bcfg.CacheSize > 0 {
		opts.BlockCacheSize = bcfg.CacheSize
	}
	if bcfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = bcfg.ValueLogFileSize
	}
	if bcfg.NumMemtables > 0 {
		opts.NumMemtables = bcfg.NumMemtables
	}
	opts.SyncWrites = bcfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	e := &BadgerEngine{
		db:     db,
		cfg:    bcfg,
		logger: logger,
		stores: make(map[string]*BadgerStore),
		stopCh: make(chan struct{}),

		metricsLSMSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stashkv",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}),
		metricsValueLogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stashkv",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}),
		metricsGCRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stashkv",
			Subsystem: "badger",
			Name:      "gc_rewrites_total",
			Help:      "Value log files rewritten by Badger garbage collection",
		}),
	}

	e.loops.Add(1)
	go e.gcLoop()

	logger.Info("badger engine started",
		"dir", cfg.Dir,
		"in_memory", bcfg.InMemory,
		"gc_interval", bcfg.GCInterval)

	return e, nil
}

// Driver implements Backend.
func (e *BadgerEngine) Driver() string { return DriverBadger }

// Namespace implements Backend.
func (e *BadgerEngine) Namespace(name string) (Store, error) {
	if err := validateNamespace(name); err != nil {
		return nil, err
	}
	if e.closed.Load() {
		return nil, domain.ErrStoreClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.stores[name]; ok {
		return s, nil
	}
	s := &BadgerStore{engine: e, prefix: []byte(recordPrefix + name + "\x00")}
	e.stores[name] = s
	return s, nil
}

// GC runs value log garbage collection until Badger reports nothing left
// to rewrite.
func (e *BadgerEngine) GC(ctx context.Context) (int, error) {
	if e.cfg.InMemory {
		return 0, nil
	}
	start := time.Now()

	runs := 0
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return runs, fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	e.lastGCTime.Store(time.Now().UnixMilli())
	e.metricsGCRuns.Add(float64(runs))

	e.logger.Debug("gc completed", "rewrites", runs, "elapsed", time.Since(start))
	return runs, nil
}

// Close stops background loops and closes the DB.
func (e *BadgerEngine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.logger.Info("shutting down badger engine")

	close(e.stopCh)
	e.loops.Wait()

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// RegisterMetrics registers the engine's collectors with reg and starts
// a loop refreshing the size gauges. The collectors exist from
// NewBadgerEngine on, so the GC loop may already be counting.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer) *BadgerEngine {
	reg.MustRegister(e.metricsLSMSize, e.metricsValueLogSize, e.metricsGCRuns)

	e.loops.Add(1)
	go e.metricsUpdateLoop()
	return e
}

func (e *BadgerEngine) metricsUpdateLoop() {
	defer e.loops.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		e.updateSizeGauges()
		select {
		case <-ticker.C:
		case <-e.stopCh:
			return
		}
	}
}

func (e *BadgerEngine) updateSizeGauges() {
	lsm, vlog := e.db.Size()
	e.metricsLSMSize.Set(float64(lsm))
	e.metricsValueLogSize.Set(float64(vlog))
}

func (e *BadgerEngine) gcLoop() {
	defer e.loops.Done()

	interval := e.cfg.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := e.GC(ctx); err != nil {
				e.logger.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// BadgerStore is one namespace inside a BadgerEngine.
type BadgerStore struct {
	engine *BadgerEngine
	prefix []byte
}

func (s *BadgerStore) dbKey(key string) []byte {
	k := make([]byte, 0, len(s.prefix)+len(key))
	k = append(k, s.prefix...)
	return append(k, key...)
}

func (s *BadgerStore) check() error {
	if s.engine.closed.Load() {
		return domain.ErrStoreClosed
	}
	return nil
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, key string) (*domain.Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var rec *domain.Record
	err := s.engine.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.dbKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			rec = new(domain.Record)
			return decodeRecord(val, rec)
		})
	})
	if err != nil {
		return nil, wrapStorageErr("badger get", err)
	}
	return rec, nil
}

// Put implements Store.
func (s *BadgerStore) Put(_ context.Context, rec *domain.Record) error {
	if err := s.check(); err != nil {
		return err
	}
	if rec == nil || rec.Key == "" {
		return domain.ErrInvalidArgument.WithDetails("record key must not be empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return wrapStorageErr("badger encode", err)
	}
	err = s.engine.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.dbKey(rec.Key), data)
	})
	return wrapStorageErr("badger put", err)
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	if err := s.check(); err != nil {
		return err
	}
	err := s.engine.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.dbKey(key))
	})
	return wrapStorageErr("badger delete", err)
}

// Clear implements Store.
func (s *BadgerStore) Clear(_ context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return wrapStorageErr("badger clear", s.engine.db.DropPrefix(s.prefix))
}

// Scan implements Store.
func (s *BadgerStore) Scan(ctx context.Context, fn func(rec *domain.Record) bool) error {
	if err := s.check(); err != nil {
		return err
	}
	err := s.engine.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec domain.Record
			if err := it.Item().Value(func(val []byte) error {
				return decodeRecord(val, &rec)
			}); err != nil {
				return err
			}
			if !fn(&rec) {
				break
			}
		}
		return nil
	})
	return wrapStorageErr("badger scan", err)
}

// Len implements Store.
func (s *BadgerStore) Len(_ context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	n := 0
	err := s.engine.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, wrapStorageErr("badger len", err)
}

// Namespace returns the namespace name this store is bound to.
func (s *BadgerStore) Namespace() string {
	return string(bytes.TrimSuffix(bytes.TrimPrefix(s.prefix, []byte(recordPrefix)), []byte{0}))
}

// decodeRecord unmarshals a stored record and restores expires to int64,
// which JSON would otherwise hand back as float64.
func decodeRecord(data []byte, rec *domain.Record) error {
	if err := json.Unmarshal(data, rec); err != nil {
		return err
	}
	if exp, ok := rec.Metadata.ExpiresAt(); ok {
		rec.Metadata[domain.MetaExpires] = exp
	}
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
