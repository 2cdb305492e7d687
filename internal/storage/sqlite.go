package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yndnr/stashkv/internal/core/domain"
)

// SQLiteConfig contains SQLite-specific parameters.
type SQLiteConfig struct {
	// Path is the database file. Relative paths resolve against
	// Config.Dir. Default: "stashkv.db"
	Path string

	// BusyTimeout bounds how long a writer waits for a lock.
	// Default: 5s
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:        "stashkv.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteEngine is a Backend storing every namespace in one SQLite table.
type SQLiteEngine struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]*SQLiteStore
	closed atomic.Bool
}

// NewSQLiteEngine opens the database file and creates the schema.
func NewSQLiteEngine(cfg Config, logger *slog.Logger) (*SQLiteEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage.sqlite")

	path := cfg.SQLite.Path
	if path == "" {
		path = DefaultSQLiteConfig().Path
	}
	if path != ":memory:" && !filepath.IsAbs(path) && cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
		path = filepath.Join(cfg.Dir, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	busy := cfg.SQLite.BusyTimeout
	if busy <= 0 {
		busy = DefaultSQLiteConfig().BusyTimeout
	}
	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		fmt.Sprintf(`PRAGMA busy_timeout=%d`, busy.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	e := &SQLiteEngine{
		db:     db,
		logger: logger,
		stores: make(map[string]*SQLiteStore),
	}
	if err := e.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	logger.Info("sqlite engine started", "path", path)
	return e, nil
}

// migrate creates tables on first run.
func (e *SQLiteEngine) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			namespace TEXT    NOT NULL,
			key       TEXT    NOT NULL,
			value     TEXT    NOT NULL,
			metadata  TEXT,
			version   INTEGER NOT NULL DEFAULT 1,
			expires   INTEGER,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_expires ON records(namespace, expires)
			WHERE expires IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if _, err := e.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Driver implements Backend.
func (e *SQLiteEngine) Driver() string { return DriverSQLite }

// Namespace implements Backend.
func (e *SQLiteEngine) Namespace(name string) (Store, error) {
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
	s := &SQLiteStore{engine: e, namespace: name}
	e.stores[name] = s
	return s, nil
}

// Close closes the database.
func (e *SQLiteEngine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.db.Close()
}

// SQLiteStore is one namespace inside a SQLiteEngine. Expiry is mirrored
// into an indexed column, so it also implements ExpiryIndex.
type SQLiteStore struct {
	engine    *SQLiteEngine
	namespace string
}

func (s *SQLiteStore) check() error {
	if s.engine.closed.Load() {
		return domain.ErrStoreClosed
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*domain.Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.engine.db.QueryRowContext(ctx,
		`SELECT key, value, metadata, version FROM records WHERE namespace = ? AND key = ?`,
		s.namespace, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("sqlite get", err)
	}
	return rec, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, rec *domain.Record) error {
	if err := s.check(); err != nil {
		return err
	}
	if rec == nil || rec.Key == "" {
		return domain.ErrInvalidArgument.WithDetails("record key must not be empty")
	}

	var meta sql.NullString
	if rec.Metadata != nil {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return wrapStorageErr("sqlite encode metadata", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	var expires sql.NullInt64
	if exp, ok := rec.Metadata.ExpiresAt(); ok {
		expires = sql.NullInt64{Int64: exp, Valid: true}
	}
	value := rec.Value
	if value == nil {
		value = json.RawMessage("null")
	}

	_, err := s.engine.db.ExecContext(ctx,
		`INSERT INTO records (namespace, key, value, metadata, version, expires)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET
		   value = excluded.value,
		   metadata = excluded.metadata,
		   version = excluded.version,
		   expires = excluded.expires`,
		s.namespace, rec.Key, string(value), meta, int64(rec.Version), expires)
	return wrapStorageErr("sqlite put", err)
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.engine.db.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = ? AND key = ?`, s.namespace, key)
	return wrapStorageErr("sqlite delete", err)
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.engine.db.ExecContext(ctx, `DELETE FROM records WHERE namespace = ?`, s.namespace)
	return wrapStorageErr("sqlite clear", err)
}

// Scan implements Store. Rows are read fully before fn runs, so fn may
// write to the store.
func (s *SQLiteStore) Scan(ctx context.Context, fn func(rec *domain.Record) bool) error {
	if err := s.check(); err != nil {
		return err
	}
	rows, err := s.engine.db.QueryContext(ctx,
		`SELECT key, value, metadata, version FROM records WHERE namespace = ? ORDER BY key`,
		s.namespace)
	if err != nil {
		return wrapStorageErr("sqlite scan", err)
	}

	var recs []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return wrapStorageErr("sqlite scan", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return wrapStorageErr("sqlite scan", err)
	}
	rows.Close()

	for _, rec := range recs {
		if !fn(rec) {
			break
		}
	}
	return nil
}

// Len implements Store.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	err := s.engine.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE namespace = ?`, s.namespace).Scan(&n)
	return n, wrapStorageErr("sqlite len", err)
}

// DeleteExpired implements ExpiryIndex.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, nowMs int64) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	res, err := s.engine.db.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = ? AND expires IS NOT NULL AND expires <= ?`,
		s.namespace, nowMs)
	if err != nil {
		return 0, wrapStorageErr("sqlite delete expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStorageErr("sqlite delete expired", err)
	}
	return int(n), nil
}

// NextExpiry implements ExpiryIndex.
func (s *SQLiteStore) NextExpiry(ctx context.Context, nowMs int64) (int64, bool, error) {
	if err := s.check(); err != nil {
		return 0, false, err
	}
	var next sql.NullInt64
	err := s.engine.db.QueryRowContext(ctx,
		`SELECT MIN(expires) FROM records WHERE namespace = ? AND expires > ?`,
		s.namespace, nowMs).Scan(&next)
	if err != nil {
		return 0, false, wrapStorageErr("sqlite next expiry", err)
	}
	return next.Int64, next.Valid, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var (
		rec     domain.Record
		value   string
		meta    sql.NullString
		version int64
	)
	if err := row.Scan(&rec.Key, &value, &meta, &version); err != nil {
		return nil, err
	}
	rec.Value = json.RawMessage(value)
	rec.Version = uint64(version)
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %q: %w", rec.Key, err)
		}
		if exp, ok := rec.Metadata.ExpiresAt(); ok {
			rec.Metadata[domain.MetaExpires] = exp
		}
	}
	return &rec, nil
}
