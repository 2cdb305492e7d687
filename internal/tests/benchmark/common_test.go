package benchmark

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/stashkv/internal/core/service"
	"github.com/yndnr/stashkv/internal/storage"
)

// KeyCounts defines the namespace sizes for benchmarking.
var KeyCounts = []int{5000, 10000, 20000, 50000, 100000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 5000, 10000}

// Drivers lists the storage engines every KV benchmark runs against.
var Drivers = []string{storage.DriverMemory, storage.DriverBadger, storage.DriverSQLite}

var quiet = slog.New(slog.DiscardHandler)

// newKey generates a unique, time-ordered key.
func newKey() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, _ := ulid.New(ulid.Timestamp(time.Now()), entropy)
	return "k-" + strings.ToLower(id.String())
}

// sampleValue returns a small structured value like the ones callers
// usually store.
func sampleValue(i int) map[string]any {
	return map[string]any{
		"id":      i,
		"name":    fmt.Sprintf("user-%d", i%1000),
		"active":  i%2 == 0,
		"tags":    []any{"bench", "stashkv"},
		"created": time.UnixMilli(1_700_000_000_000).UTC(),
	}
}

// openBackend opens a backend of the given driver under a temp dir.
func openBackend(b *testing.B, driver string) storage.Backend {
	b.Helper()
	cfg := storage.DefaultConfig(b.TempDir())
	cfg.Driver = driver
	cfg.Badger.GCInterval = time.Hour
	backend, err := storage.Open(cfg, quiet)
	if err != nil {
		b.Fatalf("Open %s failed: %v", driver, err)
	}
	b.Cleanup(func() { backend.Close() })
	return backend
}

// newService opens namespace "bench" on driver with no hooks attached.
func newService(b *testing.B, driver string) *service.KVService {
	b.Helper()
	store, err := openBackend(b, driver).Namespace("bench")
	if err != nil {
		b.Fatalf("Namespace failed: %v", err)
	}
	svc := service.New("bench", store, service.WithLogger(quiet))
	b.Cleanup(func() { svc.Close(context.Background()) })
	return svc
}

// prefill stores count keys and returns them.
func prefill(ctx context.Context, b *testing.B, svc *service.KVService, count int) []string {
	b.Helper()
	keys := make([]string, count)
	for i := range keys {
		keys[i] = newKey()
		if err := svc.Set(ctx, keys[i], sampleValue(i)); err != nil {
			b.Fatalf("prefill Set failed: %v", err)
		}
	}
	return keys
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithDrivers runs a benchmark function once per storage driver.
func runWithDrivers(b *testing.B, benchFn func(b *testing.B, driver string)) {
	for _, driver := range Drivers {
		b.Run(driver, func(b *testing.B) {
			benchFn(b, driver)
		})
	}
}

// sizeLabel returns a human-readable size label.
func sizeLabel(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
