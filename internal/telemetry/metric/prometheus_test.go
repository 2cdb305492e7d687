package metric

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/expiry"
	"github.com/yndnr/stashkv/internal/keycache"
	"github.com/yndnr/stashkv/internal/pipeline"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func expectLines(t *testing.T, body string, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if !strings.Contains(body, l) {
			t.Errorf("expected %q in scrape output", l)
		}
	}
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.registry == nil {
		t.Fatal("registry field is nil")
	}
	if r.OperationsTotal == nil || r.OperationDuration == nil || r.WorkerHealth == nil {
		t.Error("metric vectors not initialized")
	}
}

func TestHandler(t *testing.T) {
	body := scrape(t, NewRegistry().Handler())
	expectLines(t, body, "go_goroutines", "process_")
}

func TestObserveOperation(t *testing.T) {
	r := NewRegistry()
	r.ObserveOperation("sessions", "get", OutcomeOK, time.Millisecond)
	r.ObserveOperation("sessions", "get", OutcomeOK, time.Millisecond)
	r.ObserveOperation("sessions", "set", OutcomeError, time.Millisecond)

	expectLines(t, scrape(t, r.Handler()),
		`stashkv_operations_total{namespace="sessions",op="get",outcome="ok"} 2`,
		`stashkv_operations_total{namespace="sessions",op="set",outcome="error"} 1`,
		`stashkv_operation_duration_seconds_count{namespace="sessions",op="get"} 2`,
	)
}

func TestExpiryObserver(t *testing.T) {
	r := NewRegistry()
	r.ObserveSweep("ns", expiry.SweepResult{Deleted: 3, Failed: 1}, nil)
	r.ObserveSweep("ns", expiry.SweepResult{}, errors.New("scan failed"))
	r.ObserveHealth("ns", expiry.Degraded)

	expectLines(t, scrape(t, r.Handler()),
		`stashkv_expiry_sweeps_total{namespace="ns",outcome="ok"} 1`,
		`stashkv_expiry_sweeps_total{namespace="ns",outcome="error"} 1`,
		`stashkv_expiry_deleted_records_total{namespace="ns"} 3`,
		`stashkv_expiry_delete_failures_total{namespace="ns"} 1`,
		`stashkv_expiry_worker_health{namespace="ns"} 3`,
	)
}

type fixedStats keycache.Stats

func (s fixedStats) Stats() keycache.Stats { return keycache.Stats(s) }

func TestCollector(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterKeyCache(fixedStats{Hits: 7, Misses: 2, Derivations: 2, Evictions: 1, Size: 1}); err != nil {
		t.Fatalf("RegisterKeyCache: %v", err)
	}

	expectLines(t, scrape(t, r.Handler()),
		"stashkv_keycache_hits_total 7",
		"stashkv_keycache_misses_total 2",
		"stashkv_keycache_derivations_total 2",
		"stashkv_keycache_evictions_total 1",
		"stashkv_keycache_entries 1",
	)
}

func TestHook(t *testing.T) {
	r := NewRegistry()
	runner := pipeline.NewRunner(nil)
	runner.Register(NewHook(r))
	ctx := context.Background()

	run := func(op domain.OperationKind, result any, err error) {
		oc := pipeline.NewOperationContext("ns", op, "k")
		runner.Execute(ctx, oc, func(context.Context, *pipeline.OperationContext) (any, error) {
			return result, err
		})
	}
	run(domain.OpGet, "v", nil)
	run(domain.OpGet, nil, nil)
	run(domain.OpSet, nil, nil)
	run(domain.OpSet, nil, errors.New("disk full"))

	expectLines(t, scrape(t, r.Handler()),
		`stashkv_operations_total{namespace="ns",op="get",outcome="ok"} 1`,
		`stashkv_operations_total{namespace="ns",op="get",outcome="miss"} 1`,
		`stashkv_operations_total{namespace="ns",op="set",outcome="ok"} 1`,
		`stashkv_operations_total{namespace="ns",op="set",outcome="error"} 1`,
	)
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ObserveOperation("ns", "get", OutcomeOK, time.Microsecond)
			r.ObserveHealth("ns", expiry.Healthy)
		}()
	}
	wg.Wait()

	expectLines(t, scrape(t, r.Handler()),
		`stashkv_operations_total{namespace="ns",op="get",outcome="ok"} 50`,
	)
}
