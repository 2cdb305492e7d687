package shutdown

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestNewHandler(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if h.logger == nil {
		t.Error("logger should default to slog.Default")
	}

	if h := NewHandler(0, nil); h.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", h.timeout, DefaultTimeout)
	}

	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func waitAsync(h *Handler, ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()
	return errCh
}

func TestHandler_ReverseOrder(t *testing.T) {
	tests := []struct {
		name string
		fire func(h *Handler, cancel context.CancelFunc)
	}{
		{"signal", func(*Handler, context.CancelFunc) { _ = syscall.Kill(syscall.Getpid(), syscall.SIGINT) }},
		{"trigger", func(h *Handler, _ context.CancelFunc) { h.Trigger() }},
		{"context", func(_ *Handler, cancel context.CancelFunc) { cancel() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(5*time.Second, nil)
			var (
				mu    sync.Mutex
				order []string
			)
			for _, name := range []string{"metrics", "scheduler", "store"} {
				h.OnShutdown(name, func(context.Context) error {
					mu.Lock()
					order = append(order, name)
					mu.Unlock()
					return nil
				})
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := waitAsync(h, ctx)
			time.Sleep(50 * time.Millisecond)
			tt.fire(h, cancel)

			select {
			case err := <-errCh:
				if err != nil {
					t.Errorf("Wait() returned error: %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Wait() did not complete in time")
			}

			mu.Lock()
			defer mu.Unlock()
			if want := []string{"store", "scheduler", "metrics"}; !reflect.DeepEqual(order, want) {
				t.Errorf("hooks called in order %v, want %v", order, want)
			}
			select {
			case <-h.Done():
			default:
				t.Error("Done channel should be closed after Wait completes")
			}
		})
	}
}

func TestHandler_HookErrorsAreJoined(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := 0

	h.OnShutdown("a", func(context.Context) error { ran++; return errA })
	h.OnShutdown("ok", func(context.Context) error { ran++; return nil })
	h.OnShutdown("b", func(context.Context) error { ran++; return errB })

	h.Trigger()
	err := h.Wait(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() = %v, want both hook errors", err)
	}
	if ran != 3 {
		t.Errorf("%d hooks ran, want 3", ran)
	}
}

func TestHandler_HookSeesTimeout(t *testing.T) {
	h := NewHandler(30*time.Millisecond, nil)
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger()
	if err := h.Wait(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestHandler_TriggerIsIdempotent(t *testing.T) {
	h := NewHandler(time.Second, nil)
	h.Trigger()
	h.Trigger()
	if err := h.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.hooks) != 10 {
		t.Errorf("expected 10 hooks, got %d", len(h.hooks))
	}
}
