// Package shutdown provides graceful shutdown for long-running stashkv
// commands.
//
// A Handler waits for SIGINT, SIGTERM, an explicit Trigger or context
// cancellation, then runs the registered cleanup hooks in reverse order
// under a timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("store", func(ctx context.Context) error { return svc.Close(ctx) })
//	err := h.Wait(ctx)
package shutdown
