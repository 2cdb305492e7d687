package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stashkv/internal/expiry"
	"github.com/yndnr/stashkv/internal/infra/confloader"
	"github.com/yndnr/stashkv/internal/infra/shutdown"
	"github.com/yndnr/stashkv/internal/telemetry/logger"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run the expiration scheduler in the foreground until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve /metrics and /healthz on this address (default from telemetry.metrics_addr)",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop after this long (0 runs until SIGINT/SIGTERM)",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Value: shutdown.DefaultTimeout,
				Usage: "Time allowed for a graceful shutdown",
			},
		},
		Action: watchRun,
	}
}

func watchRun(c *cli.Context) error {
	cfg := GetConfig(c)
	log := GetLogger(c)

	s, err := openStack(c)
	if err != nil {
		return err
	}

	h := shutdown.NewHandler(c.Duration("shutdown-timeout"), log)
	h.OnShutdown("stack", s.Close)

	addr := cfg.Telemetry.MetricsAddr
	if c.IsSet("metrics-addr") {
		addr = c.String("metrics-addr")
	}
	if addr != "" {
		srv, err := serveMetrics(addr, s, h, log)
		if err != nil {
			return errors.Join(err, s.Close(context.WithoutCancel(c.Context)))
		}
		h.OnShutdown("metrics-server", srv.Shutdown)
	}

	if path := c.String("config"); path != "" {
		w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
		if err != nil {
			return errors.Join(err, s.Close(context.WithoutCancel(c.Context)))
		}
		if err := w.Watch(path); err != nil {
			return errors.Join(err, w.Stop(), s.Close(context.WithoutCancel(c.Context)))
		}
		w.OnChange(func(string) { reloadLogLevel(c, log) })
		w.StartAsync()
		h.OnShutdown("config-watcher", func(context.Context) error { return w.Stop() })
	}

	ctx := c.Context
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	log.Info("watching namespace",
		"namespace", s.Service.Namespace(),
		"driver", s.Backend.Driver(),
		"strategy", cfg.Expiration.Strategy,
	)
	return h.Wait(ctx)
}

// serveMetrics starts the telemetry endpoint. A serve failure triggers
// shutdown.
func serveMetrics(addr string, s *Stack, h *shutdown.Handler, log *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Metrics.Handler())
	mux.Handle("/healthz", healthHandler(s))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
			h.Trigger()
		}
	}()
	log.Info("metrics endpoint listening", "addr", ln.Addr().String())
	return srv, nil
}

// healthHandler reports 200 while the namespace's scheduler is healthy
// or the strategy runs without one, and 503 otherwise.
func healthHandler(s *Stack) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		state := "none"
		status := http.StatusOK
		if reg := s.Expiry.Registry(); reg != nil {
			health := reg.Health(s.Service.Namespace())
			state = health.String()
			if health != expiry.Healthy {
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, "scheduler: %s\n", state)
	})
}

// reloadLogLevel re-reads the configuration and applies its log level.
// Other settings take effect on restart.
func reloadLogLevel(c *cli.Context, log *slog.Logger) {
	cfg, err := loadConfig(c)
	if err != nil {
		log.Warn("configuration reload rejected", "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)
	log.Info("configuration reloaded", "log_level", logger.GetLevel())
}
