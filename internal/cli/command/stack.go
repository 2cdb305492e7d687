package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stashkv/internal/config"
	"github.com/yndnr/stashkv/internal/core/service"
	"github.com/yndnr/stashkv/internal/encryption"
	"github.com/yndnr/stashkv/internal/expiry"
	"github.com/yndnr/stashkv/internal/keycache"
	"github.com/yndnr/stashkv/internal/storage"
	"github.com/yndnr/stashkv/internal/telemetry/metric"
	"github.com/yndnr/stashkv/internal/telemetry/tracer"
	"github.com/yndnr/stashkv/internal/ttl"
)

// Stack is a fully wired namespace: backend, service and hooks.
type Stack struct {
	Config  *config.Config
	Backend storage.Backend
	Service *service.KVService
	Expiry  *expiry.Hook
	Keys    *keycache.Coalescer
	Metrics *metric.Registry
	Tracer  *tracer.Provider

	logger *slog.Logger
}

// OpenStack opens the configured backend and attaches the hooks to the
// namespace in order: tracing, metrics, ttl, expiry, encryption.
// Encryption must stay last so it sees the value storage receives.
func OpenStack(ctx context.Context, cfg *config.Config, ns string, traceOut io.Writer, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := storage.Open(cfg.StorageConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	s := &Stack{Config: cfg, Backend: backend, Metrics: metric.NewRegistry(), logger: logger}
	if be, ok := backend.(*storage.BadgerEngine); ok {
		be.RegisterMetrics(s.Metrics.Registerer())
	}

	if err := s.wire(ctx, ns, traceOut); err != nil {
		return nil, errors.Join(err, s.Close(ctx))
	}
	return s, nil
}

func (s *Stack) wire(ctx context.Context, ns string, traceOut io.Writer) error {
	store, err := s.Backend.Namespace(ns)
	if err != nil {
		return fmt.Errorf("open namespace %q: %w", ns, err)
	}

	tc := s.Config.TracerConfig()
	tc.Output = traceOut
	if s.Tracer, err = tracer.New(tc); err != nil {
		return err
	}

	if s.Keys, err = keycache.New(s.Config.KeyCacheConfig(), s.logger); err != nil {
		return err
	}
	if err := s.Metrics.RegisterKeyCache(s.Keys); err != nil {
		return fmt.Errorf("register key cache metrics: %w", err)
	}

	s.Expiry = expiry.NewHook(s.Config.ExpiryConfig(s.Metrics), nil, s.logger)
	s.Service = service.New(ns, store, service.WithLogger(s.logger))

	return s.Service.Use(ctx,
		tracer.NewHook(s.Tracer),
		metric.NewHook(s.Metrics),
		ttl.NewHook(ttl.NewNormalizer(s.Config.Expiration.DefaultTTL)),
		s.Expiry,
		encryption.NewHook(s.Keys, s.logger),
	)
}

// Close detaches the hooks, stops the scheduler, flushes spans and
// closes the backend.
func (s *Stack) Close(ctx context.Context) error {
	var errs []error
	if s.Service != nil {
		errs = append(errs, s.Service.Close(ctx))
	} else if s.Expiry != nil {
		errs = append(errs, s.Expiry.Close())
	}
	if s.Tracer != nil {
		errs = append(errs, s.Tracer.Shutdown(ctx))
	}
	if s.Backend != nil {
		errs = append(errs, s.Backend.Close())
	}
	return errors.Join(errs...)
}

// openStack opens the stack for the command's namespace.
func openStack(c *cli.Context) (*Stack, error) {
	return OpenStack(c.Context, GetConfig(c), namespace(c), c.App.ErrWriter, GetLogger(c))
}

// withStack runs fn against an open stack and closes it afterwards.
func withStack(c *cli.Context, fn func(s *Stack) error) (err error) {
	s, err := openStack(c)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(context.WithoutCancel(c.Context)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
