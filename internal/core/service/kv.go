package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/yndnr/stashkv/internal/codec"
	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/pipeline"
	"github.com/yndnr/stashkv/internal/storage"
	"github.com/yndnr/stashkv/pkg/cmap"
)

// KVService exposes the storage verbs of one namespace.
type KVService struct {
	namespace string
	store     storage.Store
	runner    *pipeline.Runner
	logger    *slog.Logger
	writes    *cmap.KeyLocks

	mu     sync.RWMutex
	closed bool
}

// New creates a service over store. Hooks are attached with Use.
func New(namespace string, store storage.Store, opts ...Option) *KVService {
	s := &KVService{
		namespace: namespace,
		store:     store,
		logger:    slog.Default(),
		writes:    cmap.NewKeyLocks(64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "service", "namespace", namespace)
	if s.runner == nil {
		s.runner = pipeline.NewRunner(s.logger)
	}
	return s
}

// Namespace implements pipeline.Host.
func (s *KVService) Namespace() string { return s.namespace }

// Store implements pipeline.Host.
func (s *KVService) Store() storage.Store { return s.store }

// Hooks returns the attached hooks in execution order.
func (s *KVService) Hooks() []pipeline.Hook { return s.runner.Hooks() }

// Use attaches hooks in order and runs their OnRegister. A hook whose
// OnRegister fails is detached again and the error returned; hooks
// attached before it stay.
func (s *KVService) Use(ctx context.Context, hooks ...pipeline.Hook) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for _, h := range hooks {
		if err := s.runner.Register(h); err != nil {
			return domain.ErrInvalidArgument.WithCause(err)
		}
		rh, ok := h.(pipeline.RegisterHook)
		if !ok {
			continue
		}
		if err := rh.OnRegister(ctx, s); err != nil {
			s.runner.Unregister(h.Name())
			return err
		}
	}
	return nil
}

// Detach removes the named hook and runs its OnUnregister and Close.
func (s *KVService) Detach(ctx context.Context, name string) error {
	h, ok := s.runner.Unregister(name)
	if !ok {
		return nil
	}
	return s.release(ctx, h)
}

func (s *KVService) release(ctx context.Context, h pipeline.Hook) error {
	var errs []error
	if uh, ok := h.(pipeline.UnregisterHook); ok {
		errs = append(errs, uh.OnUnregister(ctx, s))
	}
	if c, ok := h.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Get returns the value stored under key, or nil when there is none.
func (s *KVService) Get(ctx context.Context, key string) (any, error) {
	return s.execute(ctx, domain.OpGet, key, nil, nil, s.coreGet)
}

// GetMetadata returns the metadata stored with key, or nil.
func (s *KVService) GetMetadata(ctx context.Context, key string) (domain.Metadata, error) {
	res, err := s.execute(ctx, domain.OpGetMetadata, key, nil, nil, s.coreGetMetadata)
	if err != nil || res == nil {
		return nil, err
	}
	md, _ := res.(domain.Metadata)
	return md, nil
}

// Set stores value under key.
func (s *KVService) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	var md domain.Metadata
	if len(opts) > 0 {
		md = make(domain.Metadata)
		for _, opt := range opts {
			opt(md)
		}
	}
	_, err := s.execute(ctx, domain.OpSet, key, value, md, s.coreSet)
	return err
}

// Remove deletes key. Removing a missing key is not an error.
func (s *KVService) Remove(ctx context.Context, key string) error {
	_, err := s.execute(ctx, domain.OpRemove, key, nil, nil, s.coreRemove)
	return err
}

// Clear deletes every record of the namespace.
func (s *KVService) Clear(ctx context.Context) error {
	_, err := s.execute(ctx, domain.OpClear, "", nil, nil, s.coreClear)
	return err
}

// Keys returns the namespace's keys in lexical order.
func (s *KVService) Keys(ctx context.Context) ([]string, error) {
	res, err := s.execute(ctx, domain.OpKeys, "", nil, nil, s.coreKeys)
	if err != nil || res == nil {
		return nil, err
	}
	keys, _ := res.([]string)
	return keys, nil
}

// Length returns the number of records in the namespace.
func (s *KVService) Length(ctx context.Context) (int, error) {
	res, err := s.execute(ctx, domain.OpLength, "", nil, nil, s.coreLength)
	if err != nil || res == nil {
		return 0, err
	}
	n, _ := res.(int)
	return n, nil
}

// Close detaches every hook in reverse order. The store is left open;
// it belongs to the backend that created it.
func (s *KVService) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	hooks := s.runner.Hooks()
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		s.runner.Unregister(hooks[i].Name())
		errs = append(errs, s.release(ctx, hooks[i]))
	}
	return errors.Join(errs...)
}

func (s *KVService) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed.WithDetailsf("namespace %q", s.namespace)
	}
	return nil
}

func (s *KVService) execute(ctx context.Context, op domain.OperationKind, key string, value any, md domain.Metadata, core pipeline.CoreFunc) (any, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	switch op {
	case domain.OpGet, domain.OpGetMetadata, domain.OpSet, domain.OpRemove:
		if key == "" {
			return nil, domain.ErrInvalidArgument.WithDetails("key must not be empty")
		}
	}

	oc := pipeline.NewOperationContext(s.namespace, op, key)
	oc.Value = value
	oc.Metadata = md
	oc.Store = s.store
	return s.runner.Execute(ctx, oc, core)
}

func (s *KVService) coreGet(ctx context.Context, oc *pipeline.OperationContext) (any, error) {
	rec, err := s.store.Get(ctx, oc.Key)
	if err != nil || rec == nil {
		return nil, err
	}
	oc.Metadata = rec.Metadata
	return codec.Unmarshal(rec.Value)
}

func (s *KVService) coreGetMetadata(ctx context.Context, oc *pipeline.OperationContext) (any, error) {
	rec, err := s.store.Get(ctx, oc.Key)
	if err != nil || rec == nil || rec.Metadata == nil {
		return nil, err
	}
	oc.Metadata = rec.Metadata
	return rec.Metadata.Clone(), nil
}

// coreSet holds the key's write lock across the read of the previous
// record and the put, so concurrent sets in this process get distinct
// versions.
func (s *KVService) coreSet(ctx context.Context, oc *pipeline.OperationContext) (any, error) {
	raw, err := codec.Marshal(oc.Value)
	if err != nil {
		return nil, err
	}

	unlock := s.writes.Lock(oc.Key)
	defer unlock()

	prev, err := s.store.Get(ctx, oc.Key)
	if err != nil {
		return nil, err
	}
	rec := &domain.Record{Key: oc.Key, Value: raw, Metadata: oc.Metadata, Version: 1}
	if prev != nil {
		rec.Version = prev.Version + 1
		oc.PreviousMetadata = prev.Metadata
		if oc.PreviousValue, err = codec.Unmarshal(prev.Value); err != nil {
			s.logger.DebugContext(ctx, "previous value could not be decoded", "error", err)
		}
	}
	return nil, s.store.Put(ctx, rec)
}

func (s *KVService) coreRemove(ctx context.Context, oc *pipeline.OperationContext) (any, error) {
	unlock := s.writes.Lock(oc.Key)
	defer unlock()
	return nil, s.store.Delete(ctx, oc.Key)
}

func (s *KVService) coreClear(ctx context.Context, _ *pipeline.OperationContext) (any, error) {
	return nil, s.store.Clear(ctx)
}

func (s *KVService) coreKeys(ctx context.Context, _ *pipeline.OperationContext) (any, error) {
	keys := []string{}
	err := s.store.Scan(ctx, func(rec *domain.Record) bool {
		keys = append(keys, rec.Key)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KVService) coreLength(ctx context.Context, _ *pipeline.OperationContext) (any, error) {
	return s.store.Len(ctx)
}
