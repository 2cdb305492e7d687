package pipeline

import (
	"context"

	"github.com/yndnr/stashkv/internal/storage"
)

// Hook is the minimal capability every hook has. The stage capabilities
// below are optional; the runner checks for each one and skips hooks
// that do not implement it.
type Hook interface {
	// Name identifies the hook within a runner.
	Name() string
}

// BeforeHook runs before the core operation and may rewrite the context.
type BeforeHook interface {
	Hook
	Before(ctx context.Context, oc *OperationContext) error
}

// AfterHook runs after the core operation. It receives the result
// produced so far and returns the result passed to the next AfterHook.
type AfterHook interface {
	Hook
	After(ctx context.Context, oc *OperationContext, result any) (any, error)
}

// ErrorHook observes a failed invocation. It returns nil to leave err
// unchanged, a different error to replace it, or ErrSuppressed to turn
// the failure into an empty result.
type ErrorHook interface {
	Hook
	OnError(ctx context.Context, oc *OperationContext, err error) error
}

// FinishHook observes the final outcome of every invocation, including
// failed and suppressed ones. It cannot change the outcome.
type FinishHook interface {
	Hook
	Finish(ctx context.Context, oc *OperationContext, result any, err error)
}

// Host is what a hook sees of the namespace it is registered on.
type Host interface {
	Namespace() string
	Store() storage.Store
}

// RegisterHook is notified when it is attached to a namespace.
type RegisterHook interface {
	Hook
	OnRegister(ctx context.Context, host Host) error
}

// UnregisterHook is notified when its namespace is closed or the hook
// is removed.
type UnregisterHook interface {
	Hook
	OnUnregister(ctx context.Context, host Host) error
}

// Funcs adapts plain functions to the hook capabilities. Nil fields are
// treated as absent capabilities.
type Funcs struct {
	HookName   string
	BeforeFunc func(ctx context.Context, oc *OperationContext) error
	AfterFunc  func(ctx context.Context, oc *OperationContext, result any) (any, error)
	ErrorFunc  func(ctx context.Context, oc *OperationContext, err error) error
	FinishFunc func(ctx context.Context, oc *OperationContext, result any, err error)
}

// Name implements Hook.
func (f *Funcs) Name() string { return f.HookName }

// Before implements BeforeHook.
func (f *Funcs) Before(ctx context.Context, oc *OperationContext) error {
	if f.BeforeFunc == nil {
		return nil
	}
	return f.BeforeFunc(ctx, oc)
}

// After implements AfterHook.
func (f *Funcs) After(ctx context.Context, oc *OperationContext, result any) (any, error) {
	if f.AfterFunc == nil {
		return result, nil
	}
	return f.AfterFunc(ctx, oc, result)
}

// OnError implements ErrorHook.
func (f *Funcs) OnError(ctx context.Context, oc *OperationContext, err error) error {
	if f.ErrorFunc == nil {
		return nil
	}
	return f.ErrorFunc(ctx, oc, err)
}

// Finish implements FinishHook.
func (f *Funcs) Finish(ctx context.Context, oc *OperationContext, result any, err error) {
	if f.FinishFunc != nil {
		f.FinishFunc(ctx, oc, result, err)
	}
}
