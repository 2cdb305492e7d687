// Package pipeline sequences hooks around a core storage operation.
//
// A hook is any value with a Name. It takes part in a stage by also
// implementing the matching capability interface:
//
//   - BeforeHook: inspect or rewrite the OperationContext
//   - AfterHook: transform the result (a fold over the chain)
//   - ErrorHook: keep, replace or suppress a failure
//   - RegisterHook / UnregisterHook: attach to and detach from a namespace
//
// Execution order is registration order. There are no priorities.
//
// Usage:
//
//	r := pipeline.NewRunner(logger)
//	_ = r.Register(ttlHook, cryptoHook, expiryHook)
//	res, err := r.Execute(ctx, oc, core)
package pipeline
