// Package logger provides structured logging for stashkv.
//
// It wraps log/slog:
//
//   - logger.go: handler construction and a process-wide level
//   - context.go: the pipeline operation ID carried in a context
//   - redact.go: masking of credentials and encrypted envelopes
//
// New returns a *slog.Logger; components tag themselves with
// With("component", ...) and log through the *Context methods so that
// records emitted during a pipeline operation carry its op_id. Level
// changes through SetLevel apply to every logger created by New, which
// is how the config watcher reloads it.
package logger
