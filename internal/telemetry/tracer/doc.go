// Package tracer provides OpenTelemetry tracing for stashkv.
//
//   - otel.go: tracer provider construction and exporters
//   - hook.go: pipeline hook emitting one span per operation
//
// Exporters are "none" (spans are created and dropped) and "stdout"
// (pretty-printed JSON, for local debugging).
package tracer
