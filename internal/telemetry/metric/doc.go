// Package metric provides Prometheus metrics for stashkv.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry, HTTP handler and expiry observer
//   - collector.go: key-cache statistics collector
//   - hook.go: pipeline hook recording every operation
//
// Metrics are exposed at /metrics in Prometheus format by `stashkv watch`.
package metric
