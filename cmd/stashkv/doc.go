// Package main provides the entry point for stashkv.
//
// stashkv is a command-line front end for a persistent key-value store
// with per-record TTLs, a background expiration scheduler and optional
// value encryption:
//
//   - Values: get, set (--ttl, --expires, --json), rm, keys, len, clear, meta
//   - Expiry: sweep, status, watch (foreground scheduler with /metrics)
//   - Misc: config, version
//
// Usage:
//
//	stashkv --driver sqlite --data-dir ./data set session:1 token --ttl 30m
//	stashkv -o json get session:1
//	stashkv --config stashkv.toml watch --metrics-addr 127.0.0.1:9464
package main
