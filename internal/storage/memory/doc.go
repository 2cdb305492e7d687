// Package memory provides the in-memory storage backend for stashkv.
//
// Records are kept in a pkg/cmap sharded map, one map per namespace.
// Reads and writes copy records so callers never share mutable state
// with the store. The store also implements the expiry index used by
// the expiration sweeper to skip full scans.
package memory
