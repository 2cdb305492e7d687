// Package service provides the key-value service for stashkv.
//
// KVService binds one namespace's store to a hook pipeline and exposes
// the storage verbs:
//
//   - Get, GetMetadata: read a value or its metadata
//   - Set: write a value with optional ttl, expires and metadata
//   - Remove, Clear: delete one or all records
//   - Keys, Length: enumerate the namespace
//
// Every verb runs through the pipeline, so registered hooks (ttl
// normalization, expiry, encryption, metrics, tracing) see every call.
// KVService is safe for concurrent use.
package service
