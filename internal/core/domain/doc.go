// Package domain defines the core domain models for stashkv.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - Record: the stored unit (key, JSON value, metadata, write version)
//   - Metadata: per-record attributes, including the absolute expiry
//   - OperationKind: the storage verbs routed through the hook pipeline
//   - Errors: coded error definitions shared by every layer
package domain
