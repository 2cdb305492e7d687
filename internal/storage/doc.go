// Package storage provides the raw object stores behind stashkv.
//
// A Backend owns one physical engine and hands out a Store per
// namespace. Three drivers are available:
//
//   - memory: sharded in-process maps (internal/storage/memory)
//   - badger: one Badger DB, namespaces separated by key prefix
//   - sqlite: one SQLite file (modernc.org/sqlite, WAL journal), with an
//     indexed expires column
//
// Stores persist records verbatim. They never interpret values and never
// hide expired records; the expiration layer does that.
package storage
