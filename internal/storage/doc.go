// Package storage provides the opaque key-value persistence capability used
// by the engine.
//
// Drivers:
//   - "memory": process-local map (tests, ephemeral runs)
//   - "file":   one JSON document per key under a directory, atomic rename
//   - "sqlite": a single kv table in a SQLite database file
package storage
