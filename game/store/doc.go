// Package store provides the durable key/value byte stores that game sessions
// save into.
//
// A Store maps string keys to opaque byte values. Sessions write four keys
// after every action (player, caches, coins, playerLoc) plus a meta record,
// each under a per-session prefix obtained with Namespace.
//
// Backends:
//
//   - Memory keeps everything in a map; used by tests and ephemeral servers.
//   - File writes one zstd-compressed file per key below a directory.
//   - SQLite keeps a single kv table in a database file.
//
// Open selects a backend by driver name ("memory", "file", "sqlite").
//
// Missing keys are reported with ErrNotFound. All backends are safe for
// concurrent use.
package store
