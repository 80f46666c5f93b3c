// Package luck provides the deterministic oracle that decides where caches
// spawn and how many coins they start with.
//
// An Oracle maps a string key to a float in [0,1). The same key always yields
// the same value, within a process and across restarts, so the world is
// identical for every player that shares a seed.
//
// Keys:
//
// Keys are built with Key, which joins its parts with commas:
//
//	luck.Key(12, 7)                 // "12,7"              spawn roll
//	luck.Key(12, 7, "initialValue") // "12,7,initialValue" coin count roll
//
// Implementations:
//
//   - HMAC: HMAC-SHA256 over the key, keyed by a seed string (production)
//   - Table: fixed key/value table with a fallback (tests and scenarios)
//   - Func: adapter for plain functions
package luck
