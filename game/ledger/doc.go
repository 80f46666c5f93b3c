// Package ledger tracks caches, the coins they hold, and the player's
// inventory.
//
// A cache lives on one grid cell and moves through three states:
//
//	Unseen -> Materialized -> Archived -> Materialized -> ...
//
// Materialized caches are actively simulated. When the player walks away a
// cache is archived: its (row, col, count) is written to a memento and the
// live record is dropped. Coins keep their location while their cache is
// archived, so a later materialize finds them exactly where they were left.
//
// Coins:
//
// Coins are minted once, the first time their origin cell materializes,
// with serials 0..n-1 where n = floor(luck("row,col,initialValue") * 100).
// After that they only move, between cache cells and the inventory. The
// ledger never creates or destroys a coin once minted; Audit verifies this.
//
// Storage boundary:
//
// The ledger never serializes itself to restore its own state. Mementos,
// coins and inventory cross the storage boundary through the codec in
// codec.go and come back through Restore.
//
// Concurrency:
//
// All mutations go through a single mutex, so a Ledger may be shared between
// goroutines, but every operation is immediate and never blocks on I/O.
package ledger
