// Package session provides session management for the geocoin hunt.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Session lifecycle management
//   - Store-backed persistence of session metadata
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Each session gets its own game engine whose progress (player, caches, coins,
// playerLoc) is kept in the namespace sessions/<id>/ of a shared store.Store,
// so one memory, file or SQLite backend serves every session.
//
// StorePersistence records a small metadata document under sessions/<id>/meta
// (config ID, creation and access times). With it, sessions survive a server
// restart: LoadPersistedSessions or a lazy Get rebuilds the engine from its
// config and restores its progress from the store.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs generated from crypto/rand. IDs are
// case-insensitive and stored lower-cased. Custom IDs may not contain path
// separators since they name a store namespace.
//
// Usage:
//
//	base, _ := store.Open("sqlite", "data/geocoins.db")
//	configs, _ := config.NewManager("configs")
//	manager := session.NewManagerWithPersistence(base, session.NewStorePersistence(base), configs)
//
//	sess, err := manager.Create(ctx, "", "classic", configs.GetDefault())
//	if err != nil {
//		log.Fatal(err)
//	}
//	sess, err = manager.Get(ctx, sess.ID)
//
// Cleanup:
//
// CleanupExpiredSessions evicts idle sessions from memory. Their stored
// progress is kept and reloaded on next access. Delete removes both.
package session
