// Package service provides the business logic layer for the geocoin hunt.
//
// The service package implements:
//   - Multi-session game management
//   - Configuration lookup by config ID
//   - Movement, geolocation and cache actions (grab and donate)
//   - Move history pagination
//
// Core Interfaces:
//
// GameService is the facade every transport (REST, WebSocket, MCP) talks to.
// SessionManager handles session creation, retrieval, persistence and lifecycle.
// ConfigManager loads and lists game configurations.
//
// Architecture:
//
// The service layer sits between the transports and the game engine. Each
// session owns its own engine, and therefore its own cell index, cache ledger
// and inventory. Ledger failures (empty cache, cache out of range, empty
// inventory) are returned wrapped, so callers can still branch on them with
// errors.Is.
//
// Usage:
//
//	sessionMgr := session.NewManager(store.NewMemory())
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := gameService.Move(ctx, info.ID, "north", false)
//	for _, ev := range res.Events {
//		fmt.Println(ev.Type, ev.Message)
//	}
//
// Events:
//
// Mutating calls return GameEvents describing what changed: the move itself,
// caches that came into view (cache_materialized), caches that left it
// (cache_archived), coins grabbed or donated, and storage warnings when the
// durable store rejected a write.
package service
