// Package engine runs a single geocoin hunt: the player's position, the
// caches around it and the coins the player carries.
//
// The engine package implements:
//   - Tile-by-tile movement and sensor (geolocation) positioning
//   - Materializing caches that come into view and archiving those that leave
//   - Grabbing and donating coins against visible caches
//   - Saving progress to a store.Store after every action
//   - Configuration parsing and validation (JSON or YAML)
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState is the snapshot handed to renderers
// and transports, while GameConfig defines tile size, vision radius, spawn
// probability, start location and player-facing messages.
//
// Usage:
//
//	config, err := engine.LoadGameConfig("configs/classic.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(config, store.NewMemory())
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := gameEngine.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine.Move(ctx, "north")
//	state := gameEngine.GetState()
//	if len(state.Caches) > 0 {
//		gameEngine.Grab(ctx, state.Caches[0].Cell)
//	}
//
// Game Rules:
//
// The world is cut into square tiles. Every tile rolls once, deterministically,
// to decide whether it holds a cache and how many coins the cache starts with.
// The player sees every tile within the vision radius (a square of side
// 2r+1 around the player's tile), can take coins from visible caches and
// leave carried coins in them. Coins are never created or lost: they only
// move between caches and the player's pocket.
//
// Storage:
//
// After every successful move, grab or donate the engine writes the keys
// player, caches, coins and playerLoc (plus history). When the store fails
// the game carries on in memory and GameState.StorageWarning tells the
// player that progress may not persist.
package engine
