// Package config provides configuration management for geocoin hunts.
//
// The config package handles:
//   - Loading game configurations from JSON and YAML files
//   - Configuration validation through engine.ParseGameConfig
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Game configurations live in the configs directory as .json, .yaml or .yml
// files. The file name without extension is the config ID used when creating
// sessions. Each configuration defines:
//   - tile_degrees: the side of a grid tile in degrees (default 1e-4)
//   - vision_radius: how many tiles around the player are simulated (default 8)
//   - spawn_probability: the chance a tile holds a cache (default 0.1)
//   - start: the {lat, lng} the player starts at and returns to on reset
//   - seed: the luck seed; equal seeds produce equal worlds
//   - messages: player-facing text, missing entries fall back to defaults
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameConfig, err := manager.LoadConfig("campus")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
//
// The default is classic when present, otherwise the first valid config in
// the directory, otherwise the built-in engine.DefaultGameConfig.
package config
