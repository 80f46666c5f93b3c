package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
)

// DefaultGameConfig returns the classic settings: 1e-4 degree tiles, vision
// radius 8, one cache in ten cells, starting at the classroom
func DefaultGameConfig() *GameConfig {
	config := &GameConfig{
		Name:             "Classic",
		Description:      "Hunt coins around the classroom with the original tuning",
		TileDegrees:      DefaultTileDegrees,
		VisionRadius:     DefaultVisionRadius,
		SpawnProbability: DefaultSpawnProbability,
		Start:            grid.Point{Lat: DefaultStartLat, Lng: DefaultStartLng},
	}
	config.Messages = DefaultMessages()
	return config
}

// DefaultMessages returns the built-in player-facing text
func DefaultMessages() Messages {
	return Messages{
		Welcome:         "Nothing yet...",
		Moved:           "Moved %s",
		Located:         "Position updated from sensor",
		Status:          "%d coins collected. Last coin's coordinates: (%.4f, %.4f); Marked as: %d",
		EmptyCache:      "This cache is empty",
		NotMaterialized: "No cache within reach there",
		EmptyInventory:  "You have no coins to leave",
		CantMove:        "Can't move %s",
		Reset:           "Time killed. Starting over.",
		StorageWarning:  "Progress may not be saved",
	}
}

// ApplyDefaults fills zero-valued fields with the classic settings
func ApplyDefaults(config *GameConfig) {
	def := DefaultGameConfig()
	if config.TileDegrees == 0 {
		config.TileDegrees = def.TileDegrees
	}
	if config.VisionRadius == 0 {
		config.VisionRadius = def.VisionRadius
	}
	if config.SpawnProbability == 0 {
		config.SpawnProbability = def.SpawnProbability
	}
	if config.Start == (grid.Point{}) {
		config.Start = def.Start
	}
	m, d := &config.Messages, def.Messages
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&m.Welcome, d.Welcome)
	fill(&m.Moved, d.Moved)
	fill(&m.Located, d.Located)
	fill(&m.Status, d.Status)
	fill(&m.EmptyCache, d.EmptyCache)
	fill(&m.NotMaterialized, d.NotMaterialized)
	fill(&m.EmptyInventory, d.EmptyInventory)
	fill(&m.CantMove, d.CantMove)
	fill(&m.Reset, d.Reset)
	fill(&m.StorageWarning, d.StorageWarning)
}

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	if math.IsNaN(config.TileDegrees) || config.TileDegrees < MinTileDegrees || config.TileDegrees > MaxTileDegrees {
		return fmt.Errorf("config validation: tile_degrees must be between %g and %g, got %g", MinTileDegrees, MaxTileDegrees, config.TileDegrees)
	}
	if config.VisionRadius < 0 || config.VisionRadius > MaxVisionRadius {
		return fmt.Errorf("config validation: vision_radius must be between 0 and %d, got %d", MaxVisionRadius, config.VisionRadius)
	}
	if math.IsNaN(config.SpawnProbability) || config.SpawnProbability < 0 || config.SpawnProbability > 1 {
		return fmt.Errorf("config validation: spawn_probability must be between 0 and 1, got %g", config.SpawnProbability)
	}
	if config.Start.Lat < -90 || config.Start.Lat > 90 {
		return fmt.Errorf("config validation: start.lat must be between -90 and 90, got %g", config.Start.Lat)
	}
	if config.Start.Lng < -180 || config.Start.Lng > 180 {
		return fmt.Errorf("config validation: start.lng must be between -180 and 180, got %g", config.Start.Lng)
	}

	if config.Messages.Welcome == "" {
		return fmt.Errorf("config validation: messages.welcome is required")
	}
	if n := countVerbs(config.Messages.Status); n != 4 {
		return fmt.Errorf("config validation: messages.status needs 4 verbs (count, lat, lng, serial), got %d", n)
	}
	if n := countVerbs(config.Messages.Moved); n > 1 {
		return fmt.Errorf("config validation: messages.moved takes at most one verb (direction), got %d", n)
	}
	if n := countVerbs(config.Messages.CantMove); n > 1 {
		return fmt.Errorf("config validation: messages.cant_move takes at most one verb (direction), got %d", n)
	}

	return nil
}

// countVerbs counts fmt verbs in s, ignoring %%
func countVerbs(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '%' {
			i++
			continue
		}
		n++
	}
	return n
}

// ParseGameConfig decodes a config document. Files ending in .yaml or .yml
// are read as YAML, anything else as JSON. Defaults are applied before
// validation.
func ParseGameConfig(name string, data []byte) (*GameConfig, error) {
	var config GameConfig
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
	}

	ApplyDefaults(&config)
	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadGameConfig loads a game configuration from a JSON or YAML file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return ParseGameConfig(configPath, data)
}
