package engine

import (
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
)

const (
	DefaultTileDegrees      = 1e-4
	DefaultVisionRadius     = 8
	DefaultSpawnProbability = 0.1
	DefaultStartLat         = 36.98949379578401
	DefaultStartLng         = -122.06277128548504

	MaxVisionRadius     = 64
	MinTileDegrees      = 1e-7
	MaxTileDegrees      = 1.0
	WebSocketBufferSize = 256
)

// Store keys written by Save
const (
	KeyPlayer    = "player"
	KeyCaches    = "caches"
	KeyCoins     = "coins"
	KeyPlayerLoc = "playerLoc"
	KeyHistory   = "history"
)

// Messages holds the player-facing text of a game config
type Messages struct {
	Welcome         string `json:"welcome" yaml:"welcome"`
	Moved           string `json:"moved" yaml:"moved"`
	Located         string `json:"located" yaml:"located"`
	Status          string `json:"status" yaml:"status"`
	EmptyCache      string `json:"empty_cache" yaml:"empty_cache"`
	NotMaterialized string `json:"not_materialized" yaml:"not_materialized"`
	EmptyInventory  string `json:"empty_inventory" yaml:"empty_inventory"`
	CantMove        string `json:"cant_move" yaml:"cant_move"`
	Reset           string `json:"reset" yaml:"reset"`
	StorageWarning  string `json:"storage_warning" yaml:"storage_warning"`
}

// GameConfig represents a game configuration loaded from JSON or YAML
type GameConfig struct {
	Name             string     `json:"name" yaml:"name"`
	Description      string     `json:"description" yaml:"description"`
	TileDegrees      float64    `json:"tile_degrees" yaml:"tile_degrees"`
	VisionRadius     int        `json:"vision_radius" yaml:"vision_radius"`
	SpawnProbability float64    `json:"spawn_probability" yaml:"spawn_probability"`
	Start            grid.Point `json:"start" yaml:"start"`
	Seed             string     `json:"seed" yaml:"seed"`
	Messages         Messages   `json:"messages" yaml:"messages"`
}

// CacheView is a materialized cache as shown to renderers
type CacheView struct {
	Cell     grid.Cell `json:"cell"`
	Count    int       `json:"count"`
	Bounds   grid.Rect `json:"bounds"`
	Distance int       `json:"distance"`
}

// CellInfo describes one grid cell and its cache, if any
type CellInfo struct {
	Cell         grid.Cell      `json:"cell"`
	Bounds       grid.Rect      `json:"bounds"`
	State        string         `json:"state"`
	Spawns       bool           `json:"spawns"`
	InitialValue int            `json:"initial_value"`
	InRange      bool           `json:"in_range"`
	Distance     int            `json:"distance"`
	Count        int            `json:"count"`
	Coins        []ledger.Token `json:"coins,omitempty"`
}

// GameState is a snapshot of a session for renderers and transports
type GameState struct {
	ConfigName     string         `json:"config_name"`
	Position       grid.Point     `json:"position"`
	PlayerCell     grid.Cell      `json:"player_cell"`
	TileDegrees    float64        `json:"tile_degrees"`
	VisionRadius   int            `json:"vision_radius"`
	Caches         []CacheView    `json:"caches"`
	Inventory      []ledger.Token `json:"inventory"`
	InventoryCount int            `json:"inventory_count"`
	LastToken      *ledger.Token  `json:"last_token,omitempty"`
	Message        string         `json:"message"`
	Trail          []grid.Point   `json:"trail"`
	TotalMoves     int            `json:"total_moves"`
	Instantiated   int            `json:"coins_instantiated"`
	ArchivedCaches int            `json:"archived_caches"`
	StorageWarning string         `json:"storage_warning,omitempty"`
}

// MoveHistoryEntry represents a single action in the game history
type MoveHistoryEntry struct {
	Action       string     `json:"action"`
	FromPosition grid.Point `json:"from_position"`
	ToPosition   grid.Point `json:"to_position"`
	Cell         grid.Cell  `json:"cell"`
	Token        string     `json:"token,omitempty"`
	Inventory    int        `json:"inventory"`
	Timestamp    int64      `json:"timestamp"`
	Success      bool       `json:"success"`
	MoveNumber   int        `json:"move_number"`
}
