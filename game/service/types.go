package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// MoveResult contains the result of a move or locate operation
type MoveResult struct {
	Success   bool              `json:"success"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	Events    []GameEvent       `json:"events,omitempty"`
	Step      *StepInfo         `json:"step,omitempty"`
}

// BulkMoveResult contains the result of multiple moves
type BulkMoveResult struct {
	MovesExecuted  int               `json:"moves_executed"`
	RequestedMoves int               `json:"requested_moves"`
	Success        bool              `json:"success"`
	GameState      *engine.GameState `json:"game_state"`
	Events         []GameEvent       `json:"events"`
	StoppedReason  string            `json:"stopped_reason,omitempty"`
	StoppedOnMove  int               `json:"stopped_on_move,omitempty"` // 1-based index of the move that caused stop
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`

	StartCell grid.Cell  `json:"start_cell"`
	EndCell   grid.Cell  `json:"end_cell"`
	Steps     []StepInfo `json:"steps,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// StepInfo is a compact record for each executed move
type StepInfo struct {
	Idx          int       `json:"idx"`
	Dir          string    `json:"dir"`
	From         grid.Cell `json:"from"`
	To           grid.Cell `json:"to"`
	CachesInView int       `json:"caches_in_view"`
	Appeared     int       `json:"appeared,omitempty"`
	Archived     int       `json:"archived,omitempty"`
	Success      bool      `json:"success"`
}

// ActionResult contains the result of a grab or donate
type ActionResult struct {
	Success   bool              `json:"success"`
	Token     ledger.Token      `json:"token"`
	Cache     *engine.CacheView `json:"cache,omitempty"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	Events    []GameEvent       `json:"events,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"` // "move", "locate", "cache_materialized", "cache_archived", "grab", "donate", "reset", "storage_warning"
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
	Cell      *grid.Cell `json:"cell,omitempty"`
	Token     string     `json:"token,omitempty"`
}

// NewEvent stamps a GameEvent with a fresh ID and the current time
func NewEvent(eventType, message string) GameEvent {
	return GameEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename         string     `json:"filename"`
	ConfigID         string     `json:"config_id"` // The identifier to use for session creation
	Name             string     `json:"name"`      // Display name
	Description      string     `json:"description"`
	TileDegrees      float64    `json:"tile_degrees"`
	VisionRadius     int        `json:"vision_radius"`
	SpawnProbability float64    `json:"spawn_probability"`
	Start            grid.Point `json:"start"`
}
