package session

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/geocoins/game/service"
)

// SessionPersistence defines the interface for persisting session metadata.
// Game progress itself lives in the session's store namespace and is written
// by the engine.
type SessionPersistence interface {
	// Save persists a session's metadata
	Save(ctx context.Context, session *service.Session) error

	// Load retrieves session metadata by ID
	Load(ctx context.Context, id string) (*PersistedSessionData, error)

	// Delete removes a session's metadata and game progress
	Delete(ctx context.Context, id string) error

	// ListAll returns all persisted session IDs
	ListAll(ctx context.Context) ([]string, error)

	// Exists checks if a session exists in storage
	Exists(ctx context.Context, id string) bool
}

// PersistedSessionData represents the JSON structure stored under sessions/<id>/meta
type PersistedSessionData struct {
	ID             string    `json:"id"`
	ConfigID       string    `json:"config_id"`
	ConfigName     string    `json:"config_name"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}
