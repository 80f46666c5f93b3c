package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wricardo/mcp-training/geocoins/game/service"
	"github.com/wricardo/mcp-training/geocoins/game/store"
)

const (
	sessionsRoot = "sessions"
	metaKey      = "meta"
)

// SessionPrefix is the store namespace holding one session's keys
func SessionPrefix(id string) string {
	return sessionsRoot + "/" + normalizeID(id)
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// StorePersistence implements SessionPersistence on top of a store.Store
type StorePersistence struct {
	store store.Store
}

// NewStorePersistence creates a persistence layer writing into st
func NewStorePersistence(st store.Store) *StorePersistence {
	return &StorePersistence{store: st}
}

// Save writes the session's metadata record and flushes its game progress
func (sp *StorePersistence) Save(ctx context.Context, session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	data := PersistedSessionData{
		ID:             session.ID,
		ConfigID:       session.ConfigID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
	}
	if session.Config != nil {
		data.ConfigName = session.Config.Name
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := sp.store.Set(ctx, sp.metaPath(session.ID), jsonData); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}

	if session.Engine != nil {
		if err := session.Engine.Save(ctx); err != nil {
			return fmt.Errorf("failed to save game progress: %w", err)
		}
	}
	return nil
}

// Load reads a session's metadata record
func (sp *StorePersistence) Load(ctx context.Context, id string) (*PersistedSessionData, error) {
	jsonData, err := sp.store.Get(ctx, sp.metaPath(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session metadata: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	if data.ID == "" {
		data.ID = normalizeID(id)
	}
	return &data, nil
}

// Delete removes every key stored for the session
func (sp *StorePersistence) Delete(ctx context.Context, id string) error {
	if !sp.Exists(ctx, id) {
		return ErrSessionNotFound
	}
	if err := store.DeletePrefix(ctx, sp.store, SessionPrefix(id)+"/"); err != nil {
		return fmt.Errorf("failed to remove session data: %w", err)
	}
	return nil
}

// ListAll returns the IDs of every session with a metadata record
func (sp *StorePersistence) ListAll(ctx context.Context) ([]string, error) {
	keys, err := sp.store.Keys(ctx, sessionsRoot+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessionIDs []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, sessionsRoot+"/")
		id, leaf, ok := strings.Cut(rest, "/")
		if ok && leaf == metaKey {
			sessionIDs = append(sessionIDs, id)
		}
	}
	return sessionIDs, nil
}

// Exists checks if a session has a metadata record
func (sp *StorePersistence) Exists(ctx context.Context, id string) bool {
	_, err := sp.store.Get(ctx, sp.metaPath(id))
	return err == nil
}

func (sp *StorePersistence) metaPath(id string) string {
	return SessionPrefix(id) + "/" + metaKey
}
