package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/service"
	"github.com/wricardo/mcp-training/geocoins/game/store"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
	ErrNoFreeSessionID      = errors.New("no free session ID")
)

const maxIDAttempts = 1 << 12

// Manager owns the live sessions and the engines behind them
type Manager struct {
	sessions    map[string]*service.Session
	base        store.Store
	persistence SessionPersistence
	configs     service.ConfigManager
	engineOpts  []engine.Option
	randomID    func() string
	mu          sync.RWMutex
}

// NewManager creates a new session manager whose engines keep their
// progress in namespaces of base. A nil base uses an in-memory store.
func NewManager(base store.Store, opts ...engine.Option) *Manager {
	if base == nil {
		base = store.NewMemory()
	}
	return &Manager{
		sessions:   make(map[string]*service.Session),
		base:       base,
		engineOpts: opts,
		randomID:   randomHexID,
	}
}

// NewManagerWithPersistence creates a new session manager that also records
// session metadata, so sessions survive a restart. configs resolves the
// config ID of a persisted session when it is loaded back.
func NewManagerWithPersistence(base store.Store, persistence SessionPersistence, configs service.ConfigManager, opts ...engine.Option) *Manager {
	m := NewManager(base, opts...)
	m.persistence = persistence
	m.configs = configs
	return m
}

// Create creates a new session with the given ID and configuration and
// restores any progress already stored under that ID
func (m *Manager) Create(ctx context.Context, id, configID string, config *engine.GameConfig) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		var err error
		if id, err = m.generateSessionID(ctx); err != nil {
			return nil, err
		}
	}
	id = normalizeID(id)
	if !validID(id) {
		return nil, ErrInvalidSessionID
	}

	if _, exists := m.sessions[id]; exists {
		return nil, ErrSessionAlreadyExists
	}

	eng, err := m.newEngine(ctx, id, config)
	if err != nil {
		return nil, err
	}

	session := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		ConfigID:       configID,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
	m.sessions[id] = session

	if m.persistence != nil {
		if err := m.persistence.Save(ctx, session); err != nil {
			log.Printf("Warning: session %s created but not persisted: %v", id, err)
		}
	}

	return session, nil
}

func (m *Manager) newEngine(ctx context.Context, id string, config *engine.GameConfig) (*engine.GameEngine, error) {
	eng, err := engine.NewEngine(config, store.Namespace(m.base, SessionPrefix(id)), m.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return eng, nil
}

// Get retrieves a session by ID (case-insensitive), loading it from
// persistence when it is not in memory
func (m *Manager) Get(ctx context.Context, id string) (*service.Session, error) {
	id = normalizeID(id)

	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()
	if exists {
		return session, nil
	}

	if m.persistence == nil || !m.persistence.Exists(ctx, id) {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// another caller may have loaded it meanwhile
	if session, exists := m.sessions[id]; exists {
		return session, nil
	}
	session, err := m.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}
	m.sessions[id] = session
	return session, nil
}

// load rebuilds a persisted session; callers hold the write lock
func (m *Manager) load(ctx context.Context, id string) (*service.Session, error) {
	data, err := m.persistence.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.configs == nil {
		return nil, fmt.Errorf("no config manager to resolve config '%s'", data.ConfigID)
	}

	var config *engine.GameConfig
	if data.ConfigID == "" || data.ConfigID == service.DefaultConfigID {
		config = m.configs.GetDefault()
	} else if config, err = m.configs.LoadConfig(data.ConfigID); err != nil {
		return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigID, err)
	}

	eng, err := m.newEngine(ctx, id, config)
	if err != nil {
		return nil, err
	}

	return &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		ConfigID:       data.ConfigID,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// GetOrCreate returns the session named id, creating it with config when
// neither memory nor persistence knows it
func (m *Manager) GetOrCreate(ctx context.Context, id, configID string, config *engine.GameConfig) (*service.Session, error) {
	session, err := m.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(ctx, id, configID, config)
	}
	return session, err
}

// List returns the sessions currently held in memory
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := make([]*service.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	return live
}

// Delete removes a session along with its stored progress
func (m *Manager) Delete(ctx context.Context, id string) error {
	id = normalizeID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, inMemory := m.sessions[id]
	delete(m.sessions, id)

	persisted := m.persistence != nil && m.persistence.Exists(ctx, id)
	if !inMemory && !persisted {
		return ErrSessionNotFound
	}

	if persisted {
		if err := m.persistence.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}
	if err := store.DeletePrefix(ctx, m.base, SessionPrefix(id)+"/"); err != nil {
		return fmt.Errorf("failed to delete session progress: %w", err)
	}
	return nil
}

// DeleteFromMemory evicts a session but leaves its stored records alone
func (m *Manager) DeleteFromMemory(id string) error {
	id = normalizeID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// UpdateLastAccessed stamps the session as used now
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[normalizeID(id)]
	if !exists {
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	return nil
}

// Save writes one session's metadata; a no-op without persistence
func (m *Manager) Save(ctx context.Context, id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	session, exists := m.sessions[normalizeID(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	return m.persistence.Save(ctx, session)
}

// CleanupExpiredSessions evicts sessions that haven't been accessed in the
// given duration. Persisted sessions can still be loaded back later.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.sessions)
	cutoff := time.Now().Add(-maxAge)
	for id, s := range m.sessions {
		if s.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
	return before - len(m.sessions)
}

// Count reports how many sessions are in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// validID reports whether id can name a store namespace
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, "/\\")
}

// generateSessionID picks a four hex digit ID that no live session uses and
// that has nothing stored under it. Callers hold the write lock.
func (m *Manager) generateSessionID(ctx context.Context) (string, error) {
	for range maxIDAttempts {
		id := m.randomID()
		if _, live := m.sessions[id]; live {
			continue
		}
		if m.persistence != nil && m.persistence.Exists(ctx, id) {
			continue
		}
		keys, err := m.base.Keys(ctx, SessionPrefix(id)+"/")
		if err != nil {
			return "", fmt.Errorf("failed to check session ID %s: %w", id, err)
		}
		if len(keys) == 0 {
			return id, nil
		}
	}
	return "", ErrNoFreeSessionID
}

func randomHexID() string {
	var b [2]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// LoadPersistedSessions brings every stored session back into memory.
// Sessions that fail to load are logged and skipped.
func (m *Manager) LoadPersistedSessions(ctx context.Context) error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restored := 0
	for _, id := range ids {
		if _, live := m.sessions[id]; live {
			continue
		}
		s, err := m.load(ctx, id)
		if err != nil {
			log.Printf("Warning: skipping persisted session %s: %v", id, err)
			continue
		}
		m.sessions[id] = s
		restored++
	}

	if restored > 0 {
		log.Printf("Restored %d sessions from storage", restored)
	}
	return nil
}

// SaveAllSessions writes the metadata of every live session, continuing
// past failures and reporting them together
func (m *Manager) SaveAllSessions(ctx context.Context) error {
	if m.persistence == nil {
		return nil
	}

	var errs []error
	for _, s := range m.List() {
		if err := m.persistence.Save(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to save %d sessions: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
