package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
)

var (
	// ErrConfigNotFound is returned by ConfigManager implementations for unknown config IDs
	ErrConfigNotFound = errors.New("configuration not found")
	// ErrSessionNotFound is returned by SessionManager implementations for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// getConfigID maps a config's display name back to its ID
func (s *gameServiceImpl) getConfigID(configName string) string {
	if infos, err := s.configs.ListConfigs(); err == nil {
		for _, info := range infos {
			if info.Name == configName {
				return info.ConfigID
			}
		}
	}
	if configName == "" {
		return DefaultConfigID
	}
	return configName
}

func (s *gameServiceImpl) info(sess *Session) *SessionInfo {
	configID := sess.ConfigID
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState(),
		GameConfig:     sess.Config,
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config := s.configs.GetDefault()
	if configName != "" {
		var err error
		if config, err = s.configs.LoadConfig(configName); err != nil {
			return nil, s.configLoadError(configName, err)
		}
	}

	configID := configName
	if configID == "" {
		configID = s.getConfigID(config.Name)
	}

	// empty ID: the manager picks one
	sess, err := s.sessions.Create(ctx, "", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.info(sess), nil
}

// configLoadError names the available configs when configName is unknown
func (s *gameServiceImpl) configLoadError(configName string, err error) error {
	if !errors.Is(err, ErrConfigNotFound) {
		return fmt.Errorf("failed to load config %s: %w", configName, err)
	}
	infos, listErr := s.configs.ListConfigs()
	if listErr != nil || len(infos) == 0 {
		return fmt.Errorf("config '%s' not found, see /api/configs: %w", configName, err)
	}
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ConfigID
	}
	return fmt.Errorf("config '%s' not found (available: %s): %w", configName, strings.Join(ids, ", "), err)
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return s.info(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Delete(ctx, sessionID)
}

func (s *gameServiceImpl) session(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// Move executes a single move for a session
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	events := []GameEvent{}
	if reset {
		sess.Engine.Reset(ctx)
		events = append(events, NewEvent("reset", "Game reset to initial state"))
	}

	before := sess.Engine.GetState()
	success := sess.Engine.Move(ctx, direction)
	state := sess.Engine.GetState()

	result := &MoveResult{
		Success:   success,
		GameState: state,
		Message:   state.Message,
		Events:    events,
	}
	step := stepInfo(1, direction, before, state, success)
	result.Step = &step
	if success {
		ev := NewEvent("move", fmt.Sprintf("Moved %s to %s", direction, state.PlayerCell))
		cell := state.PlayerCell
		ev.Cell = &cell
		result.Events = append(result.Events, ev)
		result.Events = append(result.Events, viewEvents(before, state)...)
	}
	result.Events = append(result.Events, storageEvents(state)...)

	s.persist(ctx, sessionID, "move")
	return result, nil
}

// BulkMove executes multiple moves in sequence, stopping at the first bad direction
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         make([]GameEvent, 0),
		Success:        true,
	}
	if reset {
		sess.Engine.Reset(ctx)
		result.Events = append(result.Events, NewEvent("reset", "Game reset to initial state"))
	}
	result.StartCell = sess.Engine.GetState().PlayerCell

	if len(moves) > MaxBulkMoves {
		result.Truncated = true
		result.Limit = MaxBulkMoves
		moves = moves[:MaxBulkMoves]
	}

	for i, move := range moves {
		before := sess.Engine.GetState()
		success := sess.Engine.Move(ctx, move)
		after := sess.Engine.GetState()
		if !success {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("move %d rejected: %s", i+1, move)
			result.StoppedOnMove = i + 1
			break
		}
		result.MovesExecuted++
		result.Steps = append(result.Steps, stepInfo(i+1, move, before, after, true))
		result.Events = append(result.Events, viewEvents(before, after)...)
	}

	result.GameState = sess.Engine.GetState()
	result.EndCell = result.GameState.PlayerCell
	result.Message = result.GameState.Message
	result.Events = append(result.Events, storageEvents(result.GameState)...)

	s.persist(ctx, sessionID, "bulk moves")
	return result, nil
}

// Locate moves the player to a sensed position
func (s *gameServiceImpl) Locate(ctx context.Context, sessionID string, p grid.Point) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	before := sess.Engine.GetState()
	success := sess.Engine.SetPosition(ctx, p)
	state := sess.Engine.GetState()

	result := &MoveResult{
		Success:   success,
		GameState: state,
		Message:   state.Message,
		Events:    []GameEvent{},
	}
	step := stepInfo(1, "locate", before, state, success)
	result.Step = &step
	if success {
		ev := NewEvent("locate", fmt.Sprintf("Located at (%.6f, %.6f)", p.Lat, p.Lng))
		cell := state.PlayerCell
		ev.Cell = &cell
		result.Events = append(result.Events, ev)
		result.Events = append(result.Events, viewEvents(before, state)...)
	}
	result.Events = append(result.Events, storageEvents(state)...)

	s.persist(ctx, sessionID, "locate")
	return result, nil
}

// Reset resets a game session to initial state
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := sess.Engine.Reset(ctx)
	s.persist(ctx, sessionID, "reset")
	return state, nil
}

// Grab takes a coin from the cache at cell
func (s *gameServiceImpl) Grab(ctx context.Context, sessionID string, cell grid.Cell) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tok, err := sess.Engine.Grab(ctx, cell)
	if err != nil {
		return nil, fmt.Errorf("grab at %s: %w", cell, err)
	}
	s.persist(ctx, sessionID, "grab")
	return actionResult("grab", cell, tok, sess.Engine.GetState()), nil
}

// Donate leaves a coin in the cache at cell: the given token, or the oldest held one
func (s *gameServiceImpl) Donate(ctx context.Context, sessionID string, cell grid.Cell, token *ledger.TokenID) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var tok ledger.Token
	if token != nil {
		tok, err = sess.Engine.DonateToken(ctx, cell, *token)
	} else {
		tok, err = sess.Engine.Donate(ctx, cell)
	}
	if err != nil {
		return nil, fmt.Errorf("donate at %s: %w", cell, err)
	}
	s.persist(ctx, sessionID, "donate")
	return actionResult("donate", cell, tok, sess.Engine.GetState()), nil
}

// DescribeCell reports one cell of a session's world
func (s *gameServiceImpl) DescribeCell(ctx context.Context, sessionID string, cell grid.Cell) (*engine.CellInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	info := sess.Engine.DescribeCell(cell)
	return &info, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetState(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	return paginate(sess.Engine.GetMoveHistory(), opts), nil
}

// paginate slices history into the requested page. Page defaults to 1,
// limit to 20 (capped at 100) and order to newest first.
func paginate(history []engine.MoveHistoryEntry, opts HistoryOptions) *HistoryResponse {
	opts.Page = max(opts.Page, 1)
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	opts.Limit = min(opts.Limit, 100)

	total := len(history)
	pages := max((total+opts.Limit-1)/opts.Limit, 1)
	from := min((opts.Page-1)*opts.Limit, total)
	to := min(from+opts.Limit, total)

	moves := make([]engine.MoveHistoryEntry, 0, to-from)
	if opts.Order == "asc" {
		moves = append(moves, history[from:to]...)
	} else {
		for i := total - 1 - from; i >= total-to; i-- {
			moves = append(moves, history[i])
		}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  pages,
		HasNext:     opts.Page < pages,
		HasPrevious: opts.Page > 1,
	}
}

// ListConfigs returns available game configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific game configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a game configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

func (s *gameServiceImpl) persist(ctx context.Context, sessionID, after string) {
	if err := s.sessions.Save(ctx, sessionID); err != nil {
		log.Printf("Warning: Failed to persist session %s after %s: %v", sessionID, after, err)
	}
}

func stepInfo(idx int, dir string, before, after *engine.GameState, success bool) StepInfo {
	appeared, archived := diffCaches(before, after)
	return StepInfo{
		Idx:          idx,
		Dir:          dir,
		From:         before.PlayerCell,
		To:           after.PlayerCell,
		CachesInView: len(after.Caches),
		Appeared:     len(appeared),
		Archived:     len(archived),
		Success:      success,
	}
}

// diffCaches lists caches that came into view and caches that left it
func diffCaches(before, after *engine.GameState) (appeared, archived []engine.CacheView) {
	was := make(map[grid.Cell]bool, len(before.Caches))
	for _, c := range before.Caches {
		was[c.Cell] = true
	}
	is := make(map[grid.Cell]bool, len(after.Caches))
	for _, c := range after.Caches {
		is[c.Cell] = true
		if !was[c.Cell] {
			appeared = append(appeared, c)
		}
	}
	for _, c := range before.Caches {
		if !is[c.Cell] {
			archived = append(archived, c)
		}
	}
	return appeared, archived
}

func viewEvents(before, after *engine.GameState) []GameEvent {
	appeared, archived := diffCaches(before, after)
	events := make([]GameEvent, 0, len(appeared)+len(archived))
	for _, c := range appeared {
		ev := NewEvent("cache_materialized", fmt.Sprintf("Cache at %s holds %d coins", c.Cell, c.Count))
		cell := c.Cell
		ev.Cell = &cell
		events = append(events, ev)
	}
	for _, c := range archived {
		ev := NewEvent("cache_archived", fmt.Sprintf("Cache at %s left view with %d coins", c.Cell, c.Count))
		cell := c.Cell
		ev.Cell = &cell
		events = append(events, ev)
	}
	return events
}

func storageEvents(state *engine.GameState) []GameEvent {
	if state.StorageWarning == "" {
		return nil
	}
	return []GameEvent{NewEvent("storage_warning", state.StorageWarning)}
}

func actionResult(action string, cell grid.Cell, tok ledger.Token, state *engine.GameState) *ActionResult {
	result := &ActionResult{
		Success:   true,
		Token:     tok,
		GameState: state,
		Message:   state.Message,
	}
	for i := range state.Caches {
		if state.Caches[i].Cell == cell {
			c := state.Caches[i]
			result.Cache = &c
		}
	}
	ev := NewEvent(action, state.Message)
	ev.Cell = &cell
	ev.Token = tok.ID.String()
	result.Events = append(result.Events, ev)
	result.Events = append(result.Events, storageEvents(state)...)
	return result
}
