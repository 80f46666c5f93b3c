package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
	"github.com/wricardo/mcp-training/geocoins/game/luck"
	"github.com/wricardo/mcp-training/geocoins/game/store"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Lifecycle
	Start(ctx context.Context) error
	Reset(ctx context.Context) *GameState
	Save(ctx context.Context) error

	// State
	GetState() *GameState
	GetConfig() *GameConfig
	GetPlayerPosition() grid.Point

	// Movement
	Move(ctx context.Context, direction string) bool
	SetPosition(ctx context.Context, p grid.Point) bool

	// Caches
	Grab(ctx context.Context, cell grid.Cell) (ledger.Token, error)
	Donate(ctx context.Context, cell grid.Cell) (ledger.Token, error)
	DonateToken(ctx context.Context, cell grid.Cell, id ledger.TokenID) (ledger.Token, error)
	DescribeCell(cell grid.Cell) CellInfo
	Audit() error

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry
}

// Option customizes a GameEngine
type Option func(*GameEngine)

// WithOracle replaces the seeded HMAC oracle
func WithOracle(o luck.Oracle) Option {
	return func(e *GameEngine) { e.oracle = o }
}

// WithIndex shares a cell registry between engines
func WithIndex(ix *grid.Index) Option {
	return func(e *GameEngine) { e.index = ix }
}

// GameEngine implements the Engine interface
type GameEngine struct {
	config *GameConfig
	oracle luck.Oracle
	index  *grid.Index
	ledger *ledger.Ledger
	inv    *ledger.Inventory
	store  store.Store

	pos        grid.Point
	trail      []grid.Point
	history    []MoveHistoryEntry
	totalMoves int
	message    string
	warning    string

	mu sync.Mutex
}

// NewEngine creates a game engine saving into st. A nil store keeps the
// game in memory only.
func NewEngine(config *GameConfig, st store.Store, opts ...Option) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}
	if st == nil {
		st = store.NewMemory()
	}

	e := &GameEngine{
		config: config,
		store:  st,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.oracle == nil {
		e.oracle = luck.NewHMAC(config.Seed)
	}
	if e.index == nil || e.index.TileSize() != config.TileDegrees {
		e.index = grid.NewIndex(config.TileDegrees)
	}
	e.resetLocked()
	return e, nil
}

// NewEngineWithDefaults creates an in-memory engine with the classic config
func NewEngineWithDefaults() *GameEngine {
	e, err := NewEngine(DefaultGameConfig(), nil)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *GameEngine) resetLocked() {
	e.ledger = ledger.New(e.oracle)
	e.inv = ledger.NewInventory()
	e.pos = e.config.Start
	e.trail = []grid.Point{e.pos}
	e.message = e.config.Messages.Welcome
	e.refreshLocked()
}

// Start restores the session from the store and materializes the caches
// around the player
func (e *GameEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked(ctx)
}

// Reset clears stored progress and returns the player to the start. The
// cumulative move history survives.
func (e *GameEngine) Reset(ctx context.Context) *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.pos
	for _, key := range []string{KeyPlayer, KeyCaches, KeyCoins, KeyPlayerLoc} {
		if err := e.store.Delete(ctx, key); err != nil {
			e.storageFailed(err)
		}
	}
	e.resetLocked()
	e.message = e.config.Messages.Reset
	e.record("reset", from, *e.index.CellFor(e.pos), "", true)
	e.saveHistory(ctx)
	return e.stateLocked()
}

// GetState returns a snapshot of the session
func (e *GameEngine) GetState() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *GameEngine) stateLocked() *GameState {
	player := *e.index.CellFor(e.pos)
	live := e.ledger.Materialized()
	caches := make([]CacheView, len(live))
	for i, c := range live {
		caches[i] = CacheView{
			Cell:     c.Cell,
			Count:    c.Count,
			Bounds:   e.index.BoundsOf(c.Cell),
			Distance: grid.ChebyshevDistance(player, c.Cell),
		}
	}

	archived := 0
	for _, m := range e.ledger.Mementos() {
		if e.ledger.State(m.Cell()) == ledger.Archived {
			archived++
		}
	}

	state := &GameState{
		ConfigName:     e.config.Name,
		Position:       e.pos,
		PlayerCell:     player,
		TileDegrees:    e.config.TileDegrees,
		VisionRadius:   e.config.VisionRadius,
		Caches:         caches,
		Inventory:      e.inv.Tokens(),
		InventoryCount: e.inv.Len(),
		Message:        e.message,
		Trail:          append([]grid.Point(nil), e.trail...),
		TotalMoves:     e.totalMoves,
		Instantiated:   e.ledger.Instantiated(),
		ArchivedCaches: archived,
		StorageWarning: e.warning,
	}
	if last, ok := e.inv.Last(); ok {
		state.LastToken = &last
	}
	return state
}

// GetConfig returns the game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// GetPlayerPosition returns the current player position
func (e *GameEngine) GetPlayerPosition() grid.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// Grab takes the next coin from the cache at cell
func (e *GameEngine) Grab(ctx context.Context, cell grid.Cell) (ledger.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tok, err := e.ledger.Grab(cell, e.inv)
	if err != nil {
		e.message = e.failureMessage(err)
		e.record("grab", e.pos, cell, "", false)
		e.saveHistory(ctx)
		return ledger.Token{}, err
	}
	e.message = e.statusText(tok)
	e.record("grab", e.pos, cell, tok.ID.String(), true)
	e.saveLocked(ctx)
	return tok, nil
}

// Donate leaves the oldest held coin in the cache at cell
func (e *GameEngine) Donate(ctx context.Context, cell grid.Cell) (ledger.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	first, _ := e.inv.First()
	return e.donateLocked(ctx, cell, first.ID)
}

// DonateToken leaves a specific held coin in the cache at cell
func (e *GameEngine) DonateToken(ctx context.Context, cell grid.Cell, id ledger.TokenID) (ledger.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.donateLocked(ctx, cell, id)
}

func (e *GameEngine) donateLocked(ctx context.Context, cell grid.Cell, id ledger.TokenID) (ledger.Token, error) {
	tok, err := e.ledger.Donate(cell, e.inv, id)
	if err != nil {
		e.message = e.failureMessage(err)
		e.record("donate", e.pos, cell, "", false)
		e.saveHistory(ctx)
		return ledger.Token{}, err
	}
	e.message = e.statusText(tok)
	e.record("donate", e.pos, cell, tok.ID.String(), true)
	e.saveLocked(ctx)
	return tok, nil
}

// DescribeCell reports the state of the cache at cell without changing it
func (e *GameEngine) DescribeCell(cell grid.Cell) CellInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	canonical := *e.index.Canonical(cell.Row, cell.Col)
	player := *e.index.CellFor(e.pos)
	info := CellInfo{
		Cell:         canonical,
		Bounds:       e.index.BoundsOf(canonical),
		State:        e.ledger.State(canonical).String(),
		Spawns:       e.spawns(canonical),
		InitialValue: ledger.InitialValue(e.oracle, canonical),
		Distance:     grid.ChebyshevDistance(player, canonical),
	}
	info.InRange = info.Distance <= e.config.VisionRadius
	if n, err := e.ledger.Count(canonical); err == nil {
		info.Count = n
		info.Coins = e.ledger.Coins(canonical)
	}
	return info
}

// Audit verifies coin conservation for the session
func (e *GameEngine) Audit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Audit(e.inv)
}

// GetMoveHistory returns the complete move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]MoveHistoryEntry(nil), e.history...)
}

// GetLastMove returns the last action taken, or nil if none
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) == 0 {
		return nil
	}
	last := e.history[len(e.history)-1]
	return &last
}

func (e *GameEngine) failureMessage(err error) string {
	switch {
	case errors.Is(err, ledger.ErrEmptyCache):
		return e.config.Messages.EmptyCache
	case errors.Is(err, ledger.ErrNotMaterialized):
		return e.config.Messages.NotMaterialized
	case errors.Is(err, ledger.ErrEmptyInventory), errors.Is(err, ledger.ErrTokenNotHeld):
		return e.config.Messages.EmptyInventory
	default:
		return err.Error()
	}
}

// statusText renders the status panel line for the coin just moved
func (e *GameEngine) statusText(tok ledger.Token) string {
	lat := float64(tok.ID.Row) * e.config.TileDegrees
	lng := float64(tok.ID.Col) * e.config.TileDegrees
	return fmt.Sprintf(e.config.Messages.Status, e.inv.Len(), lat, lng, tok.ID.Serial)
}

func (e *GameEngine) storageFailed(err error) {
	log.Printf("engine: storage failure for %q: %v", e.config.Name, err)
	e.warning = fmt.Sprintf("%s: %v", e.config.Messages.StorageWarning, err)
}
