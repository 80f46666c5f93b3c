package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
	"github.com/wricardo/mcp-training/geocoins/game/luck"
	"github.com/wricardo/mcp-training/geocoins/game/store"
)

var (
	homeCell = grid.Cell{Row: 12, Col: 7}
	farCell  = grid.Cell{Row: 14, Col: 7}
)

func createTestConfig() *GameConfig {
	config := &GameConfig{
		Name:             "Engine Test Config",
		Description:      "Configuration for engine integration tests",
		TileDegrees:      1e-4,
		VisionRadius:     1,
		SpawnProbability: 0.1,
		Start:            grid.Point{Lat: 12.5e-4, Lng: 7.5e-4},
	}
	config.Messages = DefaultMessages()
	return config
}

func testOracle() *luck.Table {
	return luck.NewTable(nil, 0.5).
		Set("12,7", 0.05).
		Set("12,7,initialValue", 0.42).
		Set("14,7", 0.01).
		Set("14,7,initialValue", 0.03)
}

func newTestEngine(t *testing.T, st store.Store) *GameEngine {
	t.Helper()
	e, err := NewEngine(createTestConfig(), st, WithOracle(testOracle()))
	if err != nil {
		t.Fatalf("Failed to create new engine: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start engine: %v", err)
	}
	return e
}

func cacheCount(t *testing.T, state *GameState, cell grid.Cell) int {
	t.Helper()
	for _, c := range state.Caches {
		if c.Cell == cell {
			return c.Count
		}
	}
	t.Fatalf("cache %s not materialized", cell)
	return 0
}

// flakyStore fails writes while broken is set
type flakyStore struct {
	*store.Memory
	mu     sync.Mutex
	broken bool
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	broken := f.broken
	f.mu.Unlock()
	if broken {
		return errors.New("quota exceeded")
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyStore) setBroken(b bool) {
	f.mu.Lock()
	f.broken = b
	f.mu.Unlock()
}

func TestNewEngine(t *testing.T) {
	e := newTestEngine(t, nil)
	state := e.GetState()

	if state.PlayerCell != homeCell {
		t.Errorf("Expected player cell %s, got %s", homeCell, state.PlayerCell)
	}
	if len(state.Caches) != 1 {
		t.Fatalf("Expected 1 visible cache, got %d", len(state.Caches))
	}
	if got := cacheCount(t, state, homeCell); got != 42 {
		t.Errorf("Expected 42 coins, got %d", got)
	}
	if state.Message != DefaultMessages().Welcome {
		t.Errorf("Expected welcome message, got %q", state.Message)
	}
	if !state.Caches[0].Bounds.Contains(state.Position) {
		t.Errorf("Expected bounds %+v to contain the player", state.Caches[0].Bounds)
	}

	t.Run("invalid config", func(t *testing.T) {
		config := createTestConfig()
		config.SpawnProbability = 2
		if _, err := NewEngine(config, nil); err == nil {
			t.Error("Expected error for invalid config")
		}
	})
}

func TestScenarioGrabWalkAwayDonate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	for i := 0; i < 5; i++ {
		tok, err := e.Grab(ctx, homeCell)
		if err != nil {
			t.Fatalf("grab %d: %v", i, err)
		}
		if tok.ID.Serial != i {
			t.Errorf("Expected serial %d, got %d", i, tok.ID.Serial)
		}
	}
	state := e.GetState()
	if state.InventoryCount != 5 || cacheCount(t, state, homeCell) != 37 {
		t.Fatalf("Expected inventory 5 and 37 coins, got %d and %d", state.InventoryCount, cacheCount(t, state, homeCell))
	}
	if !strings.HasPrefix(state.Message, "5 coins collected.") || !strings.HasSuffix(state.Message, "Marked as: 4") {
		t.Errorf("Unexpected status %q", state.Message)
	}

	// walk out of view and back
	e.Move(ctx, "north")
	e.Move(ctx, "north")
	state = e.GetState()
	if state.ArchivedCaches != 1 {
		t.Errorf("Expected 1 archived cache, got %d", state.ArchivedCaches)
	}
	for _, c := range state.Caches {
		if c.Cell == homeCell {
			t.Fatal("Expected home cache to be archived")
		}
	}
	e.Move(ctx, "south")
	e.Move(ctx, "south")

	state = e.GetState()
	if got := cacheCount(t, state, homeCell); got != 37 {
		t.Errorf("Expected 37 coins after returning, got %d", got)
	}

	if _, err := e.Donate(ctx, homeCell); err != nil {
		t.Fatalf("donate: %v", err)
	}
	state = e.GetState()
	if cacheCount(t, state, homeCell) != 38 || state.InventoryCount != 4 {
		t.Errorf("Expected 38 coins and inventory 4, got %d and %d", cacheCount(t, state, homeCell), state.InventoryCount)
	}
	if state.LastToken == nil || state.LastToken.ID.Serial != 0 {
		t.Errorf("Expected last token serial 0, got %+v", state.LastToken)
	}
	if err := e.Audit(); err != nil {
		t.Errorf("Audit failed: %v", err)
	}
}

func TestGrabFailures(t *testing.T) {
	ctx := context.Background()
	config := createTestConfig()
	oracle := testOracle().Set("12,7,initialValue", 0)
	e, err := NewEngine(config, nil, WithOracle(oracle))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	t.Run("empty cache", func(t *testing.T) {
		_, err := e.Grab(ctx, homeCell)
		if !errors.Is(err, ledger.ErrEmptyCache) {
			t.Fatalf("Expected ErrEmptyCache, got %v", err)
		}
		state := e.GetState()
		if state.Message != config.Messages.EmptyCache {
			t.Errorf("Expected %q, got %q", config.Messages.EmptyCache, state.Message)
		}
		if state.InventoryCount != 0 || cacheCount(t, state, homeCell) != 0 {
			t.Error("Expected state unchanged")
		}
		last := e.GetLastMove()
		if last == nil || last.Success || last.Action != "grab" {
			t.Errorf("Expected failed grab in history, got %+v", last)
		}
	})

	t.Run("not materialized", func(t *testing.T) {
		_, err := e.Grab(ctx, farCell)
		if !errors.Is(err, ledger.ErrNotMaterialized) {
			t.Errorf("Expected ErrNotMaterialized, got %v", err)
		}
	})

	t.Run("donate with empty pocket", func(t *testing.T) {
		_, err := e.Donate(ctx, homeCell)
		if !errors.Is(err, ledger.ErrEmptyInventory) {
			t.Errorf("Expected ErrEmptyInventory, got %v", err)
		}
	})
}

func TestDonateToken(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)
	e.Grab(ctx, homeCell)
	second, _ := e.Grab(ctx, homeCell)

	tok, err := e.DonateToken(ctx, homeCell, second.ID)
	if err != nil {
		t.Fatalf("donate token: %v", err)
	}
	if tok.ID != second.ID {
		t.Errorf("Expected %s donated, got %s", second.ID, tok.ID)
	}
	state := e.GetState()
	if state.InventoryCount != 1 || state.Inventory[0].ID.Serial != 0 {
		t.Errorf("Expected serial 0 left in inventory, got %+v", state.Inventory)
	}

	_, err = e.DonateToken(ctx, homeCell, ledger.TokenID{Row: 1, Col: 1, Serial: 1})
	if !errors.Is(err, ledger.ErrTokenNotHeld) {
		t.Errorf("Expected ErrTokenNotHeld, got %v", err)
	}
}

func TestMove(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		direction string
		want      grid.Cell
	}{
		{"north", grid.Cell{Row: 13, Col: 7}},
		{"up", grid.Cell{Row: 13, Col: 7}},
		{"south", grid.Cell{Row: 11, Col: 7}},
		{"east", grid.Cell{Row: 12, Col: 8}},
		{"right", grid.Cell{Row: 12, Col: 8}},
		{"West", grid.Cell{Row: 12, Col: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			e := newTestEngine(t, nil)
			if !e.Move(ctx, tt.direction) {
				t.Fatalf("Expected move %s to succeed", tt.direction)
			}
			state := e.GetState()
			if state.PlayerCell != tt.want {
				t.Errorf("Expected cell %s, got %s", tt.want, state.PlayerCell)
			}
			if len(state.Trail) != 2 {
				t.Errorf("Expected trail of 2, got %d", len(state.Trail))
			}
		})
	}

	t.Run("invalid direction", func(t *testing.T) {
		e := newTestEngine(t, nil)
		before := e.GetPlayerPosition()
		if e.Move(ctx, "sideways") {
			t.Error("Expected invalid direction to fail")
		}
		if e.GetPlayerPosition() != before {
			t.Error("Expected position unchanged")
		}
		if !strings.Contains(e.GetState().Message, "sideways") {
			t.Errorf("Expected message to mention direction, got %q", e.GetState().Message)
		}
		if e.GetState().TotalMoves != 1 {
			t.Errorf("Expected failed move recorded, got %d moves", e.GetState().TotalMoves)
		}
	})
}

func TestSetPosition(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, nil)

	if !e.SetPosition(ctx, grid.Point{Lat: 14.5e-4, Lng: 7.5e-4}) {
		t.Fatal("Expected locate to succeed")
	}
	state := e.GetState()
	if state.PlayerCell != farCell {
		t.Errorf("Expected %s, got %s", farCell, state.PlayerCell)
	}
	if got := cacheCount(t, state, farCell); got != 3 {
		t.Errorf("Expected 3 coins at far cache, got %d", got)
	}
	if state.ArchivedCaches != 1 {
		t.Errorf("Expected home cache archived, got %d archived", state.ArchivedCaches)
	}

	if e.SetPosition(ctx, grid.Point{Lat: 91, Lng: 0}) {
		t.Error("Expected out of range latitude to fail")
	}
}

func TestSaveAndStart(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	a := newTestEngine(t, st)
	a.Grab(ctx, homeCell)
	a.Grab(ctx, homeCell)
	a.Move(ctx, "north")
	a.Donate(ctx, farCell)

	for _, key := range []string{KeyPlayer, KeyCaches, KeyCoins, KeyPlayerLoc, KeyHistory} {
		if _, err := st.Get(ctx, key); err != nil {
			t.Errorf("Expected key %s to be written: %v", key, err)
		}
	}

	b := newTestEngine(t, st)
	sa, sb := a.GetState(), b.GetState()
	if sa.Position != sb.Position {
		t.Errorf("Expected position %v, got %v", sa.Position, sb.Position)
	}
	if sb.InventoryCount != 1 {
		t.Errorf("Expected 1 held coin, got %d", sb.InventoryCount)
	}
	if cacheCount(t, sb, homeCell) != 40 || cacheCount(t, sb, farCell) != 4 {
		t.Errorf("Expected 40 and 4 coins, got %d and %d", cacheCount(t, sb, homeCell), cacheCount(t, sb, farCell))
	}
	if sb.Instantiated != sa.Instantiated {
		t.Errorf("Expected %d instantiated, got %d", sa.Instantiated, sb.Instantiated)
	}
	if sb.TotalMoves != sa.TotalMoves || len(b.GetMoveHistory()) != len(a.GetMoveHistory()) {
		t.Errorf("Expected history of %d, got %d", sa.TotalMoves, sb.TotalMoves)
	}
	if err := b.Audit(); err != nil {
		t.Errorf("Audit after restore: %v", err)
	}
}

func TestStartSkipsMalformedMemento(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	a := newTestEngine(t, st)
	a.Save(ctx)

	st.Set(ctx, KeyCaches, []byte(`[{"i":12,"j":7,"numCoins":42},{"i":99,"j":99}]`))

	b := newTestEngine(t, st)
	if got := cacheCount(t, b.GetState(), homeCell); got != 42 {
		t.Errorf("Expected 42 coins, got %d", got)
	}
	if err := b.Audit(); err != nil {
		t.Errorf("Audit: %v", err)
	}
}

func TestStartRecoversLostCoinRecords(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	a := newTestEngine(t, st)
	for i := 0; i < 5; i++ {
		if _, err := a.Grab(ctx, homeCell); err != nil {
			t.Fatalf("Grab failed: %v", err)
		}
	}
	a.Save(ctx)

	st.Set(ctx, KeyCoins, []byte("garbage"))

	b := newTestEngine(t, st)
	state := b.GetState()
	if got := cacheCount(t, state, homeCell); got != 37 {
		t.Errorf("Expected 37 coins back at %s, got %d", homeCell, got)
	}
	if state.InventoryCount != 5 {
		t.Errorf("Expected 5 held coins, got %d", state.InventoryCount)
	}
	if state.Instantiated != 42 {
		t.Errorf("Expected 42 instantiated, got %d", state.Instantiated)
	}
	if err := b.Audit(); err != nil {
		t.Errorf("Audit: %v", err)
	}

	// recovered coins keep grab order after the held ones
	tok, err := b.Grab(ctx, homeCell)
	if err != nil {
		t.Fatalf("Grab after restore failed: %v", err)
	}
	if tok.ID.Serial != 5 {
		t.Errorf("Expected serial 5, got %s", tok.ID)
	}
}

func TestFailedActionsArePersisted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	a := newTestEngine(t, st)
	a.Grab(ctx, farCell)
	a.Donate(ctx, homeCell)

	data, err := st.Get(ctx, KeyHistory)
	if err != nil {
		t.Fatalf("Expected history to be written: %v", err)
	}
	var history []MoveHistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(history))
	}
	for i, action := range []string{"grab", "donate"} {
		if history[i].Action != action || history[i].Success {
			t.Errorf("Entry %d: expected failed %s, got %+v", i, action, history[i])
		}
	}

	b := newTestEngine(t, st)
	if got := len(b.GetMoveHistory()); got != 2 {
		t.Errorf("Expected 2 entries after restart, got %d", got)
	}
}

func TestStorageWarning(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{Memory: store.NewMemory()}
	e := newTestEngine(t, st)

	st.setBroken(true)
	if !e.Move(ctx, "north") {
		t.Fatal("Expected move to succeed despite storage failure")
	}
	state := e.GetState()
	if state.StorageWarning == "" {
		t.Error("Expected storage warning")
	}
	if state.PlayerCell != (grid.Cell{Row: 13, Col: 7}) {
		t.Error("Expected in-memory state to advance")
	}
	if err := e.Save(ctx); err == nil {
		t.Error("Expected Save to report the failure")
	}

	st.setBroken(false)
	e.Move(ctx, "south")
	if w := e.GetState().StorageWarning; w != "" {
		t.Errorf("Expected warning cleared, got %q", w)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := newTestEngine(t, st)
	e.Grab(ctx, homeCell)
	e.Move(ctx, "east")

	state := e.Reset(ctx)
	if state.InventoryCount != 0 {
		t.Errorf("Expected empty inventory, got %d", state.InventoryCount)
	}
	if state.Position != createTestConfig().Start {
		t.Errorf("Expected start position, got %v", state.Position)
	}
	if cacheCount(t, state, homeCell) != 42 {
		t.Errorf("Expected fresh 42 coins, got %d", cacheCount(t, state, homeCell))
	}
	for _, key := range []string{KeyPlayer, KeyCaches, KeyCoins, KeyPlayerLoc} {
		if _, err := st.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected %s cleared, got %v", key, err)
		}
	}
	history := e.GetMoveHistory()
	if len(history) != 3 || history[2].Action != "reset" {
		t.Errorf("Expected cumulative history ending in reset, got %+v", history)
	}
}

func TestDescribeCell(t *testing.T) {
	e := newTestEngine(t, nil)

	info := e.DescribeCell(homeCell)
	if info.State != "materialized" || info.Count != 42 || !info.Spawns || !info.InRange {
		t.Errorf("Unexpected info %+v", info)
	}
	if len(info.Coins) != 42 {
		t.Errorf("Expected 42 coins listed, got %d", len(info.Coins))
	}

	info = e.DescribeCell(farCell)
	if info.State != "unseen" || info.InRange || info.Distance != 2 || info.InitialValue != 3 {
		t.Errorf("Unexpected info %+v", info)
	}
}

func TestSeededEnginesAgree(t *testing.T) {
	config := DefaultGameConfig()
	config.Seed = "agree"
	a, _ := NewEngine(config, nil)
	b, _ := NewEngine(config, nil)
	sa, sb := a.GetState(), b.GetState()
	if len(sa.Caches) != len(sb.Caches) {
		t.Fatalf("Expected same caches, got %d and %d", len(sa.Caches), len(sb.Caches))
	}
	for i := range sa.Caches {
		if sa.Caches[i] != sb.Caches[i] {
			t.Errorf("cache %d differs: %+v vs %+v", i, sa.Caches[i], sb.Caches[i])
		}
	}
}

func TestNewEngineWithDefaults(t *testing.T) {
	e := NewEngineWithDefaults()
	state := e.GetState()
	want := grid.Cell{Row: 369894, Col: -1220628}
	if state.PlayerCell != want {
		t.Errorf("Expected classroom cell %s, got %s", want, state.PlayerCell)
	}
	if state.VisionRadius != DefaultVisionRadius {
		t.Errorf("Expected vision %d, got %d", DefaultVisionRadius, state.VisionRadius)
	}
}
