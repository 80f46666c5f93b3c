package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
	"github.com/wricardo/mcp-training/geocoins/game/store"
)

// Save writes the player, caches, coins and playerLoc keys. A failure is
// returned and also kept as the state's storage warning; the in-memory game
// stays authoritative either way.
func (e *GameEngine) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked(ctx)
}

func (e *GameEngine) saveLocked(ctx context.Context) error {
	player, err := ledger.EncodeTokens(e.inv.Tokens())
	if err != nil {
		return e.saveFailed(fmt.Errorf("encode player: %w", err))
	}
	caches, err := ledger.EncodeMementos(e.ledger.Mementos())
	if err != nil {
		return e.saveFailed(fmt.Errorf("encode caches: %w", err))
	}
	coins, err := ledger.EncodeTokens(e.ledger.ActiveTokens())
	if err != nil {
		return e.saveFailed(fmt.Errorf("encode coins: %w", err))
	}
	loc, err := ledger.EncodePoint(e.pos)
	if err != nil {
		return e.saveFailed(fmt.Errorf("encode playerLoc: %w", err))
	}

	var errs []error
	for _, kv := range []struct {
		key   string
		value []byte
	}{
		{KeyPlayer, player},
		{KeyCaches, caches},
		{KeyCoins, coins},
		{KeyPlayerLoc, loc},
	} {
		if err := e.store.Set(ctx, kv.key, kv.value); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", kv.key, err))
		}
	}
	if err := e.saveHistory(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return e.saveFailed(err)
	}
	e.warning = ""
	return nil
}

func (e *GameEngine) saveHistory(ctx context.Context) error {
	data, err := json.Marshal(e.history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := e.store.Set(ctx, KeyHistory, data); err != nil {
		e.storageFailed(err)
		return fmt.Errorf("write %s: %w", KeyHistory, err)
	}
	return nil
}

func (e *GameEngine) saveFailed(err error) error {
	e.storageFailed(err)
	return err
}

// loadLocked restores the session from the store. Missing keys mean a fresh
// game; unreadable records are logged and skipped.
func (e *GameEngine) loadLocked(ctx context.Context) error {
	read := func(key string) ([]byte, error) {
		data, err := e.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		return data, nil
	}

	var problems []error
	keys := []string{KeyPlayer, KeyCaches, KeyCoins, KeyPlayerLoc, KeyHistory}
	raw := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := read(key)
		if err != nil {
			e.storageFailed(err)
			return err
		}
		raw[key] = data
	}

	held, errs := ledger.DecodeTokens(raw[KeyPlayer])
	problems = append(problems, errs...)
	mementos, errs := ledger.DecodeMementos(raw[KeyCaches])
	problems = append(problems, errs...)
	coins, errs := ledger.DecodeTokens(raw[KeyCoins])
	problems = append(problems, errs...)

	e.ledger = ledger.New(e.oracle)
	e.inv = ledger.NewInventory()
	problems = append(problems, e.ledger.Restore(mementos, coins, held, e.inv)...)

	e.pos = e.config.Start
	if raw[KeyPlayerLoc] != nil {
		p, err := ledger.DecodePoint(raw[KeyPlayerLoc])
		if err != nil {
			problems = append(problems, err)
		} else {
			e.pos = p
		}
	}
	e.trail = []grid.Point{e.pos}

	if raw[KeyHistory] != nil {
		var history []MoveHistoryEntry
		if err := json.Unmarshal(raw[KeyHistory], &history); err != nil {
			problems = append(problems, fmt.Errorf("decode history: %w", err))
		} else {
			e.history = history
			e.totalMoves = len(history)
			if n := len(history); n > 0 {
				e.totalMoves = history[n-1].MoveNumber
			}
		}
	}

	for _, p := range problems {
		log.Printf("engine: restore %q: skipped record: %v", e.config.Name, p)
	}
	e.refreshLocked()
	return nil
}
