package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/luck"
)

// Directions lists the canonical movement directions
var Directions = []string{"north", "south", "east", "west"}

// ParseDirection maps a direction or alias to its row/col step
func ParseDirection(direction string) (name string, dRow, dCol int, ok bool) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "north", "n", "up":
		return "north", 1, 0, true
	case "south", "s", "down":
		return "south", -1, 0, true
	case "east", "e", "right":
		return "east", 0, 1, true
	case "west", "w", "left":
		return "west", 0, -1, true
	}
	return "", 0, 0, false
}

// Move steps the player one tile in direction
func (e *GameEngine) Move(ctx context.Context, direction string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.pos
	name, dRow, dCol, ok := ParseDirection(direction)
	if !ok {
		e.message = formatOne(e.config.Messages.CantMove, direction)
		e.record(direction, from, *e.index.CellFor(from), "", false)
		return false
	}

	e.pos = grid.Point{
		Lat: from.Lat + float64(dRow)*e.config.TileDegrees,
		Lng: from.Lng + float64(dCol)*e.config.TileDegrees,
	}
	e.trail = append(e.trail, e.pos)
	e.refreshLocked()
	e.message = formatOne(e.config.Messages.Moved, name)
	e.record(name, from, *e.index.CellFor(e.pos), "", true)
	e.saveLocked(ctx)
	return true
}

// SetPosition moves the player to a sensed location
func (e *GameEngine) SetPosition(ctx context.Context, p grid.Point) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.pos
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		e.message = formatOne(e.config.Messages.CantMove, fmt.Sprintf("to (%g, %g)", p.Lat, p.Lng))
		e.record("locate", from, *e.index.CellFor(from), "", false)
		return false
	}

	e.pos = p
	e.trail = append(e.trail, e.pos)
	e.refreshLocked()
	e.message = e.config.Messages.Located
	e.record("locate", from, *e.index.CellFor(e.pos), "", true)
	e.saveLocked(ctx)
	return true
}

// refreshLocked archives live caches that fell out of view and materializes
// every cell in view that has a memento or passes the spawn roll
func (e *GameEngine) refreshLocked() {
	near := e.index.Neighborhood(e.pos, e.config.VisionRadius)
	inView := make(map[grid.Cell]bool, len(near))
	for _, c := range near {
		inView[*c] = true
	}

	for _, c := range e.ledger.Materialized() {
		if !inView[c.Cell] {
			e.ledger.Archive(c.Cell)
		}
	}

	for _, c := range near {
		cell := *c
		if !e.ledger.HasMemento(cell) && !e.spawns(cell) {
			continue
		}
		if _, err := e.ledger.Materialize(cell); err != nil {
			log.Printf("engine: materialize %s: %v", cell, err)
		}
	}
}

// spawns reports whether cell holds a cache
func (e *GameEngine) spawns(cell grid.Cell) bool {
	return e.oracle.Luck(luck.Key(cell.Row, cell.Col)) < e.config.SpawnProbability
}

// record adds an action to the game's move history
func (e *GameEngine) record(action string, from grid.Point, cell grid.Cell, token string, success bool) {
	e.totalMoves++
	e.history = append(e.history, MoveHistoryEntry{
		Action:       action,
		FromPosition: from,
		ToPosition:   e.pos,
		Cell:         cell,
		Token:        token,
		Inventory:    e.inv.Len(),
		Timestamp:    time.Now().Unix(),
		Success:      success,
		MoveNumber:   e.totalMoves,
	})
}

// formatOne applies arg to a message that may or may not carry a verb
func formatOne(format string, arg any) string {
	if countVerbs(format) == 0 {
		return format
	}
	return fmt.Sprintf(format, arg)
}
