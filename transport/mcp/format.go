package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/service"
)

// Formatting helpers

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var result strings.Builder

	// Header (include cumulative total moves)
	result.WriteString(fmt.Sprintf("Position: (%.6f, %.6f) | Cell: %s | Coins held: %d | Moves: %d\n",
		state.Position.Lat, state.Position.Lng, state.PlayerCell, state.InventoryCount, state.TotalMoves))
	if state.Message != "" {
		result.WriteString(state.Message + "\n")
	}
	if state.StorageWarning != "" {
		result.WriteString("⚠️ " + state.StorageWarning + "\n")
	}
	result.WriteString("\n")

	result.WriteString(formatNeighborhood(state))

	if len(state.Caches) == 0 {
		result.WriteString("\nNo caches in view.\n")
	} else {
		result.WriteString(fmt.Sprintf("\nCaches in view (%d):\n", len(state.Caches)))
		for _, c := range state.Caches {
			result.WriteString(fmt.Sprintf("  - cell %s: %d coins (distance %d)\n", c.Cell, c.Count, c.Distance))
		}
	}

	if state.LastToken != nil {
		result.WriteString(fmt.Sprintf("\nLast coin touched: %s\n", state.LastToken.ID))
	}
	return result.String()
}

// formatNeighborhood draws the visible square with north at the top:
// @ player, digits for cache sizes (+ above 9), . for empty cells
func formatNeighborhood(state *engine.GameState) string {
	r := state.VisionRadius
	if r <= 0 || r > engine.MaxVisionRadius {
		return ""
	}

	counts := make(map[grid.Cell]int, len(state.Caches))
	for _, c := range state.Caches {
		counts[c.Cell] = c.Count
	}

	var b strings.Builder
	b.WriteString("Map (north up):\n")
	for row := state.PlayerCell.Row + r; row >= state.PlayerCell.Row-r; row-- {
		for col := state.PlayerCell.Col - r; col <= state.PlayerCell.Col+r; col++ {
			cell := grid.Cell{Row: row, Col: col}
			n, isCache := counts[cell]
			switch {
			case cell == state.PlayerCell && isCache:
				b.WriteString("&")
			case cell == state.PlayerCell:
				b.WriteString("@")
			case !isCache:
				b.WriteString(".")
			case n > 9:
				b.WriteString("+")
			default:
				b.WriteString(fmt.Sprint(n))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("Legend: @ you, & you on a cache, 0-9 cache coins, + ten or more, . empty\n")
	return b.String()
}

func formatEvents(events []service.GameEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == "move" || ev.Type == "locate" {
			continue
		}
		b.WriteString(fmt.Sprintf("  • [%s] %s\n", ev.Type, ev.Message))
	}
	return b.String()
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Success {
		b.WriteString("✅ " + result.Message + "\n")
	} else {
		b.WriteString("❌ " + result.Message + "\n")
	}
	if step := result.Step; step != nil {
		b.WriteString(fmt.Sprintf("Step: %s %s -> %s (caches in view: %d, appeared: %d, left view: %d)\n",
			step.Dir, step.From, step.To, step.CachesInView, step.Appeared, step.Archived))
	}
	if events := formatEvents(result.Events); events != "" {
		b.WriteString("Events:\n" + events)
	}
	b.WriteString("\n" + formatGameState(result.GameState))
	return b.String()
}

func formatActionResult(verb string, result *service.ActionResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("✅ %s coin %s\n", verb, result.Token.ID))
	if result.Cache != nil {
		b.WriteString(fmt.Sprintf("Cache %s now holds %d coins\n", result.Cache.Cell, result.Cache.Count))
	}
	if result.Message != "" {
		b.WriteString(result.Message + "\n")
	}
	b.WriteString("\n" + formatGameState(result.GameState))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("History (page %d/%d, %d total actions):\n\n",
		history.Page, history.TotalPages, history.TotalMoves))
	for _, m := range history.Moves {
		status := "✓"
		if !m.Success {
			status = "✗"
		}
		line := fmt.Sprintf("#%d %s %s cell=%s coins=%d", m.MoveNumber, status, m.Action, m.Cell, m.Inventory)
		if m.Token != "" {
			line += " token=" + m.Token
		}
		line += " at " + time.Unix(m.Timestamp, 0).Format("15:04:05")
		b.WriteString(line + "\n")
	}
	if history.HasNext {
		b.WriteString(fmt.Sprintf("\nMore on page %d\n", history.Page+1))
	}
	return b.String()
}

func formatCellInfo(info *engine.CellInfo) string {
	result := fmt.Sprintf(`Cell %s:
━━━━━━━━━━━━━━━━━━━━━━━━
Bounds: lat [%.6f, %.6f) lng [%.6f, %.6f)
State: %s
Spawns a cache: %v
Initial value: %d coins
In view: %v (distance %d)
`,
		info.Cell,
		info.Bounds.South, info.Bounds.North, info.Bounds.West, info.Bounds.East,
		info.State, info.Spawns, info.InitialValue, info.InRange, info.Distance)

	if info.State == "materialized" {
		result += fmt.Sprintf("Coins here: %d\n", info.Count)
		for _, tok := range info.Coins {
			result += fmt.Sprintf("  - %s\n", tok.ID)
		}
	}
	return result
}

const gameInstructions = `Geocoin Hunt - Complete Instructions

GAME OBJECTIVE:
The world is divided into square cells of tile_degrees on a side, indexed by
(i, j) = (floor(lat / tile), floor(lng / tile)). Some cells hold caches of
coins. Move around, grab coins from caches in view and donate them elsewhere.

THE WORLD:
- Whether a cell holds a cache is decided by a fixed, seeded luck function:
  the same cell always gives the same answer.
- A cache starts with between 0 and 99 coins, also fixed per cell.
- Every coin has an identity: the cell it was minted in plus a serial,
  written i:j#serial. Coins are never created or destroyed after minting.

VISION:
- You see every cell within vision_radius cells of yours (a square).
- Caches come into view as you approach and leave view as you walk away.
- A cache that leaves view remembers its coin count and restores it when
  you return.

ACTIONS:
- move: north, south, east, west (aliases up, down, right, left) one cell
- locate: jump to any latitude/longitude
- grab: take one coin from a cache in view
- donate: leave a held coin in a cache in view (oldest held coin unless
  you name one with serial/origin_i/origin_j)
- describe_cell: inspect any cell, in view or not
- reset_game: drop all progress and return to the start

ERRORS:
- "cache is empty": nothing to grab
- "cache is not materialized": the cell is out of view or holds no cache
- "inventory is empty": nothing to donate
- "token is not in the inventory": the named coin is not held

MAP LEGEND (game_state):
- @ your cell, & your cell when it has a cache
- 0-9 coins in a cache, + ten or more
- . no cache in view

SESSION MANAGEMENT:
- Multiple game sessions can run simultaneously
- Each session has a unique 4-character ID and independent state
- Progress is saved after every action and survives server restarts

Good luck on the hunt!`
