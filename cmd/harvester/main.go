// Command harvester plays a session through the REST API: it walks a square
// spiral around the start and grabs every coin from each cache that comes
// into view, then prints what it collected.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
)

// Stats summarizes one harvesting run
type Stats struct {
	Moves         int
	FailedMoves   int
	Grabs         int
	CachesSeen    int
	CachesEmptied int
	Inventory     int
	EndCell       grid.Cell
}

// Harvester walks and grabs on behalf of one session
type Harvester struct {
	client  *Client
	delay   time.Duration
	verbose bool
	seen    map[grid.Cell]bool
	stats   Stats
}

func NewHarvester(client *Client, delay time.Duration, verbose bool) *Harvester {
	return &Harvester{
		client:  client,
		delay:   delay,
		verbose: verbose,
		seen:    make(map[grid.Cell]bool),
	}
}

// spiral returns the moves of a square spiral covering rings rings around
// the start: legs of 1,1,2,2,... tiles turning east, north, west, south, closed
// by a final eastward leg.
func spiral(rings int) []string {
	if rings <= 0 {
		return nil
	}
	turns := []string{"east", "north", "west", "south"}
	var moves []string
	leg := 0
	for length := 1; length <= 2*rings; length++ {
		for k := 0; k < 2; k++ {
			for i := 0; i < length; i++ {
				moves = append(moves, turns[leg%4])
			}
			leg++
		}
	}
	for i := 0; i < 2*rings; i++ {
		moves = append(moves, turns[leg%4])
	}
	return moves
}

// Run harvests around state, then along the spiral. It stops early when ctx
// is cancelled and returns the stats gathered so far.
func (h *Harvester) Run(ctx context.Context, state *engine.GameState, rings int) (*Stats, error) {
	if err := h.harvest(ctx, state); err != nil {
		return &h.stats, err
	}

	for _, direction := range spiral(rings) {
		if err := ctx.Err(); err != nil {
			return &h.stats, err
		}

		result, err := h.client.Move(ctx, direction)
		if err != nil {
			return &h.stats, err
		}
		if !result.Success {
			h.stats.FailedMoves++
			if h.verbose {
				log.Printf("Move %s failed: %s", direction, result.Message)
			}
			continue
		}
		h.stats.Moves++
		state = result.GameState

		if err := h.harvest(ctx, state); err != nil {
			return &h.stats, err
		}

		if h.delay > 0 {
			select {
			case <-ctx.Done():
				return &h.stats, ctx.Err()
			case <-time.After(h.delay):
			}
		}
	}

	return &h.stats, nil
}

// harvest empties every non-empty cache in view
func (h *Harvester) harvest(ctx context.Context, state *engine.GameState) error {
	if state == nil {
		return nil
	}
	h.stats.EndCell = state.PlayerCell
	h.stats.Inventory = state.InventoryCount

	for _, cache := range state.Caches {
		if !h.seen[cache.Cell] {
			h.seen[cache.Cell] = true
			h.stats.CachesSeen++
		}
		if cache.Count == 0 {
			continue
		}

		emptied := true
		for n := cache.Count; n > 0; n-- {
			result, err := h.client.Grab(ctx, cache.Cell)
			if err != nil {
				var statusErr *StatusError
				if errors.As(err, &statusErr) && statusErr.Status == http.StatusConflict {
					// the cache changed under us; skip it
					emptied = false
					break
				}
				return err
			}
			h.stats.Grabs++
			if result.GameState != nil {
				h.stats.Inventory = result.GameState.InventoryCount
			}
		}
		if emptied {
			h.stats.CachesEmptied++
		}
		if h.verbose {
			log.Printf("Emptied cache %s (%d coins), holding %d", cache.Cell, cache.Count, h.stats.Inventory)
		}
	}
	return nil
}

func printStats(w io.Writer, sessionID string, stats *Stats) {
	fmt.Fprintf(w, "Session: %s\n", sessionID)
	fmt.Fprintf(w, "Moves: %d (%d failed)\n", stats.Moves, stats.FailedMoves)
	fmt.Fprintf(w, "Caches seen: %d, emptied: %d\n", stats.CachesSeen, stats.CachesEmptied)
	fmt.Fprintf(w, "Coins grabbed: %d, holding: %d\n", stats.Grabs, stats.Inventory)
	fmt.Fprintf(w, "Ended at cell: %s\n", stats.EndCell)
}

func newCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "harvester",
		Usage:  "walk a spiral and grab every visible coin through the REST API",
		Writer: w,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL"},
			&cli.StringFlag{Name: "config", Usage: "config ID for a new session"},
			&cli.StringFlag{Name: "session", Usage: "continue an existing session by ID"},
			&cli.IntFlag{Name: "rings", Value: 8, Usage: "spiral rings to walk around the start"},
			&cli.BoolFlag{Name: "reset", Usage: "reset the session before harvesting"},
			&cli.DurationFlag{Name: "delay", Usage: "pause between moves"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client := NewClient(cmd.String("url"))
			log.Printf("Connecting to game server at %s", cmd.String("url"))

			var state *engine.GameState
			var err error
			if id := cmd.String("session"); id != "" {
				client.UseSession(id)
				state, err = client.GetState(ctx)
				if err != nil {
					return fmt.Errorf("resume session %s: %w", id, err)
				}
				log.Printf("Resuming session: %s", id)
			} else {
				state, err = client.CreateSession(ctx, cmd.String("config"))
				if err != nil {
					return err
				}
				log.Printf("Session created: %s", client.SessionID())
			}

			if cmd.Bool("reset") {
				if state, err = client.Reset(ctx); err != nil {
					return err
				}
				log.Printf("Game reset, starting at cell %s", state.PlayerCell)
			}

			harvester := NewHarvester(client, cmd.Duration("delay"), cmd.Bool("v"))
			stats, err := harvester.Run(ctx, state, cmd.Int("rings"))
			printStats(cmd.Writer, client.SessionID(), stats)
			return err
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatalf("Harvest failed: %v", err)
	}
}
