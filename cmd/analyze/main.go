// Command analyze prints quick, human-readable statistics about the coin
// field around a point: how many cells spawn a cache compared with the
// configured probability, how many coins they would mint, and the richest
// caches. Settings come from a config file, overridable by flags.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
	"github.com/wricardo/mcp-training/geocoins/game/luck"
)

// CacheStat is one spawning cell found during analysis
type CacheStat struct {
	Cell  grid.Cell
	Coins int
}

// Report summarizes the caches in a square window of cells
type Report struct {
	Center       grid.Cell
	Radius       int
	Cells        int
	Caches       int
	Coins        int
	MinCoins     int
	MaxCoins     int
	EmptyCaches  int
	Expected     float64
	Richest      []CacheStat
	NearestCache *CacheStat
	NearestDist  int
}

// Density is the observed fraction of cells holding a cache
func (r *Report) Density() float64 {
	if r.Cells == 0 {
		return 0
	}
	return float64(r.Caches) / float64(r.Cells)
}

// MeanCoins is the average initial value of the caches found
func (r *Report) MeanCoins() float64 {
	if r.Caches == 0 {
		return 0
	}
	return float64(r.Coins) / float64(r.Caches)
}

// analyze scans every cell within radius of center and asks oracle which
// ones spawn and what they mint. top caps the richest list.
func analyze(config *engine.GameConfig, oracle luck.Oracle, center grid.Point, radius, top int) *Report {
	index := grid.NewIndex(config.TileDegrees)
	origin := *index.CellFor(center)

	report := &Report{
		Center:      origin,
		Radius:      radius,
		MinCoins:    -1,
		NearestDist: -1,
	}

	var caches []CacheStat
	for _, cell := range index.Neighborhood(center, radius) {
		report.Cells++
		if oracle.Luck(luck.Key(cell.Row, cell.Col)) >= config.SpawnProbability {
			continue
		}

		stat := CacheStat{Cell: *cell, Coins: ledger.InitialValue(oracle, *cell)}
		caches = append(caches, stat)

		report.Caches++
		report.Coins += stat.Coins
		if stat.Coins == 0 {
			report.EmptyCaches++
		}
		if report.MinCoins < 0 || stat.Coins < report.MinCoins {
			report.MinCoins = stat.Coins
		}
		if stat.Coins > report.MaxCoins {
			report.MaxCoins = stat.Coins
		}
		if d := grid.ChebyshevDistance(origin, stat.Cell); report.NearestDist < 0 || d < report.NearestDist {
			nearest := stat
			report.NearestCache = &nearest
			report.NearestDist = d
		}
	}
	if report.MinCoins < 0 {
		report.MinCoins = 0
	}
	report.Expected = float64(report.Cells) * config.SpawnProbability

	sort.SliceStable(caches, func(i, j int) bool {
		return caches[i].Coins > caches[j].Coins
	})
	if top > len(caches) {
		top = len(caches)
	}
	if top > 0 {
		report.Richest = caches[:top]
	}
	return report
}

func printReport(w io.Writer, config *engine.GameConfig, report *Report) {
	side := 2*report.Radius + 1
	fmt.Fprintf(w, "\n=== Analyzing %s ===\n", config.Name)
	fmt.Fprintf(w, "Center cell: %s\n", report.Center)
	fmt.Fprintf(w, "Window: %dx%d cells (radius %d)\n", side, side, report.Radius)
	fmt.Fprintf(w, "Tile: %g degrees\n", config.TileDegrees)
	fmt.Fprintf(w, "Caches: %d (expected %.1f, density %.3f vs probability %g)\n",
		report.Caches, report.Expected, report.Density(), config.SpawnProbability)
	fmt.Fprintf(w, "Total coins: %d\n", report.Coins)

	if report.Caches == 0 {
		fmt.Fprintf(w, "⚠️  WARNING: no cache spawns in this window\n")
		return
	}

	fmt.Fprintf(w, "Coins per cache: min %d, max %d, mean %.1f\n", report.MinCoins, report.MaxCoins, report.MeanCoins())
	if report.EmptyCaches > 0 {
		fmt.Fprintf(w, "⚠️  %d caches mint zero coins\n", report.EmptyCaches)
	}
	if report.NearestCache != nil {
		fmt.Fprintf(w, "Nearest cache: %s with %d coins, %d cells away\n",
			report.NearestCache.Cell, report.NearestCache.Coins, report.NearestDist)
	}
	if report.NearestDist > config.VisionRadius {
		fmt.Fprintf(w, "⚠️  Nearest cache is outside vision radius %d\n", config.VisionRadius)
	} else {
		fmt.Fprintf(w, "✅ A cache is visible from the center\n")
	}

	if len(report.Richest) > 0 {
		fmt.Fprintf(w, "Richest caches:\n")
		for _, stat := range report.Richest {
			fmt.Fprintf(w, "   %s: %d coins\n", stat.Cell, stat.Coins)
		}
	}
}

func newCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "analyze",
		Usage:  "report spawn density and coin totals around a point",
		Writer: w,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "game config file (JSON or YAML); defaults to the classic settings"},
			&cli.FloatFlag{Name: "lat", Usage: "center latitude (defaults to the config start)"},
			&cli.FloatFlag{Name: "lng", Usage: "center longitude (defaults to the config start)"},
			&cli.IntFlag{Name: "radius", Aliases: []string{"r"}, Value: 32, Usage: "half-width of the scanned window in cells"},
			&cli.IntFlag{Name: "top", Value: 5, Usage: "number of richest caches to list"},
			&cli.StringFlag{Name: "seed", Usage: "override the config's luck seed"},
			&cli.FloatFlag{Name: "spawn", Usage: "override the config's spawn probability"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config := engine.DefaultGameConfig()
			if path := cmd.String("config"); path != "" {
				loaded, err := engine.LoadGameConfig(path)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				config = loaded
			}
			if cmd.IsSet("seed") {
				config.Seed = cmd.String("seed")
			}
			if cmd.IsSet("spawn") {
				config.SpawnProbability = cmd.Float("spawn")
			}
			if err := engine.ValidateGameConfig(config); err != nil {
				return err
			}

			center := config.Start
			if cmd.IsSet("lat") {
				center.Lat = cmd.Float("lat")
			}
			if cmd.IsSet("lng") {
				center.Lng = cmd.Float("lng")
			}

			radius := cmd.Int("radius")
			if radius < 0 || radius > 512 {
				return fmt.Errorf("radius must be between 0 and 512, got %d", radius)
			}

			report := analyze(config, luck.NewHMAC(config.Seed), center, radius, cmd.Int("top"))
			printReport(cmd.Writer, config, report)
			return nil
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
