// Command validate checks game configuration files (JSON or YAML). By default
// it scans the configs directory; explicit files may be passed as arguments.
// It checks:
//   - Document structure, unknown fields, and value ranges (engine.ParseGameConfig)
//   - Message templates carry the verbs the game formats into them
//   - The start cell has at least one cache within vision, so a new player
//     has something to grab
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
	"github.com/wricardo/mcp-training/geocoins/game/luck"
)

var errInvalidConfigs = errors.New("some configurations have errors")

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateConfig loads and validates a single configuration file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	config, err := engine.ParseGameConfig(filePath, data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	reach := validateStartArea(config)
	if !reach.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, reach.Errors...)

	if result.Valid {
		side := 2*config.VisionRadius + 1
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", config.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Tile: %g degrees", config.TileDegrees))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Vision: %dx%d cells", side, side))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Spawn probability: %g (about %.1f caches in view)", config.SpawnProbability, expectedCaches(config.VisionRadius, config.SpawnProbability)))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Start: (%.6f, %.6f)", config.Start.Lat, config.Start.Lng))
	}

	return result
}

// validateStartArea materializes nothing; it asks the oracle which cells in
// the starting neighborhood spawn a cache and how many coins they would mint.
func validateStartArea(config *engine.GameConfig) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	oracle := luck.NewHMAC(config.Seed)
	index := grid.NewIndex(config.TileDegrees)

	caches, coins := 0, 0
	for _, cell := range index.Neighborhood(config.Start, config.VisionRadius) {
		if oracle.Luck(luck.Key(cell.Row, cell.Col)) >= config.SpawnProbability {
			continue
		}
		caches++
		coins += ledger.InitialValue(oracle, *cell)
	}

	if caches == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "No cache spawns within vision of the start location")
		return result
	}
	if coins == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("All %d caches near the start mint zero coins", caches))
		return result
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Start area: %d caches holding %d coins", caches, coins))
	return result
}

// configFiles lists the config files under dir in name order
func configFiles(dir string) ([]string, error) {
	var files []string
	for _, ext := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, ext))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// report prints one result per file and returns errInvalidConfigs when any failed.
func report(w io.Writer, files []string) error {
	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Errors {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Fprintln(w, "  ❌ "+err)
				}
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if !allValid {
		fmt.Fprintln(w, "❌ Some configurations have errors")
		return errInvalidConfigs
	}
	fmt.Fprintln(w, "✅ All configurations are valid!")
	return nil
}

func newCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate geocoin game configuration files",
		ArgsUsage: "[FILE...]",
		Writer:    w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Value:   "configs",
				Usage:   "directory scanned when no files are given",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				files, err = configFiles(cmd.String("dir"))
				if err != nil {
					return fmt.Errorf("error finding config files: %w", err)
				}
				if len(files) == 0 {
					return fmt.Errorf("no config files in %s", cmd.String("dir"))
				}
			}
			return report(cmd.Writer, files)
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errInvalidConfigs) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// expectedCaches is the mean number of caches in a (2r+1)² window
func expectedCaches(radius int, p float64) float64 {
	side := float64(2*radius + 1)
	return math.Round(side*side*p*10) / 10
}
