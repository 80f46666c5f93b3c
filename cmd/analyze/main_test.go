package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/luck"
)

func testConfig() *engine.GameConfig {
	config := engine.DefaultGameConfig()
	config.TileDegrees = 1e-4
	config.VisionRadius = 1
	config.SpawnProbability = 0.1
	config.Start = grid.Point{Lat: 12.5e-4, Lng: 7.5e-4}
	return config
}

func testOracle() luck.Oracle {
	return luck.NewTable(map[string]float64{
		"12,7":              0.05,
		"12,7,initialValue": 0.42,
		"14,7":              0.01,
		"14,7,initialValue": 0.03,
	}, 0.5)
}

func TestAnalyze(t *testing.T) {
	config := testConfig()
	report := analyze(config, testOracle(), config.Start, 2, 1)

	if report.Center != (grid.Cell{Row: 12, Col: 7}) {
		t.Errorf("Expected center 12,7, got %v", report.Center)
	}
	if report.Cells != 25 {
		t.Errorf("Expected 25 cells, got %d", report.Cells)
	}
	if report.Caches != 2 {
		t.Errorf("Expected 2 caches, got %d", report.Caches)
	}
	if report.Coins != 45 {
		t.Errorf("Expected 45 coins, got %d", report.Coins)
	}
	if report.MinCoins != 3 || report.MaxCoins != 42 {
		t.Errorf("Expected coins 3..42, got %d..%d", report.MinCoins, report.MaxCoins)
	}
	if report.NearestCache == nil || report.NearestDist != 0 {
		t.Errorf("Expected nearest cache at distance 0, got %+v at %d", report.NearestCache, report.NearestDist)
	}
	if len(report.Richest) != 1 || report.Richest[0].Cell != (grid.Cell{Row: 12, Col: 7}) {
		t.Errorf("Expected richest cache 12,7, got %+v", report.Richest)
	}
	if report.Expected != 2.5 {
		t.Errorf("Expected 2.5 expected caches, got %v", report.Expected)
	}
	if report.Density() != 0.08 {
		t.Errorf("Expected density 0.08, got %v", report.Density())
	}
	if report.MeanCoins() != 22.5 {
		t.Errorf("Expected mean 22.5, got %v", report.MeanCoins())
	}
}

func TestAnalyze_NoCaches(t *testing.T) {
	config := testConfig()
	center := grid.Point{Lat: -50.5e-4, Lng: -50.5e-4}

	report := analyze(config, testOracle(), center, 1, 5)
	if report.Caches != 0 || report.Coins != 0 {
		t.Errorf("Expected empty window, got %d caches %d coins", report.Caches, report.Coins)
	}
	if report.NearestCache != nil || report.Richest != nil {
		t.Error("Expected no nearest or richest cache")
	}
	if report.Density() != 0 || report.MeanCoins() != 0 {
		t.Error("Expected zero density and mean")
	}

	var out bytes.Buffer
	printReport(&out, config, report)
	if !strings.Contains(out.String(), "no cache spawns") {
		t.Errorf("Expected warning, got %s", out.String())
	}
}

func TestPrintReport_OutOfVision(t *testing.T) {
	config := testConfig()
	center := grid.Point{Lat: 16.5e-4, Lng: 7.5e-4} // cell 16,7, two rows from 14,7

	report := analyze(config, testOracle(), center, 2, 5)
	var out bytes.Buffer
	printReport(&out, config, report)

	text := out.String()
	if !strings.Contains(text, "Nearest cache: 14,7 with 3 coins, 2 cells away") {
		t.Errorf("Unexpected nearest line: %s", text)
	}
	if !strings.Contains(text, "outside vision radius 1") {
		t.Errorf("Expected vision warning: %s", text)
	}
}

func TestCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "field.yaml")
	content := "name: Field\ndescription: Test field\nspawn_probability: 1\nseed: field\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Run("config file", func(t *testing.T) {
		var out bytes.Buffer
		err := newCommand(&out).Run(context.Background(), []string{"analyze", "--config", path, "--radius", "1"})
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		text := out.String()
		if !strings.Contains(text, "=== Analyzing Field ===") {
			t.Errorf("Unexpected output: %s", text)
		}
		// spawn probability 1 fills all nine cells
		if !strings.Contains(text, "Caches: 9 (expected 9.0") {
			t.Errorf("Expected 9 caches: %s", text)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		var out bytes.Buffer
		err := newCommand(&out).Run(context.Background(), []string{
			"analyze", "--radius", "0", "--lat", "0.00005", "--lng", "0.00005", "--spawn", "1",
		})
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		if !strings.Contains(out.String(), "Center cell: 0,0") {
			t.Errorf("Expected center 0,0: %s", out.String())
		}
	})

	t.Run("bad radius", func(t *testing.T) {
		err := newCommand(&bytes.Buffer{}).Run(context.Background(), []string{"analyze", "--radius=-1"})
		if err == nil || !strings.Contains(err.Error(), "radius") {
			t.Errorf("Expected radius error, got %v", err)
		}
	})

	t.Run("missing config", func(t *testing.T) {
		err := newCommand(&bytes.Buffer{}).Run(context.Background(), []string{"analyze", "-c", filepath.Join(dir, "nope.json")})
		if err == nil || !strings.Contains(err.Error(), "load config") {
			t.Errorf("Expected load error, got %v", err)
		}
	})
}
