package grid

import (
	"math"
	"sync"
)

// Index is the canonical cell registry for one tile size
type Index struct {
	tileSize float64
	cells    map[Cell]*Cell
	mu       sync.RWMutex
}

// NewIndex creates a registry for the given tile size in degrees
func NewIndex(tileSize float64) *Index {
	return &Index{
		tileSize: tileSize,
		cells:    make(map[Cell]*Cell),
	}
}

// TileSize returns the tile size in degrees
func (ix *Index) TileSize() float64 {
	return ix.tileSize
}

// CellFor returns the canonical cell containing p
func (ix *Index) CellFor(p Point) *Cell {
	row := int(math.Floor(p.Lat / ix.tileSize))
	col := int(math.Floor(p.Lng / ix.tileSize))
	return ix.Canonical(row, col)
}

// Canonical returns the registered handle for (row, col), creating it if absent
func (ix *Index) Canonical(row, col int) *Cell {
	key := Cell{Row: row, Col: col}

	ix.mu.RLock()
	cell, exists := ix.cells[key]
	ix.mu.RUnlock()
	if exists {
		return cell
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Double-check after acquiring write lock
	if cell, exists := ix.cells[key]; exists {
		return cell
	}
	cell = &Cell{Row: row, Col: col}
	ix.cells[key] = cell
	return cell
}

// BoundsOf returns the rectangle covered by c
func (ix *Index) BoundsOf(c Cell) Rect {
	return Rect{
		South: float64(c.Row) * ix.tileSize,
		West:  float64(c.Col) * ix.tileSize,
		North: float64(c.Row+1) * ix.tileSize,
		East:  float64(c.Col+1) * ix.tileSize,
	}
}

// CenterOf returns the midpoint of c
func (ix *Index) CenterOf(c Cell) Point {
	return Point{
		Lat: (float64(c.Row) + 0.5) * ix.tileSize,
		Lng: (float64(c.Col) + 0.5) * ix.tileSize,
	}
}

// Neighborhood returns every cell within radius grid steps (Chebyshev,
// inclusive) of the cell containing p, in row-major order
func (ix *Index) Neighborhood(p Point, radius int) []*Cell {
	if radius < 0 {
		radius = 0
	}
	center := ix.CellFor(p)
	side := 2*radius + 1

	cells := make([]*Cell, 0, side*side)
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			cells = append(cells, ix.Canonical(center.Row+dr, center.Col+dc))
		}
	}
	return cells
}

// Len returns the number of registered cells
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.cells)
}
