// Package grid maps geographic points onto a fixed square grid.
//
// The grid is defined by a single tile size in degrees. A point (lat, lng)
// falls into the cell (floor(lat/tile), floor(lng/tile)); a cell covers the
// half-open rectangle [row*tile, (row+1)*tile) x [col*tile, (col+1)*tile).
//
// Index is a flyweight registry: every (row, col) pair has exactly one
// canonical *Cell for the lifetime of the Index, so callers may compare
// handles as well as values. The registry only grows.
//
// Usage:
//
//	index := grid.NewIndex(1e-4)
//	here := index.CellFor(grid.Point{Lat: 36.9895, Lng: -122.0628})
//	bounds := index.BoundsOf(*here)
//	visible := index.Neighborhood(grid.Point{Lat: 36.9895, Lng: -122.0628}, 8)
package grid
