package grid

import "fmt"

// Point is a geographic position in degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Cell identifies one grid square
type Cell struct {
	Row int `json:"i"`
	Col int `json:"j"`
}

// String formats the cell as "row,col"
func (c Cell) String() string {
	return fmt.Sprintf("%d,%d", c.Row, c.Col)
}

// Offset returns the cell dr rows and dc columns away
func (c Cell) Offset(dr, dc int) Cell {
	return Cell{Row: c.Row + dr, Col: c.Col + dc}
}

// ChebyshevDistance returns max(|dRow|, |dCol|) between two cells
func ChebyshevDistance(a, b Cell) int {
	dr := a.Row - b.Row
	if dr < 0 {
		dr = -dr
	}
	dc := a.Col - b.Col
	if dc < 0 {
		dc = -dc
	}
	if dr > dc {
		return dr
	}
	return dc
}

// Rect is a lat/lng bounding box; South/West inclusive, North/East exclusive
type Rect struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Contains reports whether p lies inside the half-open rectangle
func (r Rect) Contains(p Point) bool {
	return p.Lat >= r.South && p.Lat < r.North && p.Lng >= r.West && p.Lng < r.East
}
