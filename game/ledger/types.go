package ledger

import (
	"errors"
	"fmt"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
)

var (
	ErrEmptyCache       = errors.New("cache is empty")
	ErrNotMaterialized  = errors.New("cache is not materialized")
	ErrMalformedMemento = errors.New("malformed memento")
	ErrEmptyInventory   = errors.New("inventory is empty")
	ErrTokenNotHeld     = errors.New("token is not in the inventory")
	ErrDuplicateToken   = errors.New("duplicate token")
	ErrConservation     = errors.New("token conservation violated")
)

// InitialValueScale bounds the initial coin count of a cache to [0, InitialValueScale)
const InitialValueScale = 100

// State is the lifecycle state of a cache cell
type State int

const (
	Unseen State = iota
	Materialized
	Archived
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Materialized:
		return "materialized"
	case Archived:
		return "archived"
	default:
		return "unseen"
	}
}

// TokenID identifies a coin by its origin cell and serial
type TokenID struct {
	Row    int `json:"i"`
	Col    int `json:"j"`
	Serial int `json:"serial"`
}

// Origin returns the cell the coin was minted at
func (id TokenID) Origin() grid.Cell {
	return grid.Cell{Row: id.Row, Col: id.Col}
}

// String formats the ID as "row:col#serial"
func (id TokenID) String() string {
	return fmt.Sprintf("%d:%d#%d", id.Row, id.Col, id.Serial)
}

// before orders coins for grab selection: serial, then origin row, then origin col
func (id TokenID) before(other TokenID) bool {
	if id.Serial != other.Serial {
		return id.Serial < other.Serial
	}
	if id.Row != other.Row {
		return id.Row < other.Row
	}
	return id.Col < other.Col
}

// Token is a coin and its current location
type Token struct {
	ID       TokenID   `json:"id"`
	Location grid.Cell `json:"location"`
	Held     bool      `json:"held"`
}

// Cache is the live record of a materialized cache
type Cache struct {
	Cell  grid.Cell `json:"cell"`
	Count int       `json:"count"`
}

// Memento is the snapshot that reconstructs an archived cache
type Memento struct {
	Row   int `json:"i"`
	Col   int `json:"j"`
	Count int `json:"numCoins"`
}

// Cell returns the memento's cell
func (m Memento) Cell() grid.Cell {
	return grid.Cell{Row: m.Row, Col: m.Col}
}
