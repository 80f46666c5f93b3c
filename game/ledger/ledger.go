package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/luck"
)

// Ledger owns the materialized caches, the memento archive and the coin pool
type Ledger struct {
	oracle luck.Oracle

	live    map[grid.Cell]*Cache
	archive map[grid.Cell]Memento
	// pool holds the coins sitting at each cell, kept in grab order
	pool map[grid.Cell][]*Token
	// minted records how many coins each origin cell produced
	minted       map[grid.Cell]int
	instantiated int

	mu sync.Mutex
}

// New creates an empty ledger drawing initial values from oracle
func New(oracle luck.Oracle) *Ledger {
	if oracle == nil {
		oracle = luck.NewHMAC("")
	}
	return &Ledger{
		oracle:  oracle,
		live:    make(map[grid.Cell]*Cache),
		archive: make(map[grid.Cell]Memento),
		pool:    make(map[grid.Cell][]*Token),
		minted:  make(map[grid.Cell]int),
	}
}

// InitialValue returns the number of coins minted when cell first materializes
func InitialValue(oracle luck.Oracle, cell grid.Cell) int {
	n := int(math.Floor(oracle.Luck(luck.Key(cell.Row, cell.Col, "initialValue")) * InitialValueScale))
	if n < 0 {
		return 0
	}
	if n >= InitialValueScale {
		return InitialValueScale - 1
	}
	return n
}

// Materialize makes the cache at cell live. A cell with a memento comes back
// with its archived count; a fresh cell mints its coins. Calling it on a
// live cache returns the existing record.
func (l *Ledger) Materialize(cell grid.Cell) (*Cache, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.live[cell]; ok {
		return c, nil
	}

	if m, ok := l.archive[cell]; ok {
		if m.Count != len(l.pool[cell]) {
			return nil, fmt.Errorf("%w: cache %s archived with %d coins, %d present", ErrMalformedMemento, cell, m.Count, len(l.pool[cell]))
		}
	} else if _, done := l.minted[cell]; !done {
		l.mint(cell)
	}

	c := &Cache{Cell: cell, Count: len(l.pool[cell])}
	l.live[cell] = c
	return c, nil
}

func (l *Ledger) mint(cell grid.Cell) {
	n := InitialValue(l.oracle, cell)
	for serial := 0; serial < n; serial++ {
		l.insert(cell, &Token{
			ID:       TokenID{Row: cell.Row, Col: cell.Col, Serial: serial},
			Location: cell,
		})
	}
	l.minted[cell] = n
	l.instantiated += n
}

// Archive writes the memento for a live cache and drops it from the
// materialized set. Unseen and archived cells are left alone.
func (l *Ledger) Archive(cell grid.Cell) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.live[cell]
	if !ok {
		return
	}
	l.archive[cell] = Memento{Row: cell.Row, Col: cell.Col, Count: c.Count}
	delete(l.live, cell)
}

// Grab moves the lowest ordered coin at cell into inv
func (l *Ledger) Grab(cell grid.Cell, inv *Inventory) (Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.live[cell]
	if !ok {
		return Token{}, fmt.Errorf("%w: cache %s", ErrNotMaterialized, cell)
	}
	coins := l.pool[cell]
	if c.Count == 0 || len(coins) == 0 {
		return Token{}, fmt.Errorf("%w: cache %s", ErrEmptyCache, cell)
	}

	t := coins[0]
	l.pool[cell] = coins[1:]
	if len(l.pool[cell]) == 0 {
		delete(l.pool, cell)
	}
	t.Held = true
	c.Count--
	inv.push(t)
	return *t, nil
}

// Donate moves the held coin id from inv into the cache at cell
func (l *Ledger) Donate(cell grid.Cell, inv *Inventory, id TokenID) (Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.live[cell]
	if !ok {
		return Token{}, fmt.Errorf("%w: cache %s", ErrNotMaterialized, cell)
	}
	if inv.Len() == 0 {
		return Token{}, ErrEmptyInventory
	}
	i := inv.indexOf(id)
	if i < 0 {
		return Token{}, fmt.Errorf("%w: %s", ErrTokenNotHeld, id)
	}

	t := inv.removeAt(i)
	t.Held = false
	t.Location = cell
	l.insert(cell, t)
	c.Count++
	return *t, nil
}

func (l *Ledger) insert(cell grid.Cell, t *Token) {
	coins := l.pool[cell]
	i := sort.Search(len(coins), func(k int) bool { return t.ID.before(coins[k].ID) })
	coins = append(coins, nil)
	copy(coins[i+1:], coins[i:])
	coins[i] = t
	l.pool[cell] = coins
}

// State returns the lifecycle state of the cache at cell
func (l *Ledger) State(cell grid.Cell) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked(cell)
}

func (l *Ledger) stateLocked(cell grid.Cell) State {
	if _, ok := l.live[cell]; ok {
		return Materialized
	}
	if _, ok := l.archive[cell]; ok {
		return Archived
	}
	return Unseen
}

// HasMemento reports whether cell has ever been archived
func (l *Ledger) HasMemento(cell grid.Cell) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.archive[cell]
	return ok
}

// Count returns the coin count of a live cache
func (l *Ledger) Count(cell grid.Cell) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.live[cell]
	if !ok {
		return 0, fmt.Errorf("%w: cache %s", ErrNotMaterialized, cell)
	}
	return c.Count, nil
}

// Coins returns the coins sitting at cell in grab order
func (l *Ledger) Coins(cell grid.Cell) []Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Token, len(l.pool[cell]))
	for i, t := range l.pool[cell] {
		out[i] = *t
	}
	return out
}

// Materialized returns copies of the live caches sorted by row then col
func (l *Ledger) Materialized() []Cache {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Cache, 0, len(l.live))
	for _, c := range l.live {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return cellLess(out[i].Cell, out[j].Cell) })
	return out
}

// Mementos returns one record per cache ever seen: archived caches as stored,
// live caches with their current count
func (l *Ledger) Mementos() []Memento {
	l.mu.Lock()
	defer l.mu.Unlock()

	byCell := make(map[grid.Cell]Memento, len(l.archive)+len(l.live))
	for cell, m := range l.archive {
		byCell[cell] = m
	}
	for cell, c := range l.live {
		byCell[cell] = Memento{Row: cell.Row, Col: cell.Col, Count: c.Count}
	}
	out := make([]Memento, 0, len(byCell))
	for _, m := range byCell {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return cellLess(out[i].Cell(), out[j].Cell()) })
	return out
}

// ActiveTokens returns every coin not held by the player
func (l *Ledger) ActiveTokens() []Token {
	l.mu.Lock()
	defer l.mu.Unlock()

	cells := make([]grid.Cell, 0, len(l.pool))
	for cell := range l.pool {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cellLess(cells[i], cells[j]) })

	var out []Token
	for _, cell := range cells {
		for _, t := range l.pool[cell] {
			out = append(out, *t)
		}
	}
	return out
}

// Instantiated returns the number of coins ever minted
func (l *Ledger) Instantiated() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.instantiated
}

// Audit checks that every minted coin is accounted for exactly once, either
// in a cache or in inv, and that every cache count matches its coins
func (l *Ledger) Audit(inv *Inventory) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	seen := make(map[TokenID]bool, l.instantiated)
	perOrigin := make(map[grid.Cell]int, len(l.minted))
	note := func(t *Token, where string) {
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("%w: coin %s appears twice (%s)", ErrConservation, t.ID, where))
			return
		}
		seen[t.ID] = true
		perOrigin[t.ID.Origin()]++
	}

	for cell, coins := range l.pool {
		for _, t := range coins {
			if t.Held || t.Location != cell {
				errs = append(errs, fmt.Errorf("%w: coin %s filed at %s but located at %s", ErrConservation, t.ID, cell, t.Location))
			}
			note(t, "cache "+cell.String())
		}
	}
	for _, t := range inv.tokens {
		if !t.Held {
			errs = append(errs, fmt.Errorf("%w: coin %s in inventory not marked held", ErrConservation, t.ID))
		}
		note(t, "inventory")
	}

	for cell, c := range l.live {
		if c.Count != len(l.pool[cell]) {
			errs = append(errs, fmt.Errorf("%w: cache %s counts %d, holds %d", ErrConservation, cell, c.Count, len(l.pool[cell])))
		}
	}
	for cell, m := range l.archive {
		if _, ok := l.live[cell]; ok {
			continue
		}
		if m.Count != len(l.pool[cell]) {
			errs = append(errs, fmt.Errorf("%w: memento %s counts %d, holds %d", ErrConservation, cell, m.Count, len(l.pool[cell])))
		}
	}
	for origin, n := range l.minted {
		if perOrigin[origin] != n {
			errs = append(errs, fmt.Errorf("%w: origin %s minted %d, found %d", ErrConservation, origin, n, perOrigin[origin]))
		}
	}
	if len(seen) != l.instantiated {
		errs = append(errs, fmt.Errorf("%w: %d coins instantiated, %d accounted for", ErrConservation, l.instantiated, len(seen)))
	}
	return errors.Join(errs...)
}

// Restore replaces the ledger and inventory contents with durable records.
// Coins in held go to inv in order; the rest are filed at their location.
// A memento whose cache lost coin records is refilled from serials that no
// record accounts for; coins that still cannot be placed are written off.
// Mint bookkeeping is rebuilt from the coins recovered, so Audit holds and
// no origin mints twice. Records that cannot be honored are reported.
func (l *Ledger) Restore(mementos []Memento, coins []Token, held []Token, inv *Inventory) []error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.live = make(map[grid.Cell]*Cache)
	l.archive = make(map[grid.Cell]Memento)
	l.pool = make(map[grid.Cell][]*Token)
	l.minted = make(map[grid.Cell]int)
	l.instantiated = 0
	inv.reset()

	var errs []error
	seen := make(map[TokenID]bool, len(coins)+len(held))
	claim := func(id TokenID) bool {
		if seen[id] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateToken, id))
			return false
		}
		seen[id] = true
		return true
	}

	for _, h := range held {
		if !claim(h.ID) {
			continue
		}
		t := &Token{ID: h.ID, Location: h.ID.Origin(), Held: true}
		if h.Location != (grid.Cell{}) {
			t.Location = h.Location
		}
		inv.tokens = append(inv.tokens, t)
	}
	if n := len(inv.tokens); n > 0 {
		inv.last = inv.tokens[n-1]
	}
	for _, c := range coins {
		if !claim(c.ID) {
			continue
		}
		l.insert(c.Location, &Token{ID: c.ID, Location: c.Location})
	}

	// Every origin that left a coin or a memento minted its initial value.
	// Serials below that value with no record anywhere are missing.
	expected := make(map[grid.Cell]int)
	for id := range seen {
		origin := id.Origin()
		expected[origin] = max(expected[origin], InitialValue(l.oracle, origin), id.Serial+1)
	}
	for _, m := range mementos {
		expected[m.Cell()] = max(expected[m.Cell()], InitialValue(l.oracle, m.Cell()))
	}
	origins := make([]grid.Cell, 0, len(expected))
	for origin := range expected {
		origins = append(origins, origin)
	}
	sort.Slice(origins, func(i, j int) bool { return cellLess(origins[i], origins[j]) })
	missing := make(map[grid.Cell][]int, len(origins))
	for _, origin := range origins {
		for serial := 0; serial < expected[origin]; serial++ {
			id := TokenID{Row: origin.Row, Col: origin.Col, Serial: serial}
			if !seen[id] {
				missing[origin] = append(missing[origin], serial)
			}
		}
	}

	// take hands out a missing coin, preferring cell's own origin
	take := func(cell grid.Cell) (TokenID, bool) {
		for _, origin := range append([]grid.Cell{cell}, origins...) {
			if serials := missing[origin]; len(serials) > 0 {
				missing[origin] = serials[1:]
				return TokenID{Row: origin.Row, Col: origin.Col, Serial: serials[0]}, true
			}
		}
		return TokenID{}, false
	}

	for _, m := range mementos {
		cell := m.Cell()
		if m.Count < len(l.pool[cell]) {
			errs = append(errs, fmt.Errorf("%w: cache %s records %d coins, %d present", ErrMalformedMemento, cell, m.Count, len(l.pool[cell])))
			continue
		}
		for len(l.pool[cell]) < m.Count {
			id, ok := take(cell)
			if !ok {
				break
			}
			seen[id] = true
			l.insert(cell, &Token{ID: id, Location: cell})
		}
		if m.Count != len(l.pool[cell]) {
			errs = append(errs, fmt.Errorf("%w: cache %s records %d coins, %d recoverable", ErrMalformedMemento, cell, m.Count, len(l.pool[cell])))
			continue
		}
		l.archive[cell] = m
	}

	// Coins nobody can account for are written off. The origin stays in
	// minted so it never mints again.
	for _, origin := range origins {
		if lost := len(missing[origin]); lost > 0 {
			errs = append(errs, fmt.Errorf("%w: origin %s lost %d coins", ErrMalformedMemento, origin, lost))
		}
		found := expected[origin] - len(missing[origin])
		l.minted[origin] = found
		l.instantiated += found
	}
	return errs
}

func cellLess(a, b grid.Cell) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}
