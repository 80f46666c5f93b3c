package ledger

import (
	"errors"
	"testing"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/luck"
)

func scenarioLedger() *Ledger {
	table := luck.NewTable(nil, 0).
		Set("12,7,initialValue", 0.42).
		Set("0,0,initialValue", 0.03).
		Set("5,5,initialValue", 0.0)
	return New(table)
}

func mustAudit(t *testing.T, l *Ledger, inv *Inventory) {
	t.Helper()
	if err := l.Audit(inv); err != nil {
		t.Fatalf("audit failed: %v", err)
	}
}

func TestScenarioGrabArchiveDonate(t *testing.T) {
	l := scenarioLedger()
	inv := NewInventory()
	cell := grid.Cell{Row: 12, Col: 7}

	c, err := l.Materialize(cell)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if c.Count != 42 {
		t.Fatalf("expected 42 coins, got %d", c.Count)
	}

	for i := 0; i < 5; i++ {
		tok, err := l.Grab(cell, inv)
		if err != nil {
			t.Fatalf("grab %d: %v", i, err)
		}
		if tok.ID.Serial != i {
			t.Errorf("grab %d: expected serial %d, got %d", i, i, tok.ID.Serial)
		}
	}
	if inv.Len() != 5 {
		t.Errorf("expected inventory 5, got %d", inv.Len())
	}
	if n, _ := l.Count(cell); n != 37 {
		t.Errorf("expected 37 coins, got %d", n)
	}
	mustAudit(t, l, inv)

	l.Archive(cell)
	if l.State(cell) != Archived {
		t.Fatalf("expected archived, got %s", l.State(cell))
	}
	c, err = l.Materialize(cell)
	if err != nil {
		t.Fatalf("rematerialize: %v", err)
	}
	if c.Count != 37 {
		t.Errorf("expected 37 after rematerialize, got %d", c.Count)
	}

	first, _ := inv.First()
	if _, err := l.Donate(cell, inv, first.ID); err != nil {
		t.Fatalf("donate: %v", err)
	}
	if n, _ := l.Count(cell); n != 38 {
		t.Errorf("expected 38 coins, got %d", n)
	}
	if inv.Len() != 4 {
		t.Errorf("expected inventory 4, got %d", inv.Len())
	}
	last, ok := inv.Last()
	if !ok || last.ID != first.ID {
		t.Errorf("expected last token %s, got %s", first.ID, last.ID)
	}
	if l.Instantiated() != 42 {
		t.Errorf("expected 42 instantiated, got %d", l.Instantiated())
	}
	mustAudit(t, l, inv)
}

func TestGrabEmptyCache(t *testing.T) {
	l := scenarioLedger()
	inv := NewInventory()
	cell := grid.Cell{Row: 5, Col: 5}

	if _, err := l.Materialize(cell); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	before := l.Mementos()

	_, err := l.Grab(cell, inv)
	if !errors.Is(err, ErrEmptyCache) {
		t.Fatalf("expected ErrEmptyCache, got %v", err)
	}
	if inv.Len() != 0 {
		t.Errorf("inventory changed: %d", inv.Len())
	}
	after := l.Mementos()
	if len(before) != len(after) || before[0] != after[0] {
		t.Errorf("ledger changed: %v -> %v", before, after)
	}
	mustAudit(t, l, inv)
}

func TestNotMaterialized(t *testing.T) {
	l := scenarioLedger()
	inv := NewInventory()
	cell := grid.Cell{Row: 12, Col: 7}

	t.Run("grab unseen", func(t *testing.T) {
		if _, err := l.Grab(cell, inv); !errors.Is(err, ErrNotMaterialized) {
			t.Errorf("expected ErrNotMaterialized, got %v", err)
		}
	})

	l.Materialize(cell)
	tok, _ := l.Grab(cell, inv)
	l.Archive(cell)

	t.Run("donate archived", func(t *testing.T) {
		if _, err := l.Donate(cell, inv, tok.ID); !errors.Is(err, ErrNotMaterialized) {
			t.Errorf("expected ErrNotMaterialized, got %v", err)
		}
		if inv.Len() != 1 {
			t.Errorf("inventory changed: %d", inv.Len())
		}
	})

	t.Run("count archived", func(t *testing.T) {
		if _, err := l.Count(cell); !errors.Is(err, ErrNotMaterialized) {
			t.Errorf("expected ErrNotMaterialized, got %v", err)
		}
	})
}

func TestDonateErrors(t *testing.T) {
	l := scenarioLedger()
	inv := NewInventory()
	cell := grid.Cell{Row: 0, Col: 0}
	l.Materialize(cell)

	t.Run("empty inventory", func(t *testing.T) {
		_, err := l.Donate(cell, inv, TokenID{})
		if !errors.Is(err, ErrEmptyInventory) {
			t.Errorf("expected ErrEmptyInventory, got %v", err)
		}
	})

	t.Run("token not held", func(t *testing.T) {
		l.Grab(cell, inv)
		_, err := l.Donate(cell, inv, TokenID{Row: 9, Col: 9, Serial: 9})
		if !errors.Is(err, ErrTokenNotHeld) {
			t.Errorf("expected ErrTokenNotHeld, got %v", err)
		}
	})
	mustAudit(t, l, inv)
}

func TestMaterializeIdempotent(t *testing.T) {
	l := scenarioLedger()
	cell := grid.Cell{Row: 12, Col: 7}

	first, _ := l.Materialize(cell)
	second, _ := l.Materialize(cell)
	if first != second {
		t.Error("expected the same cache record")
	}
	if second.Count != 42 {
		t.Errorf("expected 42, got %d", second.Count)
	}
	if l.Instantiated() != 42 {
		t.Errorf("tokens duplicated: %d instantiated", l.Instantiated())
	}
	if got := len(l.Coins(cell)); got != 42 {
		t.Errorf("expected 42 coins at cell, got %d", got)
	}
}

func TestArchiveNoOp(t *testing.T) {
	l := scenarioLedger()
	cell := grid.Cell{Row: 12, Col: 7}

	l.Archive(cell)
	if l.State(cell) != Unseen {
		t.Errorf("expected unseen, got %s", l.State(cell))
	}
	if l.HasMemento(cell) {
		t.Error("archive of unseen cell wrote a memento")
	}

	l.Materialize(cell)
	l.Archive(cell)
	l.Archive(cell)
	if ms := l.Mementos(); len(ms) != 1 || ms[0].Count != 42 {
		t.Errorf("unexpected mementos %v", ms)
	}
}

func TestMementoRoundTripHighCount(t *testing.T) {
	l := New(luck.NewHMAC("round-trip"))
	inv := NewInventory()

	for row := 0; row < 20; row++ {
		cell := grid.Cell{Row: row, Col: row * 3}
		c, err := l.Materialize(cell)
		if err != nil {
			t.Fatalf("materialize %s: %v", cell, err)
		}
		for i := 0; i < row && c.Count > 0; i++ {
			l.Grab(cell, inv)
		}
		want := c.Count
		l.Archive(cell)
		c, _ = l.Materialize(cell)
		if c.Count != want {
			t.Errorf("cell %s: expected %d after round trip, got %d", cell, want, c.Count)
		}
	}
	mustAudit(t, l, inv)
}

func TestConservationRandomWalk(t *testing.T) {
	l := New(luck.NewHMAC("conservation"))
	inv := NewInventory()
	cells := []grid.Cell{{Row: 1, Col: 1}, {Row: 1, Col: 2}, {Row: -4, Col: 8}, {Row: 30, Col: -2}}

	// deterministic op sequence driven by the oracle itself
	walker := luck.NewHMAC("walker")
	for step := 0; step < 500; step++ {
		r := walker.Luck(luck.Key(step))
		cell := cells[int(r*1000)%len(cells)]
		switch int(r*10000) % 4 {
		case 0:
			l.Materialize(cell)
		case 1:
			l.Archive(cell)
		case 2:
			l.Grab(cell, inv)
		case 3:
			if tok, ok := inv.First(); ok {
				l.Donate(cell, inv, tok.ID)
			}
		}

		total := inv.Len()
		for _, c := range l.Materialized() {
			total += c.Count
		}
		for _, m := range l.Mementos() {
			if l.State(m.Cell()) == Archived {
				total += m.Count
			}
		}
		if total != l.Instantiated() {
			t.Fatalf("step %d: %d coins accounted for, %d instantiated", step, total, l.Instantiated())
		}
	}
	mustAudit(t, l, inv)
}

func TestGrabOrderAfterDonate(t *testing.T) {
	l := New(luck.NewTable(nil, 0).Set("1,1,initialValue", 0.02).Set("2,2,initialValue", 0.02))
	inv := NewInventory()
	a := grid.Cell{Row: 1, Col: 1}
	b := grid.Cell{Row: 2, Col: 2}
	l.Materialize(a)
	l.Materialize(b)

	// take both coins from b and drop b#0 into a
	t0, _ := l.Grab(b, inv)
	l.Grab(b, inv)
	l.Donate(a, inv, t0.ID)

	coins := l.Coins(a)
	want := []TokenID{{1, 1, 0}, {2, 2, 0}, {1, 1, 1}}
	if len(coins) != len(want) {
		t.Fatalf("expected %d coins, got %d", len(want), len(coins))
	}
	for i, w := range want {
		if coins[i].ID != w {
			t.Errorf("position %d: expected %s, got %s", i, w, coins[i].ID)
		}
	}
}

func TestRestore(t *testing.T) {
	src := scenarioLedger()
	inv := NewInventory()
	cell := grid.Cell{Row: 12, Col: 7}
	other := grid.Cell{Row: 0, Col: 0}
	src.Materialize(cell)
	src.Materialize(other)
	for i := 0; i < 3; i++ {
		src.Grab(cell, inv)
	}
	first, _ := inv.First()
	src.Donate(other, inv, first.ID)
	src.Archive(cell)

	dst := scenarioLedger()
	restored := NewInventory()
	errs := dst.Restore(src.Mementos(), src.ActiveTokens(), inv.Tokens(), restored)
	if len(errs) != 0 {
		t.Fatalf("unexpected restore errors: %v", errs)
	}
	if restored.Len() != 2 {
		t.Errorf("expected 2 held, got %d", restored.Len())
	}
	if dst.State(cell) != Archived || dst.State(other) != Archived {
		t.Errorf("expected both cells archived, got %s and %s", dst.State(cell), dst.State(other))
	}
	c, err := dst.Materialize(cell)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if c.Count != 39 {
		t.Errorf("expected 39, got %d", c.Count)
	}
	c, _ = dst.Materialize(other)
	if c.Count != 4 {
		t.Errorf("expected 4, got %d", c.Count)
	}
	if dst.Instantiated() != 45 {
		t.Errorf("expected 45 instantiated, got %d", dst.Instantiated())
	}
	mustAudit(t, dst, restored)

	t.Run("no serial reissued", func(t *testing.T) {
		// memento for other dropped, tokens remain: rematerializing must not mint again
		fresh := scenarioLedger()
		freshInv := NewInventory()
		fresh.Restore(nil, src.ActiveTokens(), inv.Tokens(), freshInv)
		c, _ := fresh.Materialize(other)
		if c.Count != 4 {
			t.Errorf("expected 4 coins from existing tokens, got %d", c.Count)
		}
		mustAudit(t, fresh, freshInv)
	})
}

func TestRestoreRejectsBadRecords(t *testing.T) {
	l := scenarioLedger()
	inv := NewInventory()
	coins := []Token{
		{ID: TokenID{Row: 0, Col: 0, Serial: 0}, Location: grid.Cell{Row: 0, Col: 0}},
		{ID: TokenID{Row: 0, Col: 0, Serial: 0}, Location: grid.Cell{Row: 0, Col: 0}},
	}
	held := []Token{{ID: TokenID{Row: 0, Col: 0, Serial: 1}}}
	mementos := []Memento{
		{Row: 0, Col: 0, Count: 7},
		{Row: 3, Col: 3, Count: 0},
	}

	errs := l.Restore(mementos, coins, held, inv)
	var dup, bad int
	for _, err := range errs {
		switch {
		case errors.Is(err, ErrDuplicateToken):
			dup++
		case errors.Is(err, ErrMalformedMemento):
			bad++
		}
	}
	if dup != 1 || bad != 1 {
		t.Errorf("expected 1 duplicate and 1 malformed, got %d and %d: %v", dup, bad, errs)
	}
	if l.State(grid.Cell{Row: 3, Col: 3}) != Archived {
		t.Error("valid memento was not restored")
	}
	if l.State(grid.Cell{Row: 0, Col: 0}) != Unseen {
		t.Error("malformed memento was restored")
	}
}

func TestRestoreWithoutCoinRecords(t *testing.T) {
	cell := grid.Cell{Row: 12, Col: 7}
	src := scenarioLedger()
	inv := NewInventory()
	src.Materialize(cell)
	for i := 0; i < 5; i++ {
		src.Grab(cell, inv)
	}

	t.Run("memento refilled", func(t *testing.T) {
		dst := scenarioLedger()
		restored := NewInventory()
		if errs := dst.Restore(src.Mementos(), nil, inv.Tokens(), restored); len(errs) != 0 {
			t.Fatalf("unexpected restore errors: %v", errs)
		}
		c, err := dst.Materialize(cell)
		if err != nil {
			t.Fatalf("materialize: %v", err)
		}
		if c.Count != 37 {
			t.Errorf("expected 37, got %d", c.Count)
		}
		if dst.Instantiated() != 42 {
			t.Errorf("expected 42 instantiated, got %d", dst.Instantiated())
		}
		mustAudit(t, dst, restored)
	})

	t.Run("unrecoverable coins written off", func(t *testing.T) {
		dst := scenarioLedger()
		restored := NewInventory()
		errs := dst.Restore(nil, nil, inv.Tokens(), restored)
		if len(errs) != 1 || !errors.Is(errs[0], ErrMalformedMemento) {
			t.Fatalf("expected one write-off error, got %v", errs)
		}
		c, _ := dst.Materialize(cell)
		if c.Count != 0 {
			t.Errorf("expected no coins minted again, got %d", c.Count)
		}
		if dst.Instantiated() != 5 {
			t.Errorf("expected 5 instantiated, got %d", dst.Instantiated())
		}
		mustAudit(t, dst, restored)
	})
}

func TestStateString(t *testing.T) {
	tests := map[State]string{Unseen: "unseen", Materialized: "materialized", Archived: "archived"}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
}
