package ledger

// Inventory is the ordered set of coins held by the player
type Inventory struct {
	tokens []*Token
	last   *Token
}

// NewInventory creates an empty inventory
func NewInventory() *Inventory {
	return &Inventory{}
}

// Len returns the number of held coins
func (inv *Inventory) Len() int {
	return len(inv.tokens)
}

// Tokens returns a copy of the held coins in acquisition order
func (inv *Inventory) Tokens() []Token {
	out := make([]Token, len(inv.tokens))
	for i, t := range inv.tokens {
		out[i] = *t
	}
	return out
}

// First returns the oldest held coin
func (inv *Inventory) First() (Token, bool) {
	if len(inv.tokens) == 0 {
		return Token{}, false
	}
	return *inv.tokens[0], true
}

// Last returns the coin most recently grabbed or donated
func (inv *Inventory) Last() (Token, bool) {
	if inv.last == nil {
		return Token{}, false
	}
	return *inv.last, true
}

// Contains reports whether the coin is held
func (inv *Inventory) Contains(id TokenID) bool {
	return inv.indexOf(id) >= 0
}

func (inv *Inventory) indexOf(id TokenID) int {
	for i, t := range inv.tokens {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (inv *Inventory) push(t *Token) {
	inv.tokens = append(inv.tokens, t)
	inv.last = t
}

func (inv *Inventory) removeAt(i int) *Token {
	t := inv.tokens[i]
	inv.tokens = append(inv.tokens[:i], inv.tokens[i+1:]...)
	inv.last = t
	return t
}

func (inv *Inventory) reset() {
	inv.tokens = nil
	inv.last = nil
}
