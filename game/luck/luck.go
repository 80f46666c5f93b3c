package luck

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strings"
)

// DefaultSeed is used when a game config does not name a seed
const DefaultSeed = "geocoins"

// Oracle maps a key to a deterministic float in [0,1)
type Oracle interface {
	Luck(key string) float64
}

// Func adapts an ordinary function to the Oracle interface
type Func func(key string) float64

// Luck calls f(key)
func (f Func) Luck(key string) float64 {
	return f(key)
}

// HMAC derives values from HMAC-SHA256(seed, key)
type HMAC struct {
	seed []byte
}

// NewHMAC creates an HMAC oracle for the given seed
func NewHMAC(seed string) *HMAC {
	if seed == "" {
		seed = DefaultSeed
	}
	return &HMAC{seed: []byte(seed)}
}

// Luck returns the value for key
func (o *HMAC) Luck(key string) float64 {
	h := hmac.New(sha256.New, o.seed)
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return bytesToFloat([4]byte{sum[0], sum[1], sum[2], sum[3]})
}

// bytesToFloat folds 4 bytes into [0,1) as b0/256 + b1/256^2 + b2/256^3 + b3/256^4
func bytesToFloat(b [4]byte) float64 {
	result := 0.0
	divider := 1.0
	for _, v := range b {
		divider *= 256
		result += float64(v) / divider
	}
	return result
}

// Table returns fixed values for known keys and Fallback for everything else
type Table struct {
	Values   map[string]float64
	Fallback float64
}

// NewTable creates a table oracle
func NewTable(values map[string]float64, fallback float64) *Table {
	if values == nil {
		values = make(map[string]float64)
	}
	return &Table{Values: values, Fallback: fallback}
}

// Set records a value for key
func (t *Table) Set(key string, value float64) *Table {
	t.Values[key] = value
	return t
}

// Luck returns the table value for key, or the fallback
func (t *Table) Luck(key string) float64 {
	if v, ok := t.Values[key]; ok {
		return v
	}
	return t.Fallback
}

// Key joins parts with commas
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ",")
}
