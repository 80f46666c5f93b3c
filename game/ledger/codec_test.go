package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
)

func TestDecodeMementos(t *testing.T) {
	t.Run("skips record missing numCoins", func(t *testing.T) {
		data := []byte(`[{"i":1,"j":2,"numCoins":3},{"i":4,"j":5},{"i":6,"j":7,"numCoins":8}]`)
		ms, errs := DecodeMementos(data)
		if len(errs) != 1 {
			t.Fatalf("expected 1 error, got %v", errs)
		}
		if !errors.Is(errs[0], ErrMalformedMemento) {
			t.Errorf("expected ErrMalformedMemento, got %v", errs[0])
		}
		if len(ms) != 2 {
			t.Fatalf("expected 2 mementos, got %d", len(ms))
		}
		if ms[0] != (Memento{Row: 1, Col: 2, Count: 3}) || ms[1] != (Memento{Row: 6, Col: 7, Count: 8}) {
			t.Errorf("unexpected mementos %v", ms)
		}
	})

	t.Run("legacy stringified records", func(t *testing.T) {
		data := []byte(`["{\"i\":369894,\"j\":-1220628,\"numCoins\":12}"]`)
		ms, errs := DecodeMementos(data)
		if len(errs) != 0 {
			t.Fatalf("unexpected errors %v", errs)
		}
		want := Memento{Row: 369894, Col: -1220628, Count: 12}
		if len(ms) != 1 || ms[0] != want {
			t.Errorf("expected %v, got %v", want, ms)
		}
	})

	t.Run("numeric strings coerced", func(t *testing.T) {
		ms, errs := DecodeMementos([]byte(`[{"i":"-3","j":"4","numCoins":"10"}]`))
		if len(errs) != 0 {
			t.Fatalf("unexpected errors %v", errs)
		}
		if ms[0] != (Memento{Row: -3, Col: 4, Count: 10}) {
			t.Errorf("unexpected memento %v", ms[0])
		}
	})

	tests := []struct {
		name   string
		record string
	}{
		{"non numeric", `{"i":"north","j":1,"numCoins":1}`},
		{"null field", `{"i":1,"j":null,"numCoins":1}`},
		{"boolean field", `{"i":1,"j":2,"numCoins":true}`},
		{"negative count", `{"i":1,"j":2,"numCoins":-1}`},
		{"fractional index", `{"i":1.9,"j":2,"numCoins":3}`},
		{"fractional count", `{"i":1,"j":2,"numCoins":3.7}`},
		{"fractional string", `{"i":"1.5","j":2,"numCoins":3}`},
		{"not an object", `[1,2,3]`},
		{"broken legacy string", `"{\"i\":1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, errs := DecodeMementos([]byte("[" + tt.record + "]"))
			if len(ms) != 0 {
				t.Errorf("expected no mementos, got %v", ms)
			}
			if len(errs) != 1 || !errors.Is(errs[0], ErrMalformedMemento) {
				t.Errorf("expected one ErrMalformedMemento, got %v", errs)
			}
		})
	}

	t.Run("not an array", func(t *testing.T) {
		_, errs := DecodeMementos([]byte(`{"i":1}`))
		if len(errs) != 1 || !errors.Is(errs[0], ErrMalformedMemento) {
			t.Errorf("expected ErrMalformedMemento, got %v", errs)
		}
	})

	t.Run("empty", func(t *testing.T) {
		ms, errs := DecodeMementos(nil)
		if ms != nil || errs != nil {
			t.Errorf("expected nothing, got %v %v", ms, errs)
		}
	})
}

func TestEncodeMementos(t *testing.T) {
	data, err := EncodeMementos(nil)
	if err != nil || string(data) != "[]" {
		t.Errorf("expected [], got %s (%v)", data, err)
	}
	data, _ = EncodeMementos([]Memento{{Row: 1, Col: -2, Count: 3}})
	if string(data) != `[{"i":1,"j":-2,"numCoins":3}]` {
		t.Errorf("unexpected encoding %s", data)
	}
}

func TestTokenCodec(t *testing.T) {
	tokens := []Token{
		{ID: TokenID{Row: 1, Col: 2, Serial: 0}, Location: grid.Cell{Row: 1, Col: 2}},
		{ID: TokenID{Row: 1, Col: 2, Serial: 1}, Location: grid.Cell{Row: 9, Col: -9}},
	}
	data, err := EncodeTokens(tokens)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"currentI":9`) {
		t.Errorf("expected current location in %s", data)
	}

	got, errs := DecodeTokens(data)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	for i := range tokens {
		if got[i] != tokens[i] {
			t.Errorf("token %d: expected %+v, got %+v", i, tokens[i], got[i])
		}
	}

	t.Run("missing location defaults to origin", func(t *testing.T) {
		got, _ := DecodeTokens([]byte(`[{"i":4,"j":5,"serial":2}]`))
		if got[0].Location != (grid.Cell{Row: 4, Col: 5}) {
			t.Errorf("expected origin location, got %s", got[0].Location)
		}
	})

	t.Run("bad record skipped", func(t *testing.T) {
		got, errs := DecodeTokens([]byte(`[{"i":"x"},{"i":1,"j":1,"serial":-1},{"i":1,"j":1,"serial":0}]`))
		if len(got) != 1 || len(errs) != 2 {
			t.Errorf("expected 1 token and 2 errors, got %v %v", got, errs)
		}
	})
}

func TestPointCodec(t *testing.T) {
	p := grid.Point{Lat: 36.98949379578401, Lng: -122.06277128548504}
	data, err := EncodePoint(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePoint(data)
	if err != nil || got != p {
		t.Errorf("expected %v, got %v (%v)", p, got, err)
	}
	if _, err := DecodePoint([]byte("nope")); err == nil {
		t.Error("expected error")
	}
}
