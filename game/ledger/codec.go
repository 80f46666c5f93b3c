package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/geocoins/game/grid"
)

const mementoSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["i", "j", "numCoins"],
	"properties": {
		"i":        {"$ref": "#/definitions/integral"},
		"j":        {"$ref": "#/definitions/integral"},
		"numCoins": {"$ref": "#/definitions/integral"}
	},
	"definitions": {
		"integral": {
			"oneOf": [
				{"type": "integer"},
				{"type": "string", "pattern": "^-?(0|[1-9][0-9]*)$"}
			]
		}
	}
}`

var mementoSchema = jsonschema.MustCompileString("memento.schema.json", mementoSchemaJSON)

// tokenRecord is the stored shape of a coin
type tokenRecord struct {
	Row      int  `json:"i"`
	Col      int  `json:"j"`
	Serial   int  `json:"serial"`
	CurrentI *int `json:"currentI,omitempty"`
	CurrentJ *int `json:"currentJ,omitempty"`
}

// EncodeMementos renders mementos as a JSON array of {i, j, numCoins}
func EncodeMementos(ms []Memento) ([]byte, error) {
	if ms == nil {
		ms = []Memento{}
	}
	return json.Marshal(ms)
}

// DecodeMementos parses a JSON array of memento records. Each element may be
// an object or a JSON string holding one. Records that fail validation are
// reported as ErrMalformedMemento and skipped; the rest are returned.
func DecodeMementos(data []byte) ([]Memento, []error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []error{fmt.Errorf("%w: %v", ErrMalformedMemento, err)}
	}

	out := make([]Memento, 0, len(raw))
	var errs []error
	for idx, r := range raw {
		m, err := DecodeMemento(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", idx, err))
			continue
		}
		out = append(out, m)
	}
	return out, errs
}

// DecodeMemento parses a single memento record
func DecodeMemento(data []byte) (Memento, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Memento{}, fmt.Errorf("%w: %v", ErrMalformedMemento, err)
	}
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return Memento{}, fmt.Errorf("%w: %v", ErrMalformedMemento, err)
		}
	}
	if err := mementoSchema.Validate(v); err != nil {
		return Memento{}, fmt.Errorf("%w: %v", ErrMalformedMemento, err)
	}

	fields := v.(map[string]any)
	var m Memento
	var err error
	if m.Row, err = cast.ToIntE(fields["i"]); err != nil {
		return Memento{}, fmt.Errorf("%w: i: %v", ErrMalformedMemento, err)
	}
	if m.Col, err = cast.ToIntE(fields["j"]); err != nil {
		return Memento{}, fmt.Errorf("%w: j: %v", ErrMalformedMemento, err)
	}
	if m.Count, err = cast.ToIntE(fields["numCoins"]); err != nil {
		return Memento{}, fmt.Errorf("%w: numCoins: %v", ErrMalformedMemento, err)
	}
	if m.Count < 0 {
		return Memento{}, fmt.Errorf("%w: negative numCoins %d", ErrMalformedMemento, m.Count)
	}
	return m, nil
}

// EncodeTokens renders coins as {i, j, serial, currentI, currentJ} records
func EncodeTokens(tokens []Token) ([]byte, error) {
	records := make([]tokenRecord, len(tokens))
	for k, t := range tokens {
		row, col := t.Location.Row, t.Location.Col
		records[k] = tokenRecord{
			Row:      t.ID.Row,
			Col:      t.ID.Col,
			Serial:   t.ID.Serial,
			CurrentI: &row,
			CurrentJ: &col,
		}
	}
	return json.Marshal(records)
}

// DecodeTokens parses coin records. A record without a current location is
// placed at its origin. Unreadable records are skipped and reported.
func DecodeTokens(data []byte) ([]Token, []error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []error{fmt.Errorf("decode coins: %w", err)}
	}

	out := make([]Token, 0, len(raw))
	var errs []error
	for idx, r := range raw {
		var rec tokenRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			errs = append(errs, fmt.Errorf("coin record %d: %w", idx, err))
			continue
		}
		if rec.Serial < 0 {
			errs = append(errs, fmt.Errorf("coin record %d: negative serial %d", idx, rec.Serial))
			continue
		}
		id := TokenID{Row: rec.Row, Col: rec.Col, Serial: rec.Serial}
		loc := id.Origin()
		if rec.CurrentI != nil && rec.CurrentJ != nil {
			loc = grid.Cell{Row: *rec.CurrentI, Col: *rec.CurrentJ}
		}
		out = append(out, Token{ID: id, Location: loc})
	}
	return out, errs
}

// EncodePoint renders a position as {lat, lng}
func EncodePoint(p grid.Point) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePoint parses a {lat, lng} position
func DecodePoint(data []byte) (grid.Point, error) {
	var p grid.Point
	if err := json.Unmarshal(data, &p); err != nil {
		return grid.Point{}, fmt.Errorf("decode position: %w", err)
	}
	return p, nil
}
