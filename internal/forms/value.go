package forms

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a field's current content. Exactly one of the members is
// meaningful, chosen by the owning field's Kind: Text for text/choice/digits,
// List for multi_choice, Flag for bool.
type Value struct {
	Text string   `json:"text,omitempty"`
	List []string `json:"list,omitempty"`
	Flag bool     `json:"flag,omitempty"`
}

// TextValue builds a text value.
func TextValue(s string) Value { return Value{Text: s} }

// ListValue builds a multi-choice value.
func ListValue(items ...string) Value { return Value{List: items} }

// BoolValue builds a boolean value.
func BoolValue(b bool) Value { return Value{Flag: b} }

// IsEmpty reports whether the value counts as absent for the given kind.
// Whitespace-only text is empty; an unchecked bool is empty.
func (v Value) IsEmpty(kind Kind) bool {
	switch kind {
	case KindMultiChoice:
		return len(v.List) == 0
	case KindBool:
		return !v.Flag
	default:
		return strings.TrimSpace(v.Text) == ""
	}
}

// CoerceValue converts a decoded JSON value into a Value matching the field's
// kind. It accepts the shapes a client would naturally send: strings for
// text/choice/digits, string arrays for multi_choice, booleans for bool.
func CoerceValue(spec FieldSpec, raw json.RawMessage) (Value, error) {
	switch spec.Kind {
	case KindMultiChoice:
		var items []string
		if err := json.Unmarshal(raw, &items); err != nil {
			return Value{}, fmt.Errorf("field %s expects a string array: %w", spec.Name, err)
		}
		return Value{List: items}, nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, fmt.Errorf("field %s expects a boolean: %w", spec.Name, err)
		}
		return Value{Flag: b}, nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("field %s expects a string: %w", spec.Name, err)
		}
		return Value{Text: s}, nil
	}
}
