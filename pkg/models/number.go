package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric payload field that accepts JSON numbers as well as
// numeric strings ("25.4"). Dashboard forms submit both.
type Number struct {
	Value float64
	Set   bool
}

// NewNumber returns a set Number
func NewNumber(v float64) *Number {
	return &Number{Value: v, Set: true}
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return n.parseString(s)
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil || !finite(f) {
		return fmt.Errorf("not a number: %s", string(data))
	}
	n.Value = f
	n.Set = true
	return nil
}

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Number) parseString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*n = Number{}
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || !finite(f) {
		return fmt.Errorf("not a number: %q", s)
	}
	n.Value = f
	n.Set = true
	return nil
}

// finite rejects NaN and infinities, which ParseFloat accepts but JSON cannot encode
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ParseNumber parses a form value into a Number
func ParseNumber(s string) (*Number, error) {
	n := &Number{}
	if err := n.parseString(s); err != nil {
		return nil, err
	}
	if !n.Set {
		return nil, nil
	}
	return n, nil
}

// Float returns the value or 0 when unset
func (n *Number) Float() float64 {
	if n == nil || !n.Set {
		return 0
	}
	return n.Value
}

// Int returns the value truncated towards zero, or 0 when unset
func (n *Number) Int() int {
	return int(n.Float())
}

// IsSet reports whether the field was present in the payload
func (n *Number) IsSet() bool {
	return n != nil && n.Set
}
