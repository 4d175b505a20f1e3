package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// UnlimitedWire is the wire representation of an unconstrained limit.
const UnlimitedWire = -1

// Limit is a charging rate limit (amps in the reference domain). The zero
// value is Unlimited.
type Limit struct {
	value   float64
	bounded bool
}

// Unlimited means no constraint beyond this point.
var Unlimited = Limit{}

// Bounded returns a limit constraining the rate to v.
func Bounded(v float64) Limit { return Limit{value: v, bounded: true} }

// LimitFromWire maps the wire value to a Limit. Only -1 denotes unlimited.
func LimitFromWire(v float64) Limit {
	if v == UnlimitedWire {
		return Unlimited
	}
	return Bounded(v)
}

// Value returns the bounded value and whether the limit is bounded.
func (l Limit) Value() (float64, bool) { return l.value, l.bounded }

// IsUnlimited reports whether l carries no constraint.
func (l Limit) IsUnlimited() bool { return !l.bounded }

// Or resolves the limit against a ceiling: unlimited becomes the ceiling.
func (l Limit) Or(ceiling float64) float64 {
	if !l.bounded {
		return ceiling
	}
	return l.value
}

// Wire returns the wire representation (-1 for unlimited).
func (l Limit) Wire() float64 {
	if !l.bounded {
		return UnlimitedWire
	}
	return l.value
}

func (l Limit) String() string {
	if !l.bounded {
		return "unlimited"
	}
	return strconv.FormatFloat(l.value, 'f', -1, 64)
}

// MarshalJSON encodes the limit using the wire convention.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.bounded && (math.IsNaN(l.value) || math.IsInf(l.value, 0)) {
		return nil, fmt.Errorf("limit %v is not a finite number", l.value)
	}
	return json.Marshal(l.Wire())
}

// UnmarshalJSON decodes a numeric wire limit.
func (l *Limit) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("limit must be numeric: %w", err)
	}
	*l = LimitFromWire(v)
	return nil
}
