package smartcharging

import (
	"errors"
	"fmt"
)

// ErrInvalidConnector is returned for negative connector ids.
var ErrInvalidConnector = errors.New("connector id must not be negative")

// ErrUnknownConnector is returned for connector ids the charge point does
// not have.
var ErrUnknownConnector = errors.New("unknown connector")

// ConfigError reports an unusable engine parameter such as a non-positive
// ceiling. It is returned before any computation takes place.
type ConfigError struct {
	Field string
	Value float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v (must be positive)", e.Field, e.Value)
}

// CheckCeiling returns a ConfigError unless v is a positive finite number.
func CheckCeiling(field string, v float64) error {
	if !(v > 0) || v != v || v > maxCeiling {
		return &ConfigError{Field: field, Value: v}
	}
	return nil
}

const maxCeiling = 1e12
