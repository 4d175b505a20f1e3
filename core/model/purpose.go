package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPurpose = errors.New("unknown charging profile purpose")
	ErrUnknownKind    = errors.New("unknown charging profile kind")
)

// Purpose identifies what a charging profile constrains.
type Purpose int

const (
	PurposeUnknown Purpose = iota
	// PurposeStationMax caps the whole charge point.
	PurposeStationMax
	// PurposeTxDefault is the fallback limit for transactions.
	PurposeTxDefault
	// PurposeTxOverride is the explicit limit of a running transaction.
	PurposeTxOverride
	// PurposeTx tags periods produced by merging TxDefault and TxOverride.
	// It never appears on the wire.
	PurposeTx
)

// Purposes lists the purposes a profile can be submitted with, in bucket order.
var Purposes = []Purpose{PurposeStationMax, PurposeTxDefault, PurposeTxOverride}

// String returns the OCPP 1.6 name of the purpose.
func (p Purpose) String() string {
	switch p {
	case PurposeStationMax:
		return "ChargePointMaxProfile"
	case PurposeTxDefault:
		return "TxDefaultProfile"
	case PurposeTxOverride:
		return "TxProfile"
	case PurposeTx:
		return "Tx"
	default:
		return "unknown"
	}
}

// ParsePurpose maps an OCPP purpose name to a Purpose.
func ParsePurpose(s string) (Purpose, error) {
	switch s {
	case "ChargePointMaxProfile":
		return PurposeStationMax, nil
	case "TxDefaultProfile":
		return PurposeTxDefault, nil
	case "TxProfile":
		return PurposeTxOverride, nil
	default:
		return PurposeUnknown, fmt.Errorf("%w: %q", ErrUnknownPurpose, s)
	}
}

// Submittable reports whether p may be carried by a profile.
func (p Purpose) Submittable() bool {
	return p == PurposeStationMax || p == PurposeTxDefault || p == PurposeTxOverride
}

func (p Purpose) MarshalText() ([]byte, error) {
	if !p.Submittable() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPurpose, int(p))
	}
	return []byte(p.String()), nil
}

func (p *Purpose) UnmarshalText(b []byte) error {
	v, err := ParsePurpose(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Kind selects how a schedule is anchored in time.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAbsolute anchors the schedule at startSchedule.
	KindAbsolute
	// KindRecurring anchors the schedule at the time of day of startSchedule.
	KindRecurring
	// KindRelative anchors the schedule at the moment of evaluation.
	KindRelative
)

func (k Kind) String() string {
	switch k {
	case KindAbsolute:
		return "Absolute"
	case KindRecurring:
		return "Recurring"
	case KindRelative:
		return "Relative"
	default:
		return "unknown"
	}
}

// ParseKind maps an OCPP kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "Absolute":
		return KindAbsolute, nil
	case "Recurring":
		return KindRecurring, nil
	case "Relative":
		return KindRelative, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Anchored reports whether the kind needs a startSchedule.
func (k Kind) Anchored() bool { return k == KindAbsolute || k == KindRecurring }

func (k Kind) MarshalText() ([]byte, error) {
	if k == KindUnknown || k > KindRelative {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
