package cache

import (
	"fmt"
	"strings"
	"time"

	"floorpulse/pkg/labor"
)

// DateLayout is the canonical calendar-day form used in keys and records.
const DateLayout = "2006-01-02"

// PartitionKey addresses one cached batch: which warehouse, which day, which
// shift. Two keys are equal iff all three components are equal after
// normalization, so the struct is safe to use as a map key.
type PartitionKey struct {
	Warehouse string         `json:"warehouseId"`
	Date      string         `json:"date"` // normalized YYYY-MM-DD
	Shift     labor.ShiftTag `json:"shift"`
}

// NewKey builds a key from an already-formatted date string. The date must be
// exactly YYYY-MM-DD; anything else is rejected with ErrInvalidDate rather
// than guessed at.
func NewKey(warehouse, date string, shift labor.ShiftTag) (PartitionKey, error) {
	norm, err := NormalizeDate(date)
	if err != nil {
		return PartitionKey{}, err
	}
	if shift == "" {
		shift = labor.ShiftAll
	}
	if !shift.Valid() {
		return PartitionKey{}, fmt.Errorf("%w: shift %q", ErrInvalidDate, shift)
	}
	return PartitionKey{Warehouse: warehouse, Date: norm, Shift: shift}, nil
}

// KeyForTime builds a key from a time value, truncating to the calendar day.
func KeyForTime(warehouse string, t time.Time, shift labor.ShiftTag) PartitionKey {
	if shift == "" || !shift.Valid() {
		shift = labor.ShiftAll
	}
	return PartitionKey{Warehouse: warehouse, Date: t.Format(DateLayout), Shift: shift}
}

// NormalizeDate validates and canonicalizes a YYYY-MM-DD date string.
func NormalizeDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t.Format(DateLayout), nil
}

// String encodes the key in the warehouse_date_shift form used by snapshots.
func (k PartitionKey) String() string {
	return k.Warehouse + "_" + k.Date + "_" + string(k.Shift)
}

// ParseKey decodes a warehouse_date_shift string back into a key.
// Warehouse IDs never contain underscores, so the first two fields from the
// right are unambiguous.
func ParseKey(s string) (PartitionKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 3 {
		return PartitionKey{}, fmt.Errorf("%w: key %q", ErrInvalidDate, s)
	}
	shift := labor.ShiftTag(parts[len(parts)-1])
	date := parts[len(parts)-2]
	warehouse := strings.Join(parts[:len(parts)-2], "_")
	if warehouse == "" || !shift.Valid() {
		return PartitionKey{}, fmt.Errorf("%w: key %q", ErrInvalidDate, s)
	}
	return NewKey(warehouse, date, shift)
}
