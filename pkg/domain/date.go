package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type dateState uint8

const (
	dateUnset dateState = iota
	dateSet
	dateCleared
)

// isoLayout matches the millisecond ISO-8601 form emitted to clients.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Date is an optional timestamp that distinguishes "not provided" from
// "explicitly cleared". Set values are always held in UTC.
//
// The zero value is unset and is omitted from JSON via the omitzero tag. A
// cleared date encodes as null.
type Date struct {
	t     time.Time
	state dateState
}

// At returns a set Date.
func At(t time.Time) Date { return Date{t: t.UTC(), state: dateSet} }

// Cleared returns a Date that records an explicit removal.
func Cleared() Date { return Date{state: dateCleared} }

// DateOf returns a set Date when t is non-nil, otherwise the unset Date.
func DateOf(t *time.Time) Date {
	if t == nil {
		return Date{}
	}
	return At(*t)
}

// Time returns the timestamp and whether the date is set.
func (d Date) Time() (time.Time, bool) { return d.t, d.state == dateSet }

// Ptr returns the timestamp as a pointer, nil unless set.
func (d Date) Ptr() *time.Time {
	if d.state != dateSet {
		return nil
	}
	t := d.t
	return &t
}

func (d Date) IsSet() bool     { return d.state == dateSet }
func (d Date) IsCleared() bool { return d.state == dateCleared }

// IsZero reports whether the date was never provided.
func (d Date) IsZero() bool { return d.state == dateUnset }

// Apply returns the result of applying patch on top of d: an unset patch
// keeps d, anything else replaces it.
func (d Date) Apply(patch Date) Date {
	if patch.IsZero() {
		return d
	}
	return patch
}

// Before reports whether both dates are set and d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.IsSet() && o.IsSet() && d.t.Before(o.t)
}

// Equal compares state and instant.
func (d Date) Equal(o Date) bool {
	return d.state == o.state && d.t.Equal(o.t)
}

func (d Date) String() string {
	switch d.state {
	case dateSet:
		return d.t.Format(isoLayout)
	case dateCleared:
		return "null"
	}
	return ""
}

// MarshalJSON renders an ISO-8601 string, or null when cleared.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.state != dateSet {
		return []byte("null"), nil
	}
	return json.Marshal(d.t.Format(isoLayout))
}

// UnmarshalJSON accepts null (cleared), RFC 3339 timestamps and bare dates.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Cleared()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	*d = At(t)
	return nil
}

// Scan implements sql.Scanner. NULL scans as unset.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = At(v)
	case string:
		t, err := ParseTime(v)
		if err != nil {
			return err
		}
		*d = At(t)
	case []byte:
		t, err := ParseTime(string(v))
		if err != nil {
			return err
		}
		*d = At(t)
	default:
		return fmt.Errorf("date: cannot scan %T", src)
	}
	return nil
}

// Value implements driver.Valuer. Unset and cleared dates are stored as NULL.
func (d Date) Value() (driver.Value, error) {
	if d.state != dateSet {
		return nil, nil
	}
	return d.t, nil
}

// ParseTime parses the timestamp layouts produced by clients and by the
// supported SQL drivers, normalizing to UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrInvalidArgument, s)
}

// Timestamp scans a NOT NULL timestamp column regardless of driver representation.
type Timestamp struct{ time.Time }

// Scan implements sql.Scanner.
func (ts *Timestamp) Scan(src any) error {
	var d Date
	if err := d.Scan(src); err != nil {
		return err
	}
	t, ok := d.Time()
	if !ok {
		return fmt.Errorf("timestamp: unexpected NULL")
	}
	ts.Time = t
	return nil
}
