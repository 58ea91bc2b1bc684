package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as YYYY-MM-DD text so that string comparison in
// SQL matches chronological order.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = DateOf(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}
