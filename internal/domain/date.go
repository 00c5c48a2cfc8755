package domain

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in canonical YYYY-MM-DD form. It is the only date
// representation used as a map key anywhere on the board.
type Date string

// ParseDate parses YYYY-MM-DD (surrounding whitespace ignored).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date(t.Format(dateLayout)), nil
}

// MustDate is ParseDate for literals; it panics on bad input.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf takes the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(dateLayout))
}

func (d Date) String() string { return string(d) }

func (d Date) IsZero() bool { return d == "" }

// Valid reports whether d is a well-formed canonical date.
func (d Date) Valid() bool {
	if d == "" {
		return false
	}
	p, err := ParseDate(string(d))
	return err == nil && p == d
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) Before(o Date) bool { return d < o }

func (d Date) After(o Date) bool { return d > o }

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = DateOf(v)
	case string:
		p, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = p
	case []byte:
		p, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = p
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

// DateRange returns every day from..to inclusive; empty when to is before from.
func DateRange(from, to Date) []Date {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}
	var out []Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// UniqueDates sorts and de-duplicates dates, dropping zero values.
func UniqueDates(dates []Date) []Date {
	seen := make(map[Date]struct{}, len(dates))
	out := make([]Date, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func containsDate(dates []Date, d Date) bool {
	for _, x := range dates {
		if x == d {
			return true
		}
	}
	return false
}
