package pharmacy

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Validated calendar value (day granularity, no time of day)
// =============================================================================

const (
	MinYear = 1900
	MaxYear = 2100

	isoLayout = "2006-01-02"
)

// Date is an immutable calendar date. The zero value is not a valid date;
// construct one with NewDate, DateOf or ParseDate.
type Date struct {
	day, month, year int
}

// NewDate validates the bounds and returns the date.
func NewDate(day, month, year int) (Date, error) {
	if year < MinYear || year > MaxYear {
		return Date{}, &ValidationError{Field: "year", Message: fmt.Sprintf("must be between %d and %d", MinYear, MaxYear)}
	}
	if month < 1 || month > 12 {
		return Date{}, &ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}
	if day < 1 || day > DaysInMonth(month, year) {
		return Date{}, &ValidationError{Field: "day", Message: fmt.Sprintf("must be between 1 and %d", DaysInMonth(month, year))}
	}
	return Date{day: day, month: month, year: year}, nil
}

// MustDate is NewDate for literals in tests and seed data. Panics on an invalid date.
func MustDate(day, month, year int) Date {
	d, err := NewDate(day, month, year)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return Date{day: t.Day(), month: int(t.Month()), year: t.Year()}
}

// Today is the wall-clock date at call time.
func Today() Date { return DateOf(time.Now()) }

// ParseDate reads the ISO form (YYYY-MM-DD) and validates it.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Message: fmt.Sprintf("%q is not a valid YYYY-MM-DD date", s)}
	}
	return NewDate(t.Day(), int(t.Month()), t.Year())
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%400 == 0 || (year%100 != 0 && year%4 == 0)
}

// DaysInMonth returns 0 for a month outside 1..12.
func DaysInMonth(month, year int) int {
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	}
	return 0
}

func (d Date) Day() int     { return d.day }
func (d Date) Month() int   { return d.month }
func (d Date) Year() int    { return d.year }
func (d Date) IsZero() bool { return d == Date{} }

// Before compares (year, month, day) lexicographically.
func (d Date) Before(other Date) bool {
	if d.year != other.year {
		return d.year < other.year
	}
	if d.month != other.month {
		return d.month < other.month
	}
	return d.day < other.day
}

// IsPast reports whether d is strictly earlier than now's calendar date.
func (d Date) IsPast(now time.Time) bool {
	return d.Before(DateOf(now))
}

// IsExpired is IsPast against the wall clock at call time, so a stored date
// can become expired without being modified.
func (d Date) IsExpired() bool { return d.IsPast(time.Now()) }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.year, time.Month(d.month), d.day, 0, 0, 0, 0, time.UTC)
}

// String renders DD/MM/YYYY for display.
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.day, d.month, d.year)
}

// ISO renders YYYY-MM-DD for storage and the wire.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, d.month, d.day)
}
