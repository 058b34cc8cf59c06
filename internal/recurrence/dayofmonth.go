package recurrence

import (
	"fmt"
	"time"
)

// LastDaySentinel is the stored encoding of "last day of the month". It only
// appears at the wire and storage boundary; in memory use LastDay().
const LastDaySentinel = 32

// DayOfMonth is either a literal day (1-31) or the last day of whatever month
// it is resolved against. The zero value is invalid.
type DayOfMonth struct {
	day  int
	last bool
}

// Day returns a literal day-of-month anchor.
func Day(n int) (DayOfMonth, error) {
	if n < 1 || n > 31 {
		return DayOfMonth{}, fmt.Errorf("%w: day of month %d", ErrInvalidAnchor, n)
	}
	return DayOfMonth{day: n}, nil
}

// LastDay returns the last-day-of-month anchor.
func LastDay() DayOfMonth {
	return DayOfMonth{last: true}
}

// DecodeDayOfMonth converts a stored value (1-31 or LastDaySentinel).
func DecodeDayOfMonth(stored int) (DayOfMonth, error) {
	if stored == LastDaySentinel {
		return LastDay(), nil
	}
	return Day(stored)
}

func (d DayOfMonth) Valid() bool {
	return d.last || (d.day >= 1 && d.day <= 31)
}

func (d DayOfMonth) IsLastDay() bool { return d.last }

// Literal returns the literal day, or 0 for the last-day anchor.
func (d DayOfMonth) Literal() int {
	if d.last {
		return 0
	}
	return d.day
}

// Encode returns the stored representation.
func (d DayOfMonth) Encode() int {
	if d.last {
		return LastDaySentinel
	}
	return d.day
}

// Resolve returns the concrete day in the given month. Literal days past the
// end of a short month clamp to its last day.
func (d DayOfMonth) Resolve(year int, month time.Month) int {
	last := daysIn(year, month)
	if d.last || d.day > last {
		return last
	}
	return d.day
}

func (d DayOfMonth) String() string {
	if d.last {
		return "last"
	}
	return fmt.Sprintf("%d", d.day)
}

// daysIn uses day 0 of the following month, so leap years come for free.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
