// Package recurrence computes budget period windows and recurring
// transaction occurrences.
//
// Every frequency is served by a cadence: a small strategy that knows the
// window containing a reference date and the next date after a given one.
// All functions are pure and safe for concurrent use.
package recurrence

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// Frequency is re-exported for callers that only import this package.
type Frequency = core.Frequency

// cadence is the per-frequency strategy.
type cadence interface {
	window(ref core.Date) PeriodWindow
	next(a Anchor, after core.Date) (core.Date, error)
}

var cadences = map[Frequency]cadence{
	core.Daily:      daily{},
	core.Weekly:     weekly{},
	core.Biweekly:   biweekly{},
	core.Monthly:    monthStep{months: 1},
	core.Bimonthly:  monthStep{months: 2},
	core.Quarterly:  monthStep{months: 3},
	core.Semiannual: monthStep{months: 6},
	core.Annual:     monthStep{months: 12},
}

func cadenceFor(f Frequency) (cadence, error) {
	if f == core.Custom {
		return nil, ErrCustomPeriod
	}
	c, ok := cadences[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, string(f))
	}
	return c, nil
}

type daily struct{}

func (daily) window(ref core.Date) PeriodWindow {
	return PeriodWindow{Start: ref, End: ref}
}

func (daily) next(_ Anchor, after core.Date) (core.Date, error) {
	return after.AddDays(1), nil
}

type weekly struct{}

// window is the Monday-Sunday week containing ref.
func (weekly) window(ref core.Date) PeriodWindow {
	offset := 1 - int(ref.Weekday())
	if ref.Weekday() == time.Sunday {
		offset = -6
	}
	monday := ref.AddDays(offset)
	return PeriodWindow{Start: monday, End: monday.AddDays(6)}
}

func (weekly) next(a Anchor, after core.Date) (core.Date, error) {
	if a.DayOfWeek == nil {
		return core.Date{}, fmt.Errorf("%w: weekly schedule needs a day of week", ErrInvalidAnchor)
	}
	target := *a.DayOfWeek
	if target < time.Sunday || target > time.Saturday {
		return core.Date{}, fmt.Errorf("%w: day of week %d", ErrInvalidAnchor, int(target))
	}
	diff := (int(target) - int(after.Weekday()) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return after.AddDays(diff), nil
}

// biweekly splits every month in two halves anchored on the 1st and the 16th.
type biweekly struct{}

const secondHalf = 16

func (biweekly) window(ref core.Date) PeriodWindow {
	y, m := ref.Year(), ref.Time.Month()
	if ref.Day() < secondHalf {
		return PeriodWindow{Start: dateIn(y, m, 1), End: dateIn(y, m, secondHalf-1)}
	}
	return PeriodWindow{Start: dateIn(y, m, secondHalf), End: dateIn(y, m, daysIn(y, m))}
}

func (biweekly) next(_ Anchor, after core.Date) (core.Date, error) {
	y, m := after.Year(), after.Time.Month()
	if after.Day() < secondHalf {
		return dateIn(y, m, secondHalf), nil
	}
	return dateIn(y, m+1, 1), nil
}

// monthStep covers every cadence measured in whole months. Windows are
// calendar blocks aligned on January: monthly, bimonthly pairs, quarters,
// halves and years.
type monthStep struct {
	months int
}

func (s monthStep) window(ref core.Date) PeriodWindow {
	first := (int(ref.Time.Month())-1)/s.months*s.months + 1
	start := dateIn(ref.Year(), time.Month(first), 1)
	endMonth := time.Month(first + s.months - 1)
	return PeriodWindow{Start: start, End: dateIn(ref.Year(), endMonth, daysIn(ref.Year(), endMonth))}
}

func (s monthStep) next(a Anchor, after core.Date) (core.Date, error) {
	if a.DayOfMonth == nil || !a.DayOfMonth.Valid() {
		return core.Date{}, fmt.Errorf("%w: schedule needs a day of month", ErrInvalidAnchor)
	}
	dom := *a.DayOfMonth
	y, m := after.Year(), after.Time.Month()
	candidate := dateIn(y, m, dom.Resolve(y, m))
	if candidate.After(after) {
		return candidate, nil
	}
	// step from the 1st so AddDate never normalizes into the following month
	target := dateIn(y, m, 1).Time.AddDate(0, s.months, 0)
	ty, tm := target.Year(), target.Month()
	return dateIn(ty, tm, dom.Resolve(ty, tm)), nil
}

// dateIn normalizes month overflow (month 13 is January of the next year).
func dateIn(year int, month time.Month, day int) core.Date {
	return core.DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}
