package recurrence

import (
	"errors"
	"fmt"

	"bilancio/internal/core"
)

// NextOccurrence returns the first date strictly after `after` on which a
// schedule with the given frequency and anchor fires.
//
// Weekly schedules need anchor.DayOfWeek and month-based schedules need
// anchor.DayOfMonth; a missing field is reported as ErrInvalidAnchor rather
// than defaulted. Biweekly schedules fire on the 1st and the 16th.
func NextOccurrence(freq Frequency, anchor Anchor, after core.Date) (core.Date, error) {
	c, err := cadenceFor(freq)
	if err != nil {
		return core.Date{}, err
	}
	if err := after.Validate(); err != nil {
		return core.Date{}, fmt.Errorf("%w: %v", ErrInvalidReferenceDate, err)
	}
	return c.next(anchor, core.DateOf(after.Time))
}

// FirstRunDate returns the first occurrence on or after start.
func FirstRunDate(freq Frequency, anchor Anchor, start core.Date) (core.Date, error) {
	if err := start.Validate(); err != nil {
		return core.Date{}, fmt.Errorf("%w: %v", ErrInvalidReferenceDate, err)
	}
	return NextOccurrence(freq, anchor, start.AddDays(-1))
}

var errUnbounded = errors.New("occurrences need an end date or a limit")

// Occurrences lists the dates in [from, to] on which the schedule fires,
// at most limit of them. A zero `to` means no upper bound and a limit <= 0
// means no cap; at least one of them must be set.
func Occurrences(freq Frequency, anchor Anchor, from, to core.Date, limit int) ([]core.Date, error) {
	if to.IsZero() && limit <= 0 {
		return nil, errUnbounded
	}
	var out []core.Date
	cur, err := FirstRunDate(freq, anchor, from)
	for ; err == nil; cur, err = NextOccurrence(freq, anchor, cur) {
		if !to.IsZero() && cur.After(to) {
			return out, nil
		}
		out = append(out, cur)
		if limit > 0 && len(out) >= limit {
			return out, nil
		}
	}
	return nil, err
}
