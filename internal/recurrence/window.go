package recurrence

import (
	"fmt"

	"bilancio/internal/core"
)

// PeriodWindow is an inclusive date range, Start <= End.
type PeriodWindow struct {
	Start core.Date `json:"startDate"`
	End   core.Date `json:"endDate"`
}

// Days returns the number of calendar days covered by the window.
func (w PeriodWindow) Days() int {
	return w.Start.DaysUntil(w.End) + 1
}

// Contains reports whether d falls inside the window.
func (w PeriodWindow) Contains(d core.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// ComputePeriodWindow returns the budget period of the given frequency that
// contains ref. The custom frequency has no computed window and yields
// ErrCustomPeriod.
func ComputePeriodWindow(freq Frequency, ref core.Date) (PeriodWindow, error) {
	c, err := cadenceFor(freq)
	if err != nil {
		return PeriodWindow{}, err
	}
	if err := ref.Validate(); err != nil {
		return PeriodWindow{}, fmt.Errorf("%w: %v", ErrInvalidReferenceDate, err)
	}
	return c.window(core.DateOf(ref.Time)), nil
}

// ComputePeriodWindowNow evaluates the window against today.
func ComputePeriodWindowNow(freq Frequency) (PeriodWindow, error) {
	return ComputePeriodWindow(freq, core.Today())
}
