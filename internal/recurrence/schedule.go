package recurrence

import (
	"errors"
	"fmt"

	"bilancio/internal/core"
)

// State is the persisted scheduling state of a recurring transaction.
// EndDate is zero for open-ended schedules.
type State struct {
	Frequency   Frequency
	Anchor      Anchor
	StartDate   core.Date
	EndDate     core.Date
	NextRunDate core.Date
	IsActive    bool
}

// StateFromRecurring builds the schedule of a recurring transaction. A
// missing NextRunDate is seeded with the first occurrence on or after the
// start date.
func StateFromRecurring(rt core.RecurringTransaction) (State, error) {
	anchor, err := AnchorFromWire(rt.DayOfWeek, rt.DayOfMonth)
	if err != nil {
		return State{}, err
	}
	s := State{
		Frequency:   rt.Frequency,
		Anchor:      anchor,
		StartDate:   rt.StartDate,
		EndDate:     rt.EndDate,
		NextRunDate: rt.NextRunDate,
		IsActive:    rt.IsActive,
	}
	if s.NextRunDate.IsZero() {
		next, err := FirstRunDate(s.Frequency, s.Anchor, s.StartDate)
		if err != nil {
			return State{}, err
		}
		s.NextRunDate = next
	}
	if s.Exhausted() {
		s.IsActive = false
	}
	return s, s.Validate()
}

// Validate checks that the anchor fits the frequency and the dates are ordered.
func (s State) Validate() error {
	if _, err := cadenceFor(s.Frequency); err != nil {
		return err
	}
	if s.StartDate.IsZero() {
		return errors.New("schedule needs a start date")
	}
	if !s.EndDate.IsZero() && s.EndDate.Before(s.StartDate) {
		return core.ErrDateRange
	}
	if s.NextRunDate.Before(s.StartDate) {
		return fmt.Errorf("next run %s is before start %s", s.NextRunDate, s.StartDate)
	}
	// a probe from the start date surfaces missing anchor fields
	if _, err := NextOccurrence(s.Frequency, s.Anchor, s.StartDate); err != nil {
		return err
	}
	return nil
}

// Exhausted reports whether NextRunDate has moved past EndDate.
func (s State) Exhausted() bool {
	return !s.EndDate.IsZero() && s.NextRunDate.After(s.EndDate)
}

// Due reports whether the schedule should fire on asOf.
func (s State) Due(asOf core.Date) bool {
	return s.IsActive && !s.Exhausted() && !s.NextRunDate.After(asOf)
}

// Advance moves NextRunDate to the following occurrence and deactivates the
// schedule once it runs past EndDate.
func (s State) Advance() (State, error) {
	next, err := NextOccurrence(s.Frequency, s.Anchor, s.NextRunDate)
	if err != nil {
		return s, err
	}
	s.NextRunDate = next
	if s.Exhausted() {
		s.IsActive = false
	}
	return s, nil
}

// DueRuns returns the run dates up to and including asOf, oldest first,
// together with the state after the last of them. Missed dates are each
// returned once.
func (s State) DueRuns(asOf core.Date) ([]core.Date, State, error) {
	var runs []core.Date
	for s.Due(asOf) {
		runs = append(runs, s.NextRunDate)
		next, err := s.Advance()
		if err != nil {
			return nil, s, err
		}
		s = next
	}
	return runs, s, nil
}
