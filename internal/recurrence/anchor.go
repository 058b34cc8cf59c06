package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Anchor pins a frequency to calendar dates. Weekly schedules read
// DayOfWeek, month-based ones read DayOfMonth; the rest ignore both.
type Anchor struct {
	DayOfWeek  *time.Weekday
	DayOfMonth *DayOfMonth
}

// OnWeekday builds a weekly anchor.
func OnWeekday(wd time.Weekday) Anchor {
	return Anchor{DayOfWeek: &wd}
}

// OnDay builds a month-based anchor.
func OnDay(d DayOfMonth) Anchor {
	return Anchor{DayOfMonth: &d}
}

// AnchorFromWire converts the record encoding: dayOfWeek 0-6 with 0 meaning
// Sunday, dayOfMonth 1-31 or LastDaySentinel, 0 meaning unset.
func AnchorFromWire(dayOfWeek *int, dayOfMonth int) (Anchor, error) {
	var a Anchor
	if dayOfWeek != nil {
		if *dayOfWeek < 0 || *dayOfWeek > 6 {
			return Anchor{}, fmt.Errorf("%w: day of week %d", ErrInvalidAnchor, *dayOfWeek)
		}
		wd := time.Weekday(*dayOfWeek)
		a.DayOfWeek = &wd
	}
	if dayOfMonth != 0 {
		dom, err := DecodeDayOfMonth(dayOfMonth)
		if err != nil {
			return Anchor{}, err
		}
		a.DayOfMonth = &dom
	}
	return a, nil
}

// Wire returns the record encoding of the anchor.
func (a Anchor) Wire() (dayOfWeek *int, dayOfMonth int) {
	if a.DayOfWeek != nil {
		wd := int(*a.DayOfWeek)
		dayOfWeek = &wd
	}
	if a.DayOfMonth != nil {
		dayOfMonth = a.DayOfMonth.Encode()
	}
	return dayOfWeek, dayOfMonth
}

// EditableAnchor is a stored day-of-month as an edit form shows it.
type EditableAnchor struct {
	DisplayValue string `json:"displayValue"`
	IsLastDay    bool   `json:"isLastDay"`
}

// LastDayDisplay is the placeholder shown for the last-day anchor.
const LastDayDisplay = "last"

// DecodeAnchorForEditing maps a stored day-of-month to its form representation.
func DecodeAnchorForEditing(stored int) (EditableAnchor, error) {
	dom, err := DecodeDayOfMonth(stored)
	if err != nil {
		return EditableAnchor{}, err
	}
	if dom.IsLastDay() {
		return EditableAnchor{DisplayValue: LastDayDisplay, IsLastDay: true}, nil
	}
	return EditableAnchor{DisplayValue: strconv.Itoa(dom.Literal())}, nil
}

// EncodeAnchorFromEditing is the inverse of DecodeAnchorForEditing.
func EncodeAnchorFromEditing(e EditableAnchor) (int, error) {
	v := strings.TrimSpace(e.DisplayValue)
	if e.IsLastDay || strings.EqualFold(v, LastDayDisplay) {
		return LastDaySentinel, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: day of month %q", ErrInvalidAnchor, e.DisplayValue)
	}
	dom, err := Day(n)
	if err != nil {
		return 0, err
	}
	return dom.Encode(), nil
}
