// Package forms holds the budget and recurring-transaction forms. Each form
// is a thin caller of the recurrence package: it asks for a period window
// or a next occurrence when the user picks a frequency, and otherwise only
// validates input before handing it to the finance API.
//
// Results computed outside the form (lookups, windows fetched from another
// request) are applied through a Selection token and dropped once the user
// has picked something else.
package forms

import (
	"errors"
	"fmt"
)

// Selection identifies one frequency or type choice made on a form.
type Selection uint64

// tracker issues Selection tokens; only the latest one is current.
type tracker struct {
	gen uint64
}

func (t *tracker) bump() Selection {
	t.gen++
	return Selection(t.gen)
}

func (t *tracker) current(s Selection) bool {
	return uint64(s) == t.gen
}

// ValidationError reports input the form refused.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// ErrWindowMismatch is returned when submitted dates differ from the
// window of a computed period.
var ErrWindowMismatch = errors.New("dates do not match the selected period")

// IsValidation reports whether err was caused by user input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
