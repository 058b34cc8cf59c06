package recurrence

import (
	"errors"

	"bilancio/internal/core"
)

var (
	// ErrInvalidAnchor reports a missing or out-of-range anchor field for the
	// requested frequency.
	ErrInvalidAnchor = errors.New("invalid anchor")

	// ErrCustomPeriod is returned for the custom frequency, whose dates are
	// always supplied by the user.
	ErrCustomPeriod = errors.New("custom period has no computed dates")

	ErrInvalidReferenceDate = core.ErrInvalidReferenceDate
	ErrUnknownFrequency     = core.ErrUnknownFrequency
)
