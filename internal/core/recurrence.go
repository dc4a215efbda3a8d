package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval marks an unrecognized recurring interval tag. Items
// carrying one fail permanently; retrying cannot fix them.
var ErrInvalidInterval = errors.New("invalid recurring interval")

// NextRecurringDate advances from by exactly one interval unit. Month and
// year steps use calendar arithmetic, so day-of-month overflow normalizes
// forward (Jan 31 + 1 month lands in early March rather than producing an
// invalid date).
func NextRecurringDate(from time.Time, interval RecurringInterval) (time.Time, error) {
	switch interval {
	case Daily:
		return from.AddDate(0, 0, 1), nil
	case Weekly:
		return from.AddDate(0, 0, 7), nil
	case Monthly:
		return from.AddDate(0, 1, 0), nil
	case Yearly:
		return from.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}
}

// IsDue reports whether a template transaction should be processed now. A
// template that has never been scheduled (nil next date) is due immediately.
func (t Transaction) IsDue(now time.Time) bool {
	if t.NextRecurringDate == nil {
		return true
	}
	return !t.NextRecurringDate.After(now)
}
