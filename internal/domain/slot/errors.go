package slot

import (
	"errors"
	"fmt"

	"github.com/clinq/clinq/internal/domain/availability"
)

// mapAvailabilityErr translates availability sentinels into this package's
// taxonomy so callers match a single set.
func mapAvailabilityErr(err error) error {
	switch {
	case errors.Is(err, availability.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, availability.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, availability.ErrInvalid):
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	default:
		return err
	}
}

func errTransition(from, to Status) error {
	return fmt.Errorf("%w: slot cannot move from %s to %s", ErrConflict, from, to)
}
