package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssertNoConflict rejects a candidate interval that intersects any existing
// slot for the doctor-branch on the date, whatever its status. Conflicts are
// never merged silently; the caller must edit or withdraw the existing slot
// first. Callers that need atomicity with the subsequent insert hold the
// per-day lock around both.
func (s *Service) AssertNoConflict(ctx context.Context, doctorBranchID uuid.UUID, date time.Time, start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: interval start %s not before end %s", ErrInvalid,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	existing, err := s.repo.ListByDate(ctx, doctorBranchID, DateOf(date))
	if err != nil {
		return err
	}
	for _, sl := range existing {
		if sl.Overlaps(start, end) {
			return fmt.Errorf("%w: interval %s-%s overlaps slot %s (%s-%s)",
				ErrConflict,
				start.Format("15:04"), end.Format("15:04"),
				sl.ID,
				sl.StartTime.Format("15:04"), sl.EndTime.Format("15:04"))
		}
	}
	return nil
}
