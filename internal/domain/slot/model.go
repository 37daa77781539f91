// Package slot materializes bookable time slots from availability rules and
// guards them against conflicting mutations. Slots are append-only: they
// change status but are never deleted.
package slot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusBooked  Status = "BOOKED"
	StatusBlocked Status = "BLOCKED"
	StatusExpired Status = "EXPIRED"
)

// Slot is one concrete bookable interval for a doctor-branch. GlobalID is
// the only identifier safe to share across tenant boundaries; it is minted
// once at creation and never reused. ReleaseAt is resolved at generation
// time so visibility checks never re-run the rule lookup.
type Slot struct {
	ID             uuid.UUID `db:"id" json:"id"`
	GlobalID       uuid.UUID `db:"global_id" json:"global_id"`
	DoctorBranchID uuid.UUID `db:"doctor_branch_id" json:"doctor_branch_id"`
	Date           time.Time `db:"date" json:"date"`
	StartTime      time.Time `db:"start_time" json:"start_time"`
	EndTime        time.Time `db:"end_time" json:"end_time"`
	Status         Status    `db:"status" json:"status"`
	ReleaseAt      time.Time `db:"release_at" json:"release_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Overlaps reports half-open interval intersection with another slot.
func (s *Slot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// validTransitions lists the allowed status moves. Slots never revert.
var validTransitions = map[Status][]Status{
	StatusOpen: {StatusBooked, StatusBlocked, StatusExpired},
}

// CanTransition reports whether a slot may move from its current status to
// the target.
func (s *Slot) CanTransition(to Status) bool {
	for _, allowed := range validTransitions[s.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Validate rejects malformed intervals before anything is persisted.
func (s *Slot) Validate() error {
	if !s.StartTime.Before(s.EndTime) {
		return fmt.Errorf("%w: slot start %s not before end %s", ErrInvalid,
			s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339))
	}
	return nil
}

// DateOf truncates a timestamp to its calendar day in the timestamp's
// location. Slot dates are stored this way.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
