// Package queue maintains the live visit queue: the ordered list of
// checked-in patients per branch and day, with planned versus actual
// sequence, waiting time and estimated consultation time. Ordering is
// re-derived as check-ins and completions occur; it is never authored
// directly by callers.
package queue

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
	StatusWaiting   Status = "WAITING"
	StatusInService Status = "IN_SERVICE"
	StatusDone      Status = "DONE"
)

// Entry is one checked-in visit for the current day. PlannedSequence is
// fixed at check-in and records the booking order; ActualSequence is the
// live rank among the doctor's not-yet-DONE entries and moves as the day
// unfolds. EstimatedConsultAt is rewritten on every recompute.
// WaitingMinutes is derived at read time and never stored.
type Entry struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientScheduleID  uuid.UUID  `db:"patient_schedule_id" json:"patient_schedule_id"`
	ConsultingDoctorID uuid.UUID  `db:"consulting_doctor_id" json:"consulting_doctor_id"`
	BranchID           uuid.UUID  `db:"branch_id" json:"branch_id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	Date               time.Time  `db:"date" json:"date"`
	CheckinTime        time.Time  `db:"checkin_time" json:"checkin_time"`
	PlannedSequence    int        `db:"planned_sequence" json:"planned_sequence"`
	ActualSequence     int        `db:"actual_sequence" json:"actual_sequence"`
	Status             Status     `db:"status" json:"status"`
	ServiceStartTime   *time.Time `db:"service_start_time" json:"service_start_time,omitempty"`
	CompletedTime      *time.Time `db:"completed_time" json:"completed_time,omitempty"`
	EstimatedConsultAt time.Time  `db:"estimated_consult_at" json:"estimated_consult_at"`
	WaitingMinutes     int        `db:"-" json:"waiting_minutes"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// validTransitions lists the allowed status moves. Entries never revert;
// WAITING may jump straight to DONE when a patient leaves without being
// seen.
var validTransitions = map[Status][]Status{
	StatusWaiting:   {StatusInService, StatusDone},
	StatusInService: {StatusDone},
}

func (e *Entry) CanTransition(to Status) bool {
	for _, allowed := range validTransitions[e.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

func errTransition(from, to Status) error {
	return fmt.Errorf("%w: queue entry cannot move from %s to %s", ErrConflict, from, to)
}

// DateOf truncates a timestamp to its calendar day, matching how queue
// entries are bucketed.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
