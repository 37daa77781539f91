// Package availability holds the rule entities that drive slot generation:
// doctor-branch associations, recurring weekly windows, breaks, leave
// periods, one-off blocked slots and slot release rules.
package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

// ReleaseScope selects which candidate slots a release rule applies to.
type ReleaseScope string

const (
	ScopeDefault   ReleaseScope = "DEFAULT"
	ScopeWeekday   ReleaseScope = "WEEKDAY"
	ScopeTimeRange ReleaseScope = "TIME_RANGE"
)

// DoctorBranch associates one doctor with one branch. GlobalID correlates
// the same doctor-branch across tenant schemas; local ids never leave the
// tenant. It owns every rule entity below.
type DoctorBranch struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	GlobalID            uuid.UUID `db:"global_id" json:"global_id"`
	DoctorID            uuid.UUID `db:"doctor_id" json:"doctor_id"`
	BranchID            uuid.UUID `db:"branch_id" json:"branch_id"`
	SlotDurationMinutes int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	AvgConsultMinutes   int       `db:"avg_consult_minutes" json:"avg_consult_minutes"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// WeeklyScheduleEntry is a recurring availability window. Times are clock
// strings in "HH:MM"; the date context comes from generation.
type WeeklyScheduleEntry struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DoctorBranchID uuid.UUID `db:"doctor_branch_id" json:"doctor_branch_id"`
	Weekday        int       `db:"weekday" json:"weekday"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        string    `db:"end_time" json:"end_time"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleBreak is a recurring exclusion window subtracted from weekly
// windows on matching weekdays.
type ScheduleBreak struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DoctorBranchID uuid.UUID `db:"doctor_branch_id" json:"doctor_branch_id"`
	Weekday        int       `db:"weekday" json:"weekday"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        string    `db:"end_time" json:"end_time"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// DoctorLeave suppresses all slots on any date inside [LeaveStart, LeaveEnd].
type DoctorLeave struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DoctorBranchID uuid.UUID `db:"doctor_branch_id" json:"doctor_branch_id"`
	LeaveStart     time.Time `db:"leave_start" json:"leave_start"`
	LeaveEnd       time.Time `db:"leave_end" json:"leave_end"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// BlockedSlot is a one-off exclusion for a single date, independent of the
// weekly template.
type BlockedSlot struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DoctorBranchID uuid.UUID `db:"doctor_branch_id" json:"doctor_branch_id"`
	Date           time.Time `db:"date" json:"date"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        string    `db:"end_time" json:"end_time"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ReleaseRule controls how far ahead of a slot's start it becomes bookable.
// Weekday discriminates WEEKDAY rules, TimeRange ("HH:MM-HH:MM") discriminates
// TIME_RANGE rules; DEFAULT rules carry neither.
type ReleaseRule struct {
	ID                   uuid.UUID    `db:"id" json:"id"`
	DoctorBranchID       uuid.UUID    `db:"doctor_branch_id" json:"doctor_branch_id"`
	Scope                ReleaseScope `db:"scope" json:"scope"`
	Weekday              *int         `db:"weekday" json:"weekday,omitempty"`
	TimeRange            *string      `db:"time_range" json:"time_range,omitempty"`
	ReleaseOffsetMinutes int          `db:"release_offset_minutes" json:"release_offset_minutes"`
	Active               bool         `db:"active" json:"active"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
}

// Discriminator returns the value that, together with scope, must be unique
// among a doctor-branch's active rules.
func (r *ReleaseRule) Discriminator() string {
	switch r.Scope {
	case ScopeWeekday:
		if r.Weekday != nil {
			return fmt.Sprintf("%d", *r.Weekday)
		}
	case ScopeTimeRange:
		if r.TimeRange != nil {
			return *r.TimeRange
		}
	}
	return ""
}

// Validate checks scope/discriminator consistency.
func (r *ReleaseRule) Validate() error {
	switch r.Scope {
	case ScopeDefault:
		if r.Weekday != nil || r.TimeRange != nil {
			return fmt.Errorf("%w: DEFAULT rule carries no discriminator", ErrInvalid)
		}
	case ScopeWeekday:
		if r.Weekday == nil {
			return fmt.Errorf("%w: WEEKDAY rule requires a weekday", ErrInvalid)
		}
		if err := ValidateWeekday(*r.Weekday); err != nil {
			return err
		}
	case ScopeTimeRange:
		if r.TimeRange == nil {
			return fmt.Errorf("%w: TIME_RANGE rule requires a time range", ErrInvalid)
		}
		if _, _, err := ParseClockRange(*r.TimeRange); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown release scope %q", ErrInvalid, r.Scope)
	}
	if r.ReleaseOffsetMinutes < 0 {
		return fmt.Errorf("%w: release offset must not be negative", ErrInvalid)
	}
	return nil
}

// ParseClock parses zero-padded "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 {
		return 0, fmt.Errorf("%w: bad clock time %q", ErrInvalid, s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad clock time %q", ErrInvalid, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseClockRange parses "HH:MM-HH:MM" into start and end minutes. The range
// must be non-empty within a single day.
func ParseClockRange(s string) (int, int, error) {
	startStr, endStr, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: bad time range %q", ErrInvalid, s)
	}
	start, err := ParseClock(startStr)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseClock(endStr)
	if err != nil {
		return 0, 0, err
	}
	if start >= end {
		return 0, 0, fmt.Errorf("%w: time range start %q not before end %q", ErrInvalid, startStr, endStr)
	}
	return start, end, nil
}

// ValidateClockWindow rejects windows whose start is not strictly before end.
func ValidateClockWindow(startTime, endTime string) error {
	start, err := ParseClock(startTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("%w: window start %q not before end %q", ErrInvalid, startTime, endTime)
	}
	return nil
}

// ValidateWeekday accepts time.Weekday values 0 (Sunday) through 6.
func ValidateWeekday(d int) error {
	if d < 0 || d > 6 {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalid, d)
	}
	return nil
}

// ClockRangeOf formats a start/end clock pair the way TIME_RANGE rules
// discriminate on it.
func ClockRangeOf(startTime, endTime string) string {
	return startTime + "-" + endTime
}
