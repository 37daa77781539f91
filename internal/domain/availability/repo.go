package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists the rule entities. Reads used by the slot generator
// filter to active records; CRUD listings return everything for the owner.
type Repository interface {
	CreateDoctorBranch(ctx context.Context, db *DoctorBranch) error
	GetDoctorBranch(ctx context.Context, id uuid.UUID) (*DoctorBranch, error)
	GetDoctorBranchByGlobalID(ctx context.Context, globalID uuid.UUID) (*DoctorBranch, error)
	GetDoctorBranchByPair(ctx context.Context, doctorID, branchID uuid.UUID) (*DoctorBranch, error)
	ListDoctorBranches(ctx context.Context, limit, offset int) ([]*DoctorBranch, int, error)
	UpdateDoctorBranch(ctx context.Context, db *DoctorBranch) error
	DeactivateDoctorBranch(ctx context.Context, id uuid.UUID) error

	CreateWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry) error
	GetWeeklyEntry(ctx context.Context, id uuid.UUID) (*WeeklyScheduleEntry, error)
	ListWeeklyEntries(ctx context.Context, doctorBranchID uuid.UUID) ([]*WeeklyScheduleEntry, error)
	ListActiveWeeklyEntriesByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*WeeklyScheduleEntry, error)
	UpdateWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry) error
	DeleteWeeklyEntry(ctx context.Context, id uuid.UUID) error

	CreateBreak(ctx context.Context, b *ScheduleBreak) error
	ListBreaks(ctx context.Context, doctorBranchID uuid.UUID) ([]*ScheduleBreak, error)
	ListActiveBreaksByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*ScheduleBreak, error)
	DeleteBreak(ctx context.Context, id uuid.UUID) error

	CreateLeave(ctx context.Context, l *DoctorLeave) error
	ListLeaves(ctx context.Context, doctorBranchID uuid.UUID) ([]*DoctorLeave, error)
	LeaveCovering(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) (*DoctorLeave, error)
	DeleteLeave(ctx context.Context, id uuid.UUID) error

	CreateBlockedSlot(ctx context.Context, b *BlockedSlot) error
	ListBlockedSlots(ctx context.Context, doctorBranchID uuid.UUID) ([]*BlockedSlot, error)
	ListActiveBlockedSlotsByDate(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) ([]*BlockedSlot, error)
	DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error

	CreateReleaseRule(ctx context.Context, r *ReleaseRule) error
	GetReleaseRule(ctx context.Context, id uuid.UUID) (*ReleaseRule, error)
	ListReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*ReleaseRule, error)
	ListActiveReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*ReleaseRule, error)
	UpdateReleaseRule(ctx context.Context, r *ReleaseRule) error
	DeleteReleaseRule(ctx context.Context, id uuid.UUID) error
}
