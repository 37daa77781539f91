package slot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists materialized slots.
type Repository interface {
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetByGlobalID(ctx context.Context, globalID uuid.UUID) (*Slot, error)
	// ListByDate returns every slot for the doctor-branch on the date,
	// regardless of status, ordered by start time.
	ListByDate(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) ([]*Slot, error)
	ListByRange(ctx context.Context, doctorBranchID uuid.UUID, from, to time.Time, limit, offset int) ([]*Slot, int, error)
	// ListBookable returns OPEN slots already released at instant now.
	ListBookable(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time, now time.Time) ([]*Slot, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	// ExpireOpenBefore marks every OPEN slot ending before the cutoff as
	// EXPIRED and returns how many were affected.
	ExpireOpenBefore(ctx context.Context, cutoff time.Time) (int, error)
}
