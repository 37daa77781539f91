package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists queue entries. "Active" means not yet DONE.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetActiveByPatientSchedule(ctx context.Context, patientScheduleID uuid.UUID, date time.Time) (*Entry, error)
	ListByBranchDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]*Entry, error)
	ListActiveByDoctorDate(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time) ([]*Entry, error)
	CountActiveByDoctorDate(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time) (int, error)
	Update(ctx context.Context, e *Entry) error
}
