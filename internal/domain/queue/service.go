package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinq/clinq/internal/domain/availability"
	"github.com/clinq/clinq/internal/platform/db"
	"github.com/clinq/clinq/internal/platform/events"
	"github.com/clinq/clinq/internal/platform/keylock"
)

// BranchStore supplies the per-doctor average consultation duration.
type BranchStore interface {
	GetDoctorBranchByPair(ctx context.Context, doctorID, branchID uuid.UUID) (*availability.DoctorBranch, error)
}

type Service struct {
	repo     Repository
	branches BranchStore
	locks    *keylock.KeyLock
	events   *events.Publisher
	logger   zerolog.Logger

	// defaultAvgConsult backs doctors with no configured average.
	defaultAvgConsult int

	// now is swappable for tests.
	now func() time.Time
}

func NewService(repo Repository, branches BranchStore, locks *keylock.KeyLock, pub *events.Publisher, logger zerolog.Logger, defaultAvgConsultMinutes int) *Service {
	return &Service{
		repo:              repo,
		branches:          branches,
		locks:             locks,
		events:            pub,
		logger:            logger,
		defaultAvgConsult: defaultAvgConsultMinutes,
		now:               time.Now,
	}
}

// CheckInRequest carries the identities the visit subsystem hands over at
// the reception desk. A zero CheckinTime means "now".
type CheckInRequest struct {
	PatientScheduleID  uuid.UUID `json:"patient_schedule_id"`
	ConsultingDoctorID uuid.UUID `json:"consulting_doctor_id"`
	BranchID           uuid.UUID `json:"branch_id"`
	PatientID          uuid.UUID `json:"patient_id"`
	CheckinTime        time.Time `json:"checkin_time"`
}

func (r *CheckInRequest) validate() error {
	if r.PatientScheduleID == uuid.Nil || r.ConsultingDoctorID == uuid.Nil ||
		r.BranchID == uuid.Nil || r.PatientID == uuid.Nil {
		return fmt.Errorf("%w: check-in requires patient schedule, doctor, branch and patient ids", ErrInvalid)
	}
	return nil
}

// CheckIn inserts a WAITING entry. Checking in a patient already WAITING or
// IN_SERVICE for the day returns the existing entry unchanged. The planned
// sequence is fixed here and never recomputed.
func (s *Service) CheckIn(ctx context.Context, req *CheckInRequest) (*Entry, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	checkin := req.CheckinTime
	if checkin.IsZero() {
		checkin = s.now()
	}
	date := DateOf(checkin)

	unlock := s.locks.Lock(queueKey(req.BranchID, date))
	defer unlock()

	var entry *Entry
	err := withTxIfAvailable(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetActiveByPatientSchedule(ctx, req.PatientScheduleID, date)
		if err == nil {
			entry = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		active, err := s.repo.CountActiveByDoctorDate(ctx, req.ConsultingDoctorID, req.BranchID, date)
		if err != nil {
			return err
		}
		entry = &Entry{
			PatientScheduleID:  req.PatientScheduleID,
			ConsultingDoctorID: req.ConsultingDoctorID,
			BranchID:           req.BranchID,
			PatientID:          req.PatientID,
			Date:               date,
			CheckinTime:        checkin,
			PlannedSequence:    active + 1,
			ActualSequence:     active + 1,
			Status:             StatusWaiting,
		}
		if err := s.repo.Create(ctx, entry); err != nil {
			return err
		}
		if err := s.recomputeLocked(ctx, req.BranchID, date); err != nil {
			return err
		}
		entry, err = s.repo.GetActiveByPatientSchedule(ctx, req.PatientScheduleID, date)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.fillWaiting(entry)
	s.publishQueueUpdated(ctx, req.BranchID, date)
	return entry, nil
}

// MarkInService moves the patient's WAITING entry for today to IN_SERVICE
// and stamps the service start used as the base for wait estimates.
func (s *Service) MarkInService(ctx context.Context, patientScheduleID uuid.UUID) (*Entry, error) {
	return s.transition(ctx, patientScheduleID, StatusInService)
}

// MarkDone completes the visit and recomputes the remaining cohort's actual
// sequences so they stay contiguous from 1.
func (s *Service) MarkDone(ctx context.Context, patientScheduleID uuid.UUID) (*Entry, error) {
	return s.transition(ctx, patientScheduleID, StatusDone)
}

func (s *Service) transition(ctx context.Context, patientScheduleID uuid.UUID, to Status) (*Entry, error) {
	now := s.now()
	date := DateOf(now)
	entry, err := s.repo.GetActiveByPatientSchedule(ctx, patientScheduleID, date)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(queueKey(entry.BranchID, entry.Date))
	defer unlock()

	err = withTxIfAvailable(ctx, func(ctx context.Context) error {
		// Re-read under the lock; status may have moved.
		entry, err = s.repo.GetActiveByPatientSchedule(ctx, patientScheduleID, date)
		if err != nil {
			return err
		}
		if !entry.CanTransition(to) {
			return errTransition(entry.Status, to)
		}
		switch to {
		case StatusInService:
			t := now
			entry.ServiceStartTime = &t
		case StatusDone:
			t := now
			entry.CompletedTime = &t
		}
		entry.Status = to
		if err := s.repo.Update(ctx, entry); err != nil {
			return err
		}
		return s.recomputeLocked(ctx, entry.BranchID, entry.Date)
	})
	if err != nil {
		return nil, err
	}

	s.fillWaiting(entry)
	s.publishQueueUpdated(ctx, entry.BranchID, entry.Date)
	return entry, nil
}

// Recompute re-derives actual sequences and wait estimates for a branch-day.
// Serialized per (branch, date); check-ins and completions call it under the
// same lock.
func (s *Service) Recompute(ctx context.Context, branchID uuid.UUID, date time.Time) error {
	date = DateOf(date)
	unlock := s.locks.Lock(queueKey(branchID, date))
	defer unlock()
	return withTxIfAvailable(ctx, func(ctx context.Context) error {
		return s.recomputeLocked(ctx, branchID, date)
	})
}

// recomputeLocked does the actual derivation. Caller holds the branch-day
// write lock.
//
// Per doctor, not-yet-DONE entries ordered by checkin time (ties by patient
// schedule id) are ranked 1..N. A WAITING entry's estimated consultation
// instant is the current service start (or now, when nobody is in service)
// plus (rank-1) average consultations.
func (s *Service) recomputeLocked(ctx context.Context, branchID uuid.UUID, date time.Time) error {
	entries, err := s.repo.ListByBranchDate(ctx, branchID, date)
	if err != nil {
		return err
	}

	byDoctor := make(map[uuid.UUID][]*Entry)
	for _, e := range entries {
		if e.Status == StatusDone {
			continue
		}
		byDoctor[e.ConsultingDoctorID] = append(byDoctor[e.ConsultingDoctorID], e)
	}

	now := s.now()
	for doctorID, cohort := range byDoctor {
		sort.Slice(cohort, func(i, j int) bool {
			if !cohort[i].CheckinTime.Equal(cohort[j].CheckinTime) {
				return cohort[i].CheckinTime.Before(cohort[j].CheckinTime)
			}
			return cohort[i].PatientScheduleID.String() < cohort[j].PatientScheduleID.String()
		})

		base := now
		for _, e := range cohort {
			if e.Status == StatusInService && e.ServiceStartTime != nil {
				base = *e.ServiceStartTime
				break
			}
		}

		avg := s.avgConsultFor(ctx, doctorID, branchID)
		for i, e := range cohort {
			rank := i + 1
			changed := e.ActualSequence != rank
			e.ActualSequence = rank
			if e.Status == StatusWaiting {
				est := base.Add(time.Duration(rank-1) * avg)
				if !e.EstimatedConsultAt.Equal(est) {
					e.EstimatedConsultAt = est
					changed = true
				}
			}
			if changed {
				if err := s.repo.Update(ctx, e); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// QueueResponse is the reception-desk projection of a branch-day queue.
type QueueResponse struct {
	Items      []*Entry `json:"items"`
	TotalCount int      `json:"total_count"`
}

const (
	SortBySequence = "sequence"
	SortByCheckin  = "checkin"
)

// ListQueue returns the branch-day queue under the read side of the
// recompute lock, so callers never observe a half-updated cohort. DONE
// entries sort after live ones.
func (s *Service) ListQueue(ctx context.Context, branchID uuid.UUID, date time.Time, sortBy string) (*QueueResponse, error) {
	if sortBy == "" {
		sortBy = SortBySequence
	}
	if sortBy != SortBySequence && sortBy != SortByCheckin {
		return nil, fmt.Errorf("%w: sort_by must be sequence or checkin", ErrInvalid)
	}
	date = DateOf(date)

	unlock := s.locks.RLock(queueKey(branchID, date))
	defer unlock()

	entries, err := s.repo.ListByBranchDate(ctx, branchID, date)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Status == StatusDone) != (b.Status == StatusDone) {
			return b.Status == StatusDone
		}
		if sortBy == SortBySequence {
			return a.ActualSequence < b.ActualSequence
		}
		return a.CheckinTime.Before(b.CheckinTime)
	})

	for _, e := range entries {
		s.fillWaiting(e)
	}
	return &QueueResponse{Items: entries, TotalCount: len(entries)}, nil
}

func (s *Service) avgConsultFor(ctx context.Context, doctorID, branchID uuid.UUID) time.Duration {
	minutes := s.defaultAvgConsult
	if branch, err := s.branches.GetDoctorBranchByPair(ctx, doctorID, branchID); err == nil && branch.AvgConsultMinutes > 0 {
		minutes = branch.AvgConsultMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// fillWaiting derives the elapsed wait for a live entry.
func (s *Service) fillWaiting(e *Entry) {
	if e == nil || e.Status == StatusDone {
		return
	}
	if elapsed := s.now().Sub(e.CheckinTime); elapsed > 0 {
		e.WaitingMinutes = int(elapsed.Minutes())
	}
}

func (s *Service) publishQueueUpdated(ctx context.Context, branchID uuid.UUID, date time.Time) {
	s.events.Publish(ctx, events.RouteQueueUpdated, db.TenantFromContext(ctx), map[string]interface{}{
		"branch_id": branchID,
		"date":      date.Format("2006-01-02"),
	})
}

func queueKey(branchID uuid.UUID, date time.Time) string {
	return "queue:" + branchID.String() + ":" + date.Format("2006-01-02")
}

// withTxIfAvailable wraps fn in a transaction when a tenant connection is
// present in ctx, so an aborted recompute leaves no partial rows.
func withTxIfAvailable(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.ConnFromContext(ctx) == nil {
		return fn(ctx)
	}
	tx, txCtx, err := db.WithTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
