package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinq/clinq/internal/platform/keylock"
)

// RuleCacheInvalidator drops cached release rules for a doctor-branch after
// a rule mutation. Wired to the slot resolver's cache at startup.
type RuleCacheInvalidator interface {
	Invalidate(doctorBranchID uuid.UUID)
}

type Service struct {
	repo  Repository
	locks *keylock.KeyLock
	cache RuleCacheInvalidator
}

func NewService(repo Repository, locks *keylock.KeyLock) *Service {
	return &Service{repo: repo, locks: locks}
}

// SetRuleCacheInvalidator wires the release-rule cache; optional.
func (s *Service) SetRuleCacheInvalidator(c RuleCacheInvalidator) { s.cache = c }

func (s *Service) invalidateRules(doctorBranchID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(doctorBranchID)
	}
}

func (s *Service) requireDoctorBranch(ctx context.Context, id uuid.UUID) (*DoctorBranch, error) {
	d, err := s.repo.GetDoctorBranch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("doctor branch %s: %w", id, err)
	}
	return d, nil
}

// -- DoctorBranch --

func (s *Service) CreateDoctorBranch(ctx context.Context, d *DoctorBranch) error {
	if d.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalid)
	}
	if d.AvgConsultMinutes <= 0 {
		return fmt.Errorf("%w: average consult minutes must be positive", ErrInvalid)
	}
	d.Active = true
	return s.repo.CreateDoctorBranch(ctx, d)
}

func (s *Service) GetDoctorBranch(ctx context.Context, id uuid.UUID) (*DoctorBranch, error) {
	return s.repo.GetDoctorBranch(ctx, id)
}

func (s *Service) GetDoctorBranchByGlobalID(ctx context.Context, globalID uuid.UUID) (*DoctorBranch, error) {
	return s.repo.GetDoctorBranchByGlobalID(ctx, globalID)
}

func (s *Service) ListDoctorBranches(ctx context.Context, limit, offset int) ([]*DoctorBranch, int, error) {
	return s.repo.ListDoctorBranches(ctx, limit, offset)
}

func (s *Service) UpdateDoctorBranch(ctx context.Context, d *DoctorBranch) error {
	if d.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalid)
	}
	if d.AvgConsultMinutes <= 0 {
		return fmt.Errorf("%w: average consult minutes must be positive", ErrInvalid)
	}
	return s.repo.UpdateDoctorBranch(ctx, d)
}

// DeactivateDoctorBranch deactivates the branch and every rule it owns.
func (s *Service) DeactivateDoctorBranch(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeactivateDoctorBranch(ctx, id); err != nil {
		return err
	}
	s.invalidateRules(id)
	return nil
}

// -- WeeklyScheduleEntry --

// CreateWeeklyEntry enforces the no-overlap invariant among active entries
// for the same doctor-branch and weekday.
func (s *Service) CreateWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	if err := ValidateWeekday(e.Weekday); err != nil {
		return err
	}
	if err := ValidateClockWindow(e.StartTime, e.EndTime); err != nil {
		return err
	}
	if _, err := s.requireDoctorBranch(ctx, e.DoctorBranchID); err != nil {
		return err
	}

	unlock := s.locks.Lock("weekly:" + e.DoctorBranchID.String())
	defer unlock()

	if err := s.checkWeeklyOverlap(ctx, e, uuid.Nil); err != nil {
		return err
	}
	e.Active = true
	return s.repo.CreateWeeklyEntry(ctx, e)
}

func (s *Service) UpdateWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	if err := ValidateWeekday(e.Weekday); err != nil {
		return err
	}
	if err := ValidateClockWindow(e.StartTime, e.EndTime); err != nil {
		return err
	}

	unlock := s.locks.Lock("weekly:" + e.DoctorBranchID.String())
	defer unlock()

	if e.Active {
		if err := s.checkWeeklyOverlap(ctx, e, e.ID); err != nil {
			return err
		}
	}
	return s.repo.UpdateWeeklyEntry(ctx, e)
}

func (s *Service) checkWeeklyOverlap(ctx context.Context, e *WeeklyScheduleEntry, excludeID uuid.UUID) error {
	existing, err := s.repo.ListActiveWeeklyEntriesByWeekday(ctx, e.DoctorBranchID, e.Weekday)
	if err != nil {
		return err
	}
	start, _ := ParseClock(e.StartTime)
	end, _ := ParseClock(e.EndTime)
	for _, other := range existing {
		if other.ID == excludeID {
			continue
		}
		os, _ := ParseClock(other.StartTime)
		oe, _ := ParseClock(other.EndTime)
		if start < oe && os < end {
			return fmt.Errorf("%w: window %s-%s overlaps existing entry %s-%s on weekday %d",
				ErrConflict, e.StartTime, e.EndTime, other.StartTime, other.EndTime, e.Weekday)
		}
	}
	return nil
}

func (s *Service) ListWeeklyEntries(ctx context.Context, doctorBranchID uuid.UUID) ([]*WeeklyScheduleEntry, error) {
	return s.repo.ListWeeklyEntries(ctx, doctorBranchID)
}

func (s *Service) DeleteWeeklyEntry(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteWeeklyEntry(ctx, id)
}

// -- ScheduleBreak --

func (s *Service) CreateBreak(ctx context.Context, b *ScheduleBreak) error {
	if err := ValidateWeekday(b.Weekday); err != nil {
		return err
	}
	if err := ValidateClockWindow(b.StartTime, b.EndTime); err != nil {
		return err
	}
	if _, err := s.requireDoctorBranch(ctx, b.DoctorBranchID); err != nil {
		return err
	}
	b.Active = true
	return s.repo.CreateBreak(ctx, b)
}

func (s *Service) ListBreaks(ctx context.Context, doctorBranchID uuid.UUID) ([]*ScheduleBreak, error) {
	return s.repo.ListBreaks(ctx, doctorBranchID)
}

func (s *Service) DeleteBreak(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteBreak(ctx, id)
}

// -- DoctorLeave --

func (s *Service) CreateLeave(ctx context.Context, l *DoctorLeave) error {
	if !l.LeaveStart.Before(l.LeaveEnd) {
		return fmt.Errorf("%w: leave start must be before leave end", ErrInvalid)
	}
	if _, err := s.requireDoctorBranch(ctx, l.DoctorBranchID); err != nil {
		return err
	}
	l.Active = true
	return s.repo.CreateLeave(ctx, l)
}

func (s *Service) ListLeaves(ctx context.Context, doctorBranchID uuid.UUID) ([]*DoctorLeave, error) {
	return s.repo.ListLeaves(ctx, doctorBranchID)
}

func (s *Service) DeleteLeave(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteLeave(ctx, id)
}

// LeaveCovering reports whether an active leave covers the date.
func (s *Service) LeaveCovering(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) (*DoctorLeave, error) {
	return s.repo.LeaveCovering(ctx, doctorBranchID, date)
}

// -- BlockedSlot --

func (s *Service) CreateBlockedSlot(ctx context.Context, b *BlockedSlot) error {
	if err := ValidateClockWindow(b.StartTime, b.EndTime); err != nil {
		return err
	}
	if _, err := s.requireDoctorBranch(ctx, b.DoctorBranchID); err != nil {
		return err
	}
	b.Active = true
	return s.repo.CreateBlockedSlot(ctx, b)
}

func (s *Service) ListBlockedSlots(ctx context.Context, doctorBranchID uuid.UUID) ([]*BlockedSlot, error) {
	return s.repo.ListBlockedSlots(ctx, doctorBranchID)
}

func (s *Service) DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteBlockedSlot(ctx, id)
}

// -- ReleaseRule --

// CreateReleaseRule enforces at most one active rule per (doctorBranch,
// scope, discriminator). The check-then-insert runs under a per-branch lock
// so two concurrent writers cannot both pass the check.
func (s *Service) CreateReleaseRule(ctx context.Context, r *ReleaseRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, err := s.requireDoctorBranch(ctx, r.DoctorBranchID); err != nil {
		return err
	}

	unlock := s.locks.Lock("release:" + r.DoctorBranchID.String())
	defer unlock()

	if err := s.checkRuleUnique(ctx, r, uuid.Nil); err != nil {
		return err
	}
	r.Active = true
	if err := s.repo.CreateReleaseRule(ctx, r); err != nil {
		return err
	}
	s.invalidateRules(r.DoctorBranchID)
	return nil
}

func (s *Service) UpdateReleaseRule(ctx context.Context, r *ReleaseRule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	unlock := s.locks.Lock("release:" + r.DoctorBranchID.String())
	defer unlock()

	if r.Active {
		if err := s.checkRuleUnique(ctx, r, r.ID); err != nil {
			return err
		}
	}
	if err := s.repo.UpdateReleaseRule(ctx, r); err != nil {
		return err
	}
	s.invalidateRules(r.DoctorBranchID)
	return nil
}

func (s *Service) checkRuleUnique(ctx context.Context, r *ReleaseRule, excludeID uuid.UUID) error {
	existing, err := s.repo.ListActiveReleaseRules(ctx, r.DoctorBranchID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == excludeID {
			continue
		}
		if other.Scope == r.Scope && other.Discriminator() == r.Discriminator() {
			return fmt.Errorf("%w: active %s rule already exists for discriminator %q",
				ErrConflict, r.Scope, r.Discriminator())
		}
	}
	return nil
}

func (s *Service) GetReleaseRule(ctx context.Context, id uuid.UUID) (*ReleaseRule, error) {
	return s.repo.GetReleaseRule(ctx, id)
}

func (s *Service) ListReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*ReleaseRule, error) {
	return s.repo.ListReleaseRules(ctx, doctorBranchID)
}

func (s *Service) DeleteReleaseRule(ctx context.Context, id uuid.UUID) error {
	r, err := s.repo.GetReleaseRule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteReleaseRule(ctx, id); err != nil {
		return err
	}
	s.invalidateRules(r.DoctorBranchID)
	return nil
}
