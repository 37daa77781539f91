package slot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinq/clinq/internal/domain/availability"
	"github.com/clinq/clinq/internal/platform/db"
	"github.com/clinq/clinq/internal/platform/events"
	"github.com/clinq/clinq/internal/platform/keylock"
)

// AvailabilityStore is the read surface of the availability rules the
// generator consumes.
type AvailabilityStore interface {
	GetDoctorBranch(ctx context.Context, id uuid.UUID) (*availability.DoctorBranch, error)
	ListActiveWeeklyEntriesByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*availability.WeeklyScheduleEntry, error)
	ListActiveBreaksByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*availability.ScheduleBreak, error)
	LeaveCovering(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) (*availability.DoctorLeave, error)
	ListActiveBlockedSlotsByDate(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) ([]*availability.BlockedSlot, error)
	ListActiveReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*availability.ReleaseRule, error)
}

type Service struct {
	repo     Repository
	rules    AvailabilityStore
	resolver *Resolver
	locks    *keylock.KeyLock
	events   *events.Publisher
	logger   zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewService(repo Repository, rules AvailabilityStore, resolver *Resolver, locks *keylock.KeyLock, pub *events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		rules:    rules,
		resolver: resolver,
		locks:    locks,
		events:   pub,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolver exposes the release resolver so its cache can be wired as the
// availability service's invalidator.
func (s *Service) Resolver() *Resolver { return s.resolver }

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetSlotByGlobalID(ctx context.Context, globalID uuid.UUID) (*Slot, error) {
	return s.repo.GetByGlobalID(ctx, globalID)
}

func (s *Service) ListSlots(ctx context.Context, doctorBranchID uuid.UUID, from, to time.Time, limit, offset int) ([]*Slot, int, error) {
	return s.repo.ListByRange(ctx, doctorBranchID, from, to, limit, offset)
}

// GetBookableSlots returns OPEN slots whose release instant has passed.
func (s *Service) GetBookableSlots(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time) ([]*Slot, error) {
	return s.repo.ListBookable(ctx, doctorID, branchID, DateOf(date), s.now())
}

// CreateSlot is the external mutation path (manual slot entry). It runs the
// same conflict guard as the generator.
func (s *Service) CreateSlot(ctx context.Context, sl *Slot) error {
	if err := sl.Validate(); err != nil {
		return err
	}
	if _, err := s.rules.GetDoctorBranch(ctx, sl.DoctorBranchID); err != nil {
		return mapAvailabilityErr(err)
	}

	sl.Date = DateOf(sl.StartTime)
	unlock := s.locks.Lock(genKey(sl.DoctorBranchID, sl.Date))
	defer unlock()

	if err := s.AssertNoConflict(ctx, sl.DoctorBranchID, sl.Date, sl.StartTime, sl.EndTime); err != nil {
		return err
	}

	if sl.GlobalID == uuid.Nil {
		sl.GlobalID = uuid.New()
	}
	if sl.Status == "" {
		sl.Status = StatusOpen
	}
	if sl.ReleaseAt.IsZero() {
		weekday := int(sl.StartTime.Weekday())
		releaseAt, err := s.resolver.ResolveReleaseAt(ctx, sl.DoctorBranchID, sl.StartTime, weekday, clockRange(sl.StartTime, sl.EndTime))
		if err != nil {
			return err
		}
		sl.ReleaseAt = releaseAt
	}
	if sl.Status == StatusOpen && sl.StartTime.Before(s.now()) {
		sl.Status = StatusExpired
	}
	return s.repo.Create(ctx, sl)
}

// Book transitions an OPEN slot to BOOKED.
func (s *Service) Book(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.transition(ctx, id, StatusBooked)
}

// Block transitions an OPEN slot to BLOCKED (manual withdrawal).
func (s *Service) Block(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.transition(ctx, id, StatusBlocked)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Slot, error) {
	sl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(genKey(sl.DoctorBranchID, sl.Date))
	defer unlock()

	// Re-read under the lock; status may have moved.
	sl, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sl.CanTransition(to) {
		return nil, errTransition(sl.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	sl.Status = to
	return sl, nil
}

// ExpireSweep marks every past OPEN slot EXPIRED. Run from the CLI or a
// scheduler.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireOpenBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int("expired", n).Msg("slot expiry sweep")
	}
	return n, nil
}

func genKey(doctorBranchID uuid.UUID, date time.Time) string {
	return "slotgen:" + doctorBranchID.String() + ":" + date.Format("2006-01-02")
}

func clockRange(start, end time.Time) string {
	return start.Format("15:04") + "-" + end.Format("15:04")
}

// withTxIfAvailable wraps fn in a transaction when a tenant connection is
// present in ctx. Unit tests run the services without a database; generation
// atomicity then degrades to the keylock alone.
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
