package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinq/clinq/internal/domain/availability"
	"github.com/clinq/clinq/internal/platform/db"
	"github.com/clinq/clinq/internal/platform/events"
	"github.com/clinq/clinq/pkg/interval"
)

// GenerateResult summarizes one generation run.
type GenerateResult struct {
	DoctorBranchID   uuid.UUID `json:"doctor_branch_id"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Created          []*Slot   `json:"created"`
	SkippedExisting  int       `json:"skipped_existing"`
	SkippedLeaveDays int       `json:"skipped_leave_days"`
}

// Generate materializes bookable slots for every date in [from, to].
// Re-running an already-materialized range creates nothing: candidates that
// overlap a persisted slot are skipped, so the call is idempotent. Each date
// is processed as one serialized, transactional unit; an abort leaves no
// partial rows for that date.
func (s *Service) Generate(ctx context.Context, doctorBranchID uuid.UUID, from, to time.Time) (*GenerateResult, error) {
	fromDate, toDate := DateOf(from), DateOf(to)
	if toDate.Before(fromDate) {
		return nil, fmt.Errorf("%w: range end %s before start %s", ErrInvalid,
			toDate.Format("2006-01-02"), fromDate.Format("2006-01-02"))
	}

	branch, err := s.rules.GetDoctorBranch(ctx, doctorBranchID)
	if err != nil {
		return nil, mapAvailabilityErr(err)
	}

	result := &GenerateResult{DoctorBranchID: doctorBranchID, From: fromDate, To: toDate}
	for date := fromDate; !date.After(toDate); date = date.AddDate(0, 0, 1) {
		date := date
		err := func() error {
			unlock := s.locks.Lock(genKey(doctorBranchID, date))
			defer unlock()
			return withTxIfAvailable(ctx, func(ctx context.Context) error {
				return s.generateDate(ctx, branch, date, result)
			})
		}()
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("doctor_branch_id", doctorBranchID.String()).
		Str("from", fromDate.Format("2006-01-02")).
		Str("to", toDate.Format("2006-01-02")).
		Int("created", len(result.Created)).
		Int("skipped_existing", result.SkippedExisting).
		Msg("slots generated")

	s.events.Publish(ctx, events.RouteSlotsGenerated, db.TenantFromContext(ctx), map[string]interface{}{
		"doctor_branch_id": doctorBranchID,
		"from":             fromDate.Format("2006-01-02"),
		"to":               toDate.Format("2006-01-02"),
		"created":          len(result.Created),
	})

	return result, nil
}

// generateDate materializes one calendar day. Caller holds the per-day lock.
func (s *Service) generateDate(ctx context.Context, branch *availability.DoctorBranch, date time.Time, result *GenerateResult) error {
	// A covering leave suppresses the whole day.
	_, err := s.rules.LeaveCovering(ctx, branch.ID, date)
	if err == nil {
		result.SkippedLeaveDays++
		return nil
	}
	if !errors.Is(err, availability.ErrNotFound) {
		return err
	}

	weekday := int(date.Weekday())
	entries, err := s.rules.ListActiveWeeklyEntriesByWeekday(ctx, branch.ID, weekday)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	windows, err := spansOf(date, clockWindows(entries))
	if err != nil {
		return err
	}
	// Overlapping entries should not exist, but union them defensively
	// before subtraction.
	open := interval.Normalize(windows)

	breaks, err := s.rules.ListActiveBreaksByWeekday(ctx, branch.ID, weekday)
	if err != nil {
		return err
	}
	breakSpans, err := spansOf(date, clockWindowsOfBreaks(breaks))
	if err != nil {
		return err
	}
	open = open.Subtract(breakSpans)

	blocks, err := s.rules.ListActiveBlockedSlotsByDate(ctx, branch.ID, date)
	if err != nil {
		return err
	}
	blockSpans, err := spansOf(date, clockWindowsOfBlocks(blocks))
	if err != nil {
		return err
	}
	open = open.Subtract(blockSpans)

	duration := time.Duration(branch.SlotDurationMinutes) * time.Minute
	candidates := open.Partition(duration)
	if len(candidates) == 0 {
		return nil
	}

	existing, err := s.repo.ListByDate(ctx, branch.ID, date)
	if err != nil {
		return err
	}

	now := s.now()
	for _, cand := range candidates {
		if overlapsAny(existing, cand.Start, cand.End) {
			result.SkippedExisting++
			continue
		}

		status := StatusOpen
		if cand.Start.Before(now) {
			status = StatusExpired
		}
		releaseAt, err := s.resolver.ResolveReleaseAt(ctx, branch.ID, cand.Start, weekday, clockRange(cand.Start, cand.End))
		if err != nil {
			return err
		}

		sl := &Slot{
			GlobalID:       uuid.New(),
			DoctorBranchID: branch.ID,
			Date:           date,
			StartTime:      cand.Start,
			EndTime:        cand.End,
			Status:         status,
			ReleaseAt:      releaseAt,
		}
		if err := s.repo.Create(ctx, sl); err != nil {
			return err
		}
		existing = append(existing, sl)
		result.Created = append(result.Created, sl)
	}
	return nil
}

type clockWindow struct {
	start, end string
}

func clockWindows(entries []*availability.WeeklyScheduleEntry) []clockWindow {
	out := make([]clockWindow, len(entries))
	for i, e := range entries {
		out[i] = clockWindow{e.StartTime, e.EndTime}
	}
	return out
}

func clockWindowsOfBreaks(breaks []*availability.ScheduleBreak) []clockWindow {
	out := make([]clockWindow, len(breaks))
	for i, b := range breaks {
		out[i] = clockWindow{b.StartTime, b.EndTime}
	}
	return out
}

func clockWindowsOfBlocks(blocks []*availability.BlockedSlot) []clockWindow {
	out := make([]clockWindow, len(blocks))
	for i, b := range blocks {
		out[i] = clockWindow{b.StartTime, b.EndTime}
	}
	return out
}

// spansOf anchors clock windows onto a concrete date. A window whose start
// is not before its end is rejected before anything is written.
func spansOf(date time.Time, windows []clockWindow) ([]interval.Span, error) {
	spans := make([]interval.Span, 0, len(windows))
	for _, w := range windows {
		start, err := availability.ParseClock(w.start)
		if err != nil {
			return nil, mapAvailabilityErr(err)
		}
		end, err := availability.ParseClock(w.end)
		if err != nil {
			return nil, mapAvailabilityErr(err)
		}
		if start >= end {
			return nil, fmt.Errorf("%w: window %s-%s has start at or after end", ErrInvalid, w.start, w.end)
		}
		spans = append(spans, interval.Span{
			Start: date.Add(time.Duration(start) * time.Minute),
			End:   date.Add(time.Duration(end) * time.Minute),
		})
	}
	return spans, nil
}

func overlapsAny(slots []*Slot, start, end time.Time) bool {
	for _, sl := range slots {
		if sl.Overlaps(start, end) {
			return true
		}
	}
	return false
}
