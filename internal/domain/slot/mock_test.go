package slot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinq/clinq/internal/domain/availability"
	"github.com/clinq/clinq/internal/platform/keylock"
)

// mockRepo is an in-memory slot Repository.
type mockRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*Slot
}

func newMockRepo() *mockRepo {
	return &mockRepo{slots: make(map[uuid.UUID]*Slot)}
}

func (m *mockRepo) Create(ctx context.Context, s *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) GetByGlobalID(ctx context.Context, globalID uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.GlobalID == globalID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) ListByDate(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) ([]*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Slot
	for _, s := range m.slots {
		if s.DoctorBranchID == doctorBranchID && s.Date.Equal(date) {
			cp := *s
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
	return items, nil
}

func (m *mockRepo) ListByRange(ctx context.Context, doctorBranchID uuid.UUID, from, to time.Time, limit, offset int) ([]*Slot, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Slot
	for _, s := range m.slots {
		if s.DoctorBranchID == doctorBranchID && !s.Date.Before(from) && !s.Date.After(to) {
			cp := *s
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
	return items, len(items), nil
}

func (m *mockRepo) ListBookable(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time, now time.Time) ([]*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Slot
	for _, s := range m.slots {
		if s.Date.Equal(date) && s.Status == StatusOpen && !s.ReleaseAt.After(now) {
			cp := *s
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
	return items, nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	return nil
}

func (m *mockRepo) ExpireOpenBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		if s.Status == StatusOpen && s.EndTime.Before(cutoff) {
			s.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

// fakeRules is an in-memory AvailabilityStore.
type fakeRules struct {
	mu        sync.Mutex
	branch    *availability.DoctorBranch
	entries   []*availability.WeeklyScheduleEntry
	breaks    []*availability.ScheduleBreak
	leaves    []*availability.DoctorLeave
	blocks    []*availability.BlockedSlot
	rules     []*availability.ReleaseRule
	ruleCalls int
}

func newFakeRules() *fakeRules {
	return &fakeRules{
		branch: &availability.DoctorBranch{
			ID:                  uuid.New(),
			GlobalID:            uuid.New(),
			DoctorID:            uuid.New(),
			BranchID:            uuid.New(),
			SlotDurationMinutes: 15,
			AvgConsultMinutes:   15,
			Active:              true,
		},
	}
}

func (f *fakeRules) GetDoctorBranch(ctx context.Context, id uuid.UUID) (*availability.DoctorBranch, error) {
	if f.branch != nil && f.branch.ID == id {
		return f.branch, nil
	}
	return nil, availability.ErrNotFound
}

func (f *fakeRules) ListActiveWeeklyEntriesByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*availability.WeeklyScheduleEntry, error) {
	var out []*availability.WeeklyScheduleEntry
	for _, e := range f.entries {
		if e.DoctorBranchID == doctorBranchID && e.Weekday == weekday && e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRules) ListActiveBreaksByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*availability.ScheduleBreak, error) {
	var out []*availability.ScheduleBreak
	for _, b := range f.breaks {
		if b.DoctorBranchID == doctorBranchID && b.Weekday == weekday && b.Active {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRules) LeaveCovering(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) (*availability.DoctorLeave, error) {
	for _, l := range f.leaves {
		if l.DoctorBranchID == doctorBranchID && l.Active &&
			!date.Before(l.LeaveStart) && !date.After(l.LeaveEnd) {
			return l, nil
		}
	}
	return nil, availability.ErrNotFound
}

func (f *fakeRules) ListActiveBlockedSlotsByDate(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) ([]*availability.BlockedSlot, error) {
	var out []*availability.BlockedSlot
	for _, b := range f.blocks {
		if b.DoctorBranchID == doctorBranchID && b.Active && b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRules) ListActiveReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*availability.ReleaseRule, error) {
	f.mu.Lock()
	f.ruleCalls++
	f.mu.Unlock()
	var out []*availability.ReleaseRule
	for _, r := range f.rules {
		if r.DoctorBranchID == doctorBranchID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRules) addEntry(weekday int, start, end string) {
	f.entries = append(f.entries, &availability.WeeklyScheduleEntry{
		ID: uuid.New(), DoctorBranchID: f.branch.ID,
		Weekday: weekday, StartTime: start, EndTime: end, Active: true,
	})
}

func (f *fakeRules) addBreak(weekday int, start, end string) {
	f.breaks = append(f.breaks, &availability.ScheduleBreak{
		ID: uuid.New(), DoctorBranchID: f.branch.ID,
		Weekday: weekday, StartTime: start, EndTime: end, Active: true,
	})
}

// newTestService builds a slot service on in-memory fakes with a fixed
// clock.
func newTestService(rules *fakeRules, now time.Time) (*Service, *mockRepo) {
	repo := newMockRepo()
	resolver, _ := NewResolver(rules, 16)
	svc := NewService(repo, rules, resolver, keylock.New(), nil, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc, repo
}
