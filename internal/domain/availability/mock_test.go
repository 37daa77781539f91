package availability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// mockRepo is an in-memory Repository for service tests.
type mockRepo struct {
	mu       sync.Mutex
	branches map[uuid.UUID]*DoctorBranch
	entries  map[uuid.UUID]*WeeklyScheduleEntry
	breaks   map[uuid.UUID]*ScheduleBreak
	leaves   map[uuid.UUID]*DoctorLeave
	blocked  map[uuid.UUID]*BlockedSlot
	rules    map[uuid.UUID]*ReleaseRule
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		branches: make(map[uuid.UUID]*DoctorBranch),
		entries:  make(map[uuid.UUID]*WeeklyScheduleEntry),
		breaks:   make(map[uuid.UUID]*ScheduleBreak),
		leaves:   make(map[uuid.UUID]*DoctorLeave),
		blocked:  make(map[uuid.UUID]*BlockedSlot),
		rules:    make(map[uuid.UUID]*ReleaseRule),
	}
}

func (m *mockRepo) CreateDoctorBranch(ctx context.Context, d *DoctorBranch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	if d.GlobalID == uuid.Nil {
		d.GlobalID = uuid.New()
	}
	cp := *d
	m.branches[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetDoctorBranch(ctx context.Context, id uuid.UUID) (*DoctorBranch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.branches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) GetDoctorBranchByGlobalID(ctx context.Context, globalID uuid.UUID) (*DoctorBranch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.branches {
		if d.GlobalID == globalID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetDoctorBranchByPair(ctx context.Context, doctorID, branchID uuid.UUID) (*DoctorBranch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.branches {
		if d.DoctorID == doctorID && d.BranchID == branchID && d.Active {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) ListDoctorBranches(ctx context.Context, limit, offset int) ([]*DoctorBranch, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*DoctorBranch
	for _, d := range m.branches {
		cp := *d
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *mockRepo) UpdateDoctorBranch(ctx context.Context, d *DoctorBranch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.branches[d.ID]; !ok {
		return ErrNotFound
	}
	cp := *d
	m.branches[d.ID] = &cp
	return nil
}

func (m *mockRepo) DeactivateDoctorBranch(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.branches[id]
	if !ok {
		return ErrNotFound
	}
	d.Active = false
	for _, e := range m.entries {
		if e.DoctorBranchID == id {
			e.Active = false
		}
	}
	for _, b := range m.breaks {
		if b.DoctorBranchID == id {
			b.Active = false
		}
	}
	for _, l := range m.leaves {
		if l.DoctorBranchID == id {
			l.Active = false
		}
	}
	for _, b := range m.blocked {
		if b.DoctorBranchID == id {
			b.Active = false
		}
	}
	for _, r := range m.rules {
		if r.DoctorBranchID == id {
			r.Active = false
		}
	}
	return nil
}

func (m *mockRepo) CreateWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockRepo) GetWeeklyEntry(ctx context.Context, id uuid.UUID) (*WeeklyScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepo) ListWeeklyEntries(ctx context.Context, doctorBranchID uuid.UUID) ([]*WeeklyScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*WeeklyScheduleEntry
	for _, e := range m.entries {
		if e.DoctorBranchID == doctorBranchID {
			cp := *e
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) ListActiveWeeklyEntriesByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*WeeklyScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*WeeklyScheduleEntry
	for _, e := range m.entries {
		if e.DoctorBranchID == doctorBranchID && e.Weekday == weekday && e.Active {
			cp := *e
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) UpdateWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockRepo) DeleteWeeklyEntry(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *mockRepo) CreateBreak(ctx context.Context, b *ScheduleBreak) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	cp := *b
	m.breaks[b.ID] = &cp
	return nil
}

func (m *mockRepo) ListBreaks(ctx context.Context, doctorBranchID uuid.UUID) ([]*ScheduleBreak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*ScheduleBreak
	for _, b := range m.breaks {
		if b.DoctorBranchID == doctorBranchID {
			cp := *b
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) ListActiveBreaksByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*ScheduleBreak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*ScheduleBreak
	for _, b := range m.breaks {
		if b.DoctorBranchID == doctorBranchID && b.Weekday == weekday && b.Active {
			cp := *b
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) DeleteBreak(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.breaks[id]; !ok {
		return ErrNotFound
	}
	delete(m.breaks, id)
	return nil
}

func (m *mockRepo) CreateLeave(ctx context.Context, l *DoctorLeave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	cp := *l
	m.leaves[l.ID] = &cp
	return nil
}

func (m *mockRepo) ListLeaves(ctx context.Context, doctorBranchID uuid.UUID) ([]*DoctorLeave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*DoctorLeave
	for _, l := range m.leaves {
		if l.DoctorBranchID == doctorBranchID {
			cp := *l
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) LeaveCovering(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) (*DoctorLeave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leaves {
		if l.DoctorBranchID == doctorBranchID && l.Active &&
			!date.Before(l.LeaveStart) && !date.After(l.LeaveEnd) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) DeleteLeave(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leaves[id]; !ok {
		return ErrNotFound
	}
	delete(m.leaves, id)
	return nil
}

func (m *mockRepo) CreateBlockedSlot(ctx context.Context, b *BlockedSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	cp := *b
	m.blocked[b.ID] = &cp
	return nil
}

func (m *mockRepo) ListBlockedSlots(ctx context.Context, doctorBranchID uuid.UUID) ([]*BlockedSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*BlockedSlot
	for _, b := range m.blocked {
		if b.DoctorBranchID == doctorBranchID {
			cp := *b
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) ListActiveBlockedSlotsByDate(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) ([]*BlockedSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*BlockedSlot
	for _, b := range m.blocked {
		if b.DoctorBranchID == doctorBranchID && b.Active && b.Date.Equal(date) {
			cp := *b
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocked[id]; !ok {
		return ErrNotFound
	}
	delete(m.blocked, id)
	return nil
}

func (m *mockRepo) CreateReleaseRule(ctx context.Context, r *ReleaseRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetReleaseRule(ctx context.Context, id uuid.UUID) (*ReleaseRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) ListReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*ReleaseRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*ReleaseRule
	for _, r := range m.rules {
		if r.DoctorBranchID == doctorBranchID {
			cp := *r
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) ListActiveReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*ReleaseRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*ReleaseRule
	for _, r := range m.rules {
		if r.DoctorBranchID == doctorBranchID && r.Active {
			cp := *r
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) UpdateReleaseRule(ctx context.Context, r *ReleaseRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *mockRepo) DeleteReleaseRule(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return ErrNotFound
	}
	delete(m.rules, id)
	return nil
}
