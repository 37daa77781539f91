package queue

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

// mockRepo is an in-memory queue Repository.
type mockRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

func newMockRepo() *mockRepo {
	return &mockRepo{entries: make(map[uuid.UUID]*Entry)}
}

func (m *mockRepo) Create(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepo) GetActiveByPatientSchedule(ctx context.Context, patientScheduleID uuid.UUID, date time.Time) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.PatientScheduleID == patientScheduleID && e.Date.Equal(date) && e.Status != StatusDone {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func sortEntries(items []*Entry) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CheckinTime.Equal(items[j].CheckinTime) {
			return items[i].CheckinTime.Before(items[j].CheckinTime)
		}
		return items[i].PatientScheduleID.String() < items[j].PatientScheduleID.String()
	})
}

func (m *mockRepo) ListByBranchDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Entry
	for _, e := range m.entries {
		if e.BranchID == branchID && e.Date.Equal(date) {
			cp := *e
			items = append(items, &cp)
		}
	}
	sortEntries(items)
	return items, nil
}

func (m *mockRepo) ListActiveByDoctorDate(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Entry
	for _, e := range m.entries {
		if e.ConsultingDoctorID == doctorID && e.BranchID == branchID && e.Date.Equal(date) && e.Status != StatusDone {
			cp := *e
			items = append(items, &cp)
		}
	}
	sortEntries(items)
	return items, nil
}

func (m *mockRepo) CountActiveByDoctorDate(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.ConsultingDoctorID == doctorID && e.BranchID == branchID && e.Date.Equal(date) && e.Status != StatusDone {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) Update(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

// fakeBranches resolves every doctor-branch pair to one configured average.
type fakeBranches struct {
	avgConsultMinutes int
	missing           bool
}

func (f *fakeBranches) GetDoctorBranchByPair(ctx context.Context, doctorID, branchID uuid.UUID) (*availability.DoctorBranch, error) {
	if f.missing {
		return nil, availability.ErrNotFound
	}
	return &availability.DoctorBranch{
		ID:                uuid.New(),
		DoctorID:          doctorID,
		BranchID:          branchID,
		AvgConsultMinutes: f.avgConsultMinutes,
		Active:            true,
	}, nil
}

func newTestService(branches *fakeBranches, now time.Time) (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, branches, keylock.New(), nil, zerolog.Nop(), 15)
	svc.now = func() time.Time { return now }
	return svc, repo
}
