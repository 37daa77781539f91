package slot

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedSlot(t *testing.T, svc *Service, rules *fakeRules, startH, startM, endH, endM int) *Slot {
	t.Helper()
	sl := &Slot{
		DoctorBranchID: rules.branch.ID,
		StartTime:      at(monday, startH, startM),
		EndTime:        at(monday, endH, endM),
	}
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	return sl
}

func TestAssertNoConflict(t *testing.T) {
	rules := newFakeRules()
	svc, _ := newTestService(rules, testNow)
	seedSlot(t, svc, rules, 9, 0, 9, 30)
	ctx := context.Background()

	tests := []struct {
		name         string
		startH       int
		startM       int
		endH         int
		endM         int
		wantConflict bool
	}{
		{"identical interval", 9, 0, 9, 30, true},
		{"straddles existing start", 8, 45, 9, 15, true},
		{"straddles existing end", 9, 15, 9, 45, true},
		{"contained inside existing", 9, 10, 9, 20, true},
		{"contains existing", 8, 30, 10, 0, true},
		{"touching before is fine", 8, 30, 9, 0, false},
		{"touching after is fine", 9, 30, 10, 0, false},
		{"disjoint", 11, 0, 11, 30, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.AssertNoConflict(ctx, rules.branch.ID, monday,
				at(monday, tc.startH, tc.startM), at(monday, tc.endH, tc.endM))
			if tc.wantConflict && !errors.Is(err, ErrConflict) {
				t.Errorf("expected ErrConflict, got %v", err)
			}
			if !tc.wantConflict && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAssertNoConflict_InvalidInterval(t *testing.T) {
	rules := newFakeRules()
	svc, _ := newTestService(rules, testNow)

	err := svc.AssertNoConflict(context.Background(), rules.branch.ID, monday,
		at(monday, 10, 0), at(monday, 9, 0))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for inverted interval, got %v", err)
	}
	err = svc.AssertNoConflict(context.Background(), rules.branch.ID, monday,
		at(monday, 10, 0), at(monday, 10, 0))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for empty interval, got %v", err)
	}
}

// Manual slot creation runs the same guard; the second overlapping insert is
// rejected with the existing slot intact.
func TestCreateSlot_ConflictRejected(t *testing.T) {
	rules := newFakeRules()
	svc, repo := newTestService(rules, testNow)
	ctx := context.Background()
	seedSlot(t, svc, rules, 9, 0, 9, 30)

	err := svc.CreateSlot(ctx, &Slot{
		DoctorBranchID: rules.branch.ID,
		StartTime:      at(monday, 9, 15),
		EndTime:        at(monday, 9, 45),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	slots, _ := repo.ListByDate(ctx, rules.branch.ID, monday)
	if len(slots) != 1 {
		t.Errorf("expected 1 persisted slot, got %d", len(slots))
	}
}

func TestCreateSlot_UnknownBranch(t *testing.T) {
	rules := newFakeRules()
	svc, _ := newTestService(rules, testNow)

	other := newFakeRules() // different branch id
	err := svc.CreateSlot(context.Background(), &Slot{
		DoctorBranchID: other.branch.ID,
		StartTime:      at(monday, 9, 0),
		EndTime:        at(monday, 9, 30),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateSlot_DefaultsApplied(t *testing.T) {
	rules := newFakeRules()
	svc, _ := newTestService(rules, testNow)

	sl := seedSlot(t, svc, rules, 9, 0, 9, 30)
	if sl.GlobalID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("global id not minted")
	}
	if sl.Status != StatusOpen {
		t.Errorf("status %s, want OPEN", sl.Status)
	}
	if !sl.Date.Equal(monday) {
		t.Errorf("date %v, want %v", sl.Date, monday)
	}
}

// A manually entered slot whose start already lies in the past arrives
// EXPIRED, never OPEN.
func TestCreateSlot_PastStartExpires(t *testing.T) {
	rules := newFakeRules()
	svc, _ := newTestService(rules, at(monday, 12, 0))

	sl := &Slot{
		DoctorBranchID: rules.branch.ID,
		StartTime:      at(monday, 9, 0),
		EndTime:        at(monday, 9, 30),
	}
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("create: %v", err)
	}
	if sl.Status != StatusExpired {
		t.Errorf("status %s, want EXPIRED", sl.Status)
	}
}

func TestTransitions(t *testing.T) {
	rules := newFakeRules()
	svc, _ := newTestService(rules, testNow)
	ctx := context.Background()

	open := seedSlot(t, svc, rules, 9, 0, 9, 30)

	booked, err := svc.Book(ctx, open.ID)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.Status != StatusBooked {
		t.Fatalf("status %s after booking", booked.Status)
	}

	// Booking twice, or blocking a booked slot, is refused.
	if _, err := svc.Book(ctx, open.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("double booking: expected ErrConflict, got %v", err)
	}
	if _, err := svc.Block(ctx, open.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("blocking booked slot: expected ErrConflict, got %v", err)
	}

	other := seedSlot(t, svc, rules, 10, 0, 10, 30)
	blocked, err := svc.Block(ctx, other.ID)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if blocked.Status != StatusBlocked {
		t.Errorf("status %s after blocking", blocked.Status)
	}
	if _, err := svc.Book(ctx, other.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("booking blocked slot: expected ErrConflict, got %v", err)
	}
}

func TestExpireSweep(t *testing.T) {
	rules := newFakeRules()
	svc, repo := newTestService(rules, testNow)
	ctx := context.Background()

	past := seedSlot(t, svc, rules, 9, 0, 9, 30)
	future := seedSlot(t, svc, rules, 10, 0, 10, 30)

	svc.now = func() time.Time { return at(monday, 9, 45) }
	n, err := svc.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d slots, want 1", n)
	}
	got, _ := repo.GetByID(ctx, past.ID)
	if got.Status != StatusExpired {
		t.Errorf("past slot status %s, want EXPIRED", got.Status)
	}
	got, _ = repo.GetByID(ctx, future.ID)
	if got.Status != StatusOpen {
		t.Errorf("future slot status %s, want OPEN", got.Status)
	}
}
