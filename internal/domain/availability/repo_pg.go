package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinq/clinq/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// -- DoctorBranch --

const doctorBranchCols = `id, global_id, doctor_id, branch_id, slot_duration_minutes,
	avg_consult_minutes, active, created_at, updated_at`

func scanDoctorBranch(row pgx.Row) (*DoctorBranch, error) {
	var d DoctorBranch
	err := row.Scan(&d.ID, &d.GlobalID, &d.DoctorID, &d.BranchID, &d.SlotDurationMinutes,
		&d.AvgConsultMinutes, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &d, nil
}

func (r *repoPG) CreateDoctorBranch(ctx context.Context, d *DoctorBranch) error {
	d.ID = uuid.New()
	if d.GlobalID == uuid.Nil {
		d.GlobalID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_branch (id, global_id, doctor_id, branch_id, slot_duration_minutes, avg_consult_minutes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.GlobalID, d.DoctorID, d.BranchID, d.SlotDurationMinutes, d.AvgConsultMinutes, d.Active)
	return err
}

func (r *repoPG) GetDoctorBranch(ctx context.Context, id uuid.UUID) (*DoctorBranch, error) {
	return scanDoctorBranch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorBranchCols+` FROM doctor_branch WHERE id = $1`, id))
}

func (r *repoPG) GetDoctorBranchByGlobalID(ctx context.Context, globalID uuid.UUID) (*DoctorBranch, error) {
	return scanDoctorBranch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorBranchCols+` FROM doctor_branch WHERE global_id = $1`, globalID))
}

func (r *repoPG) GetDoctorBranchByPair(ctx context.Context, doctorID, branchID uuid.UUID) (*DoctorBranch, error) {
	return scanDoctorBranch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorBranchCols+` FROM doctor_branch WHERE doctor_id = $1 AND branch_id = $2 AND active`,
		doctorID, branchID))
}

func (r *repoPG) ListDoctorBranches(ctx context.Context, limit, offset int) ([]*DoctorBranch, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_branch`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doctorBranchCols+` FROM doctor_branch ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*DoctorBranch
	for rows.Next() {
		d, err := scanDoctorBranch(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateDoctorBranch(ctx context.Context, d *DoctorBranch) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_branch SET slot_duration_minutes=$2, avg_consult_minutes=$3, active=$4, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.SlotDurationMinutes, d.AvgConsultMinutes, d.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateDoctorBranch flips the branch inactive and cascades to every
// rule entity it owns.
func (r *repoPG) DeactivateDoctorBranch(ctx context.Context, id uuid.UUID) error {
	c := r.conn(ctx)
	tag, err := c.Exec(ctx, `UPDATE doctor_branch SET active=false, updated_at=NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	for _, q := range []string{
		`UPDATE weekly_schedule_entry SET active=false, updated_at=NOW() WHERE doctor_branch_id = $1`,
		`UPDATE schedule_break SET active=false WHERE doctor_branch_id = $1`,
		`UPDATE doctor_leave SET active=false WHERE doctor_branch_id = $1`,
		`UPDATE blocked_slot SET active=false WHERE doctor_branch_id = $1`,
		`UPDATE release_rule SET active=false, updated_at=NOW() WHERE doctor_branch_id = $1`,
	} {
		if _, err := c.Exec(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

// -- WeeklyScheduleEntry --

const weeklyEntryCols = `id, doctor_branch_id, weekday, start_time, end_time, active, created_at, updated_at`

func scanWeeklyEntry(row pgx.Row) (*WeeklyScheduleEntry, error) {
	var e WeeklyScheduleEntry
	err := row.Scan(&e.ID, &e.DoctorBranchID, &e.Weekday, &e.StartTime, &e.EndTime,
		&e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &e, nil
}

func (r *repoPG) CreateWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO weekly_schedule_entry (id, doctor_branch_id, weekday, start_time, end_time, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.DoctorBranchID, e.Weekday, e.StartTime, e.EndTime, e.Active)
	return err
}

func (r *repoPG) GetWeeklyEntry(ctx context.Context, id uuid.UUID) (*WeeklyScheduleEntry, error) {
	return scanWeeklyEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+weeklyEntryCols+` FROM weekly_schedule_entry WHERE id = $1`, id))
}

func (r *repoPG) listWeeklyEntries(ctx context.Context, sql string, args ...interface{}) ([]*WeeklyScheduleEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*WeeklyScheduleEntry
	for rows.Next() {
		e, err := scanWeeklyEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) ListWeeklyEntries(ctx context.Context, doctorBranchID uuid.UUID) ([]*WeeklyScheduleEntry, error) {
	return r.listWeeklyEntries(ctx,
		`SELECT `+weeklyEntryCols+` FROM weekly_schedule_entry WHERE doctor_branch_id = $1 ORDER BY weekday, start_time`,
		doctorBranchID)
}

func (r *repoPG) ListActiveWeeklyEntriesByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*WeeklyScheduleEntry, error) {
	return r.listWeeklyEntries(ctx,
		`SELECT `+weeklyEntryCols+` FROM weekly_schedule_entry
		 WHERE doctor_branch_id = $1 AND weekday = $2 AND active ORDER BY start_time`,
		doctorBranchID, weekday)
}

func (r *repoPG) UpdateWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE weekly_schedule_entry SET weekday=$2, start_time=$3, end_time=$4, active=$5, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.Weekday, e.StartTime, e.EndTime, e.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) DeleteWeeklyEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM weekly_schedule_entry WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- ScheduleBreak --

const breakCols = `id, doctor_branch_id, weekday, start_time, end_time, active, created_at`

func scanBreak(row pgx.Row) (*ScheduleBreak, error) {
	var b ScheduleBreak
	err := row.Scan(&b.ID, &b.DoctorBranchID, &b.Weekday, &b.StartTime, &b.EndTime, &b.Active, &b.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &b, nil
}

func (r *repoPG) CreateBreak(ctx context.Context, b *ScheduleBreak) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO schedule_break (id, doctor_branch_id, weekday, start_time, end_time, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.DoctorBranchID, b.Weekday, b.StartTime, b.EndTime, b.Active)
	return err
}

func (r *repoPG) listBreaks(ctx context.Context, sql string, args ...interface{}) ([]*ScheduleBreak, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ScheduleBreak
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *repoPG) ListBreaks(ctx context.Context, doctorBranchID uuid.UUID) ([]*ScheduleBreak, error) {
	return r.listBreaks(ctx,
		`SELECT `+breakCols+` FROM schedule_break WHERE doctor_branch_id = $1 ORDER BY weekday, start_time`,
		doctorBranchID)
}

func (r *repoPG) ListActiveBreaksByWeekday(ctx context.Context, doctorBranchID uuid.UUID, weekday int) ([]*ScheduleBreak, error) {
	return r.listBreaks(ctx,
		`SELECT `+breakCols+` FROM schedule_break
		 WHERE doctor_branch_id = $1 AND weekday = $2 AND active ORDER BY start_time`,
		doctorBranchID, weekday)
}

func (r *repoPG) DeleteBreak(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule_break WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- DoctorLeave --

const leaveCols = `id, doctor_branch_id, leave_start, leave_end, reason, active, created_at`

func scanLeave(row pgx.Row) (*DoctorLeave, error) {
	var l DoctorLeave
	err := row.Scan(&l.ID, &l.DoctorBranchID, &l.LeaveStart, &l.LeaveEnd, &l.Reason, &l.Active, &l.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &l, nil
}

func (r *repoPG) CreateLeave(ctx context.Context, l *DoctorLeave) error {
	l.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_leave (id, doctor_branch_id, leave_start, leave_end, reason, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.ID, l.DoctorBranchID, l.LeaveStart, l.LeaveEnd, l.Reason, l.Active)
	return err
}

func (r *repoPG) ListLeaves(ctx context.Context, doctorBranchID uuid.UUID) ([]*DoctorLeave, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+leaveCols+` FROM doctor_leave WHERE doctor_branch_id = $1 ORDER BY leave_start`,
		doctorBranchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DoctorLeave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

// LeaveCovering returns an active leave whose range contains the date, or
// ErrNotFound.
func (r *repoPG) LeaveCovering(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) (*DoctorLeave, error) {
	return scanLeave(r.conn(ctx).QueryRow(ctx,
		`SELECT `+leaveCols+` FROM doctor_leave
		 WHERE doctor_branch_id = $1 AND active AND leave_start <= $2 AND leave_end >= $2
		 ORDER BY leave_start LIMIT 1`,
		doctorBranchID, date))
}

func (r *repoPG) DeleteLeave(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_leave WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- BlockedSlot --

const blockedCols = `id, doctor_branch_id, date, start_time, end_time, reason, active, created_at`

func scanBlocked(row pgx.Row) (*BlockedSlot, error) {
	var b BlockedSlot
	err := row.Scan(&b.ID, &b.DoctorBranchID, &b.Date, &b.StartTime, &b.EndTime, &b.Reason, &b.Active, &b.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &b, nil
}

func (r *repoPG) CreateBlockedSlot(ctx context.Context, b *BlockedSlot) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO blocked_slot (id, doctor_branch_id, date, start_time, end_time, reason, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.DoctorBranchID, b.Date, b.StartTime, b.EndTime, b.Reason, b.Active)
	return err
}

func (r *repoPG) listBlocked(ctx context.Context, sql string, args ...interface{}) ([]*BlockedSlot, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*BlockedSlot
	for rows.Next() {
		b, err := scanBlocked(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *repoPG) ListBlockedSlots(ctx context.Context, doctorBranchID uuid.UUID) ([]*BlockedSlot, error) {
	return r.listBlocked(ctx,
		`SELECT `+blockedCols+` FROM blocked_slot WHERE doctor_branch_id = $1 ORDER BY date, start_time`,
		doctorBranchID)
}

func (r *repoPG) ListActiveBlockedSlotsByDate(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) ([]*BlockedSlot, error) {
	return r.listBlocked(ctx,
		`SELECT `+blockedCols+` FROM blocked_slot
		 WHERE doctor_branch_id = $1 AND date = $2 AND active ORDER BY start_time`,
		doctorBranchID, date)
}

func (r *repoPG) DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM blocked_slot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- ReleaseRule --

const releaseRuleCols = `id, doctor_branch_id, scope, weekday, time_range, release_offset_minutes, active, created_at, updated_at`

func scanReleaseRule(row pgx.Row) (*ReleaseRule, error) {
	var rr ReleaseRule
	err := row.Scan(&rr.ID, &rr.DoctorBranchID, &rr.Scope, &rr.Weekday, &rr.TimeRange,
		&rr.ReleaseOffsetMinutes, &rr.Active, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &rr, nil
}

func (r *repoPG) CreateReleaseRule(ctx context.Context, rr *ReleaseRule) error {
	rr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO release_rule (id, doctor_branch_id, scope, weekday, time_range, release_offset_minutes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rr.ID, rr.DoctorBranchID, rr.Scope, rr.Weekday, rr.TimeRange, rr.ReleaseOffsetMinutes, rr.Active)
	return err
}

func (r *repoPG) GetReleaseRule(ctx context.Context, id uuid.UUID) (*ReleaseRule, error) {
	return scanReleaseRule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+releaseRuleCols+` FROM release_rule WHERE id = $1`, id))
}

func (r *repoPG) listReleaseRules(ctx context.Context, sql string, args ...interface{}) ([]*ReleaseRule, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ReleaseRule
	for rows.Next() {
		rr, err := scanReleaseRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rr)
	}
	return items, rows.Err()
}

func (r *repoPG) ListReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*ReleaseRule, error) {
	return r.listReleaseRules(ctx,
		`SELECT `+releaseRuleCols+` FROM release_rule WHERE doctor_branch_id = $1 ORDER BY created_at`,
		doctorBranchID)
}

func (r *repoPG) ListActiveReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*ReleaseRule, error) {
	return r.listReleaseRules(ctx,
		`SELECT `+releaseRuleCols+` FROM release_rule WHERE doctor_branch_id = $1 AND active ORDER BY created_at`,
		doctorBranchID)
}

func (r *repoPG) UpdateReleaseRule(ctx context.Context, rr *ReleaseRule) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE release_rule SET scope=$2, weekday=$3, time_range=$4, release_offset_minutes=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		rr.ID, rr.Scope, rr.Weekday, rr.TimeRange, rr.ReleaseOffsetMinutes, rr.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) DeleteReleaseRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM release_rule WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
