package slot

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

const slotCols = `id, global_id, doctor_branch_id, date, start_time, end_time, status, release_at, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.GlobalID, &s.DoctorBranchID, &s.Date, &s.StartTime, &s.EndTime,
		&s.Status, &s.ReleaseAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Slot) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO slot (id, global_id, doctor_branch_id, date, start_time, end_time, status, release_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.GlobalID, s.DoctorBranchID, s.Date, s.StartTime, s.EndTime, s.Status, s.ReleaseAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM slot WHERE id = $1`, id))
}

func (r *repoPG) GetByGlobalID(ctx context.Context, globalID uuid.UUID) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM slot WHERE global_id = $1`, globalID))
}

func (r *repoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByDate(ctx context.Context, doctorBranchID uuid.UUID, date time.Time) ([]*Slot, error) {
	return r.list(ctx,
		`SELECT `+slotCols+` FROM slot WHERE doctor_branch_id = $1 AND date = $2 ORDER BY start_time`,
		doctorBranchID, date)
}

func (r *repoPG) ListByRange(ctx context.Context, doctorBranchID uuid.UUID, from, to time.Time, limit, offset int) ([]*Slot, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM slot WHERE doctor_branch_id = $1 AND date BETWEEN $2 AND $3`,
		doctorBranchID, from, to).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.list(ctx,
		`SELECT `+slotCols+` FROM slot
		 WHERE doctor_branch_id = $1 AND date BETWEEN $2 AND $3
		 ORDER BY date, start_time LIMIT $4 OFFSET $5`,
		doctorBranchID, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) ListBookable(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time, now time.Time) ([]*Slot, error) {
	return r.list(ctx, `
		SELECT s.id, s.global_id, s.doctor_branch_id, s.date, s.start_time, s.end_time, s.status, s.release_at, s.created_at, s.updated_at
		FROM slot s
		JOIN doctor_branch d ON d.id = s.doctor_branch_id
		WHERE d.doctor_id = $1 AND d.branch_id = $2 AND s.date = $3
		  AND s.status = 'OPEN' AND s.release_at <= $4
		ORDER BY s.start_time`,
		doctorID, branchID, date, now)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE slot SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ExpireOpenBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE slot SET status = 'EXPIRED', updated_at = NOW() WHERE status = 'OPEN' AND end_time < $1`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
