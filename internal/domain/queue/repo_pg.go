package queue

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

const entryCols = `id, patient_schedule_id, consulting_doctor_id, branch_id, patient_id, date,
	checkin_time, planned_sequence, actual_sequence, status, service_start_time, completed_time,
	estimated_consult_at, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PatientScheduleID, &e.ConsultingDoctorID, &e.BranchID, &e.PatientID,
		&e.Date, &e.CheckinTime, &e.PlannedSequence, &e.ActualSequence, &e.Status,
		&e.ServiceStartTime, &e.CompletedTime, &e.EstimatedConsultAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO live_visit_queue_entry
			(id, patient_schedule_id, consulting_doctor_id, branch_id, patient_id, date,
			 checkin_time, planned_sequence, actual_sequence, status, estimated_consult_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.PatientScheduleID, e.ConsultingDoctorID, e.BranchID, e.PatientID, e.Date,
		e.CheckinTime, e.PlannedSequence, e.ActualSequence, e.Status, e.EstimatedConsultAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM live_visit_queue_entry WHERE id = $1`, id))
}

func (r *repoPG) GetActiveByPatientSchedule(ctx context.Context, patientScheduleID uuid.UUID, date time.Time) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM live_visit_queue_entry
		 WHERE patient_schedule_id = $1 AND date = $2 AND status <> 'DONE'`,
		patientScheduleID, date))
}

func (r *repoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByBranchDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]*Entry, error) {
	return r.list(ctx,
		`SELECT `+entryCols+` FROM live_visit_queue_entry
		 WHERE branch_id = $1 AND date = $2
		 ORDER BY checkin_time, patient_schedule_id`,
		branchID, date)
}

func (r *repoPG) ListActiveByDoctorDate(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time) ([]*Entry, error) {
	return r.list(ctx,
		`SELECT `+entryCols+` FROM live_visit_queue_entry
		 WHERE consulting_doctor_id = $1 AND branch_id = $2 AND date = $3 AND status <> 'DONE'
		 ORDER BY checkin_time, patient_schedule_id`,
		doctorID, branchID, date)
}

func (r *repoPG) CountActiveByDoctorDate(ctx context.Context, doctorID, branchID uuid.UUID, date time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM live_visit_queue_entry
		 WHERE consulting_doctor_id = $1 AND branch_id = $2 AND date = $3 AND status <> 'DONE'`,
		doctorID, branchID, date).Scan(&n)
	return n, err
}

func (r *repoPG) Update(ctx context.Context, e *Entry) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE live_visit_queue_entry
		SET actual_sequence = $2, status = $3, service_start_time = $4, completed_time = $5,
		    estimated_consult_at = $6, updated_at = NOW()
		WHERE id = $1`,
		e.ID, e.ActualSequence, e.Status, e.ServiceStartTime, e.CompletedTime, e.EstimatedConsultAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
