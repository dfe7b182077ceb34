package clinical

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sigchi/clinic/internal/platform/db"
)

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const historyCols = `id, patient_id, doctor_id, appointment_id, visit_date, diagnosis, treatment, notes, created_at, updated_at`

func scanHistory(row pgx.Row) (*ClinicalHistory, error) {
	var h ClinicalHistory
	err := row.Scan(&h.ID, &h.PatientID, &h.DoctorID, &h.AppointmentID, &h.VisitDate,
		&h.Diagnosis, &h.Treatment, &h.Notes, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, db.NoRows(err)
	}
	return &h, nil
}

func (r *historyRepoPG) Create(ctx context.Context, h *ClinicalHistory) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_histories (patient_id, doctor_id, appointment_id, visit_date, diagnosis, treatment, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		h.PatientID, h.DoctorID, h.AppointmentID, h.VisitDate, h.Diagnosis, h.Treatment, h.Notes,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
}

func (r *historyRepoPG) GetByID(ctx context.Context, id int64) (*ClinicalHistory, error) {
	return scanHistory(r.conn(ctx).QueryRow(ctx, `SELECT `+historyCols+` FROM clinical_histories WHERE id = $1`, id))
}

func (r *historyRepoPG) Update(ctx context.Context, h *ClinicalHistory) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE clinical_histories SET visit_date=$2, diagnosis=$3, treatment=$4, notes=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		h.ID, h.VisitDate, h.Diagnosis, h.Treatment, h.Notes,
	).Scan(&h.UpdatedAt)
	return db.NoRows(err)
}

func (r *historyRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinical_histories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *historyRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*ClinicalHistory, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_histories`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + historyCols + ` FROM clinical_histories` + where +
		fmt.Sprintf(` ORDER BY visit_date DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ClinicalHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}
