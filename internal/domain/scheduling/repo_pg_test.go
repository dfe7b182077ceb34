//go:build integration

package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigchi/clinic/internal/platform/db"
	"github.com/sigchi/clinic/internal/platform/db/dbtest"
)

// insertProfiles creates one patient and one doctor backed by fresh users.
func insertProfiles(t *testing.T, pool *pgxpool.Pool, tag string) (patientID, doctorID int64) {
	t.Helper()
	ctx := context.Background()
	var userP, userD int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, role_id)
		SELECT $1, 'x', id FROM roles WHERE name = 'patient' RETURNING id`, tag+"-p@example.com").Scan(&userP))
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, role_id)
		SELECT $1, 'x', id FROM roles WHERE name = 'doctor' RETURNING id`, tag+"-d@example.com").Scan(&userD))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO patients (user_id) VALUES ($1) RETURNING id`, userP).Scan(&patientID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO doctors (user_id) VALUES ($1) RETURNING id`, userD).Scan(&doctorID))
	return patientID, doctorID
}

func TestRepoPG_Appointments(t *testing.T) {
	pool := dbtest.Start(t)
	ctx := context.Background()
	repo := NewAppointmentRepoPG(pool)

	p1, d1 := insertProfiles(t, pool, "a")
	p2, d2 := insertProfiles(t, pool, "b")

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := &Appointment{PatientID: p1, DoctorID: d1, ScheduledAt: base, Status: StatusScheduled}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second := &Appointment{PatientID: p1, DoctorID: d2, ScheduledAt: base.Add(time.Hour), Status: StatusScheduled}
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, &Appointment{PatientID: p2, DoctorID: d2, ScheduledAt: base, Status: StatusScheduled}))

	items, total, err := repo.List(ctx, Filter{PatientID: &p1}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID, "newest scheduled first")

	_, total, err = repo.List(ctx, Filter{PatientID: &p1, DoctorID: &d2}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	reason := "follow-up"
	first.Status = StatusCompleted
	first.Reason = &reason
	require.NoError(t, repo.Update(ctx, first))
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "follow-up", *got.Reason)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), db.ErrNotFound)

	bad := &Appointment{PatientID: 999999, DoctorID: d1, ScheduledAt: base, Status: StatusScheduled}
	assert.True(t, db.IsForeignKeyViolation(repo.Create(ctx, bad), constraintPatientFK))
}
