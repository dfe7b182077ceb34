//go:build integration

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigchi/clinic/internal/platform/db"
	"github.com/sigchi/clinic/internal/platform/db/dbtest"
)

func TestRepoPG_UserPatientDoctor(t *testing.T) {
	pool := dbtest.Start(t)
	ctx := context.Background()

	roles := NewRoleRepoPG(pool)
	users := NewUserRepoPG(pool)
	patients := NewPatientRepoPG(pool)
	doctors := NewDoctorRepoPG(pool)

	doctorRole, err := roles.GetByName(ctx, "doctor")
	require.NoError(t, err)

	u := &User{Email: "d@example.com", PasswordHash: "x", IsActive: true, RoleID: doctorRole.ID}
	require.NoError(t, users.Create(ctx, u))
	assert.NotZero(t, u.ID)
	assert.Equal(t, "doctor", u.RoleName)

	dup := &User{Email: "d@example.com", PasswordHash: "x", IsActive: true, RoleID: doctorRole.ID}
	err = users.Create(ctx, dup)
	assert.True(t, db.IsUniqueViolation(err, constraintUserEmail), "got %v", err)

	got, err := users.GetByEmail(ctx, "D@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	d := &Doctor{UserID: u.ID}
	require.NoError(t, doctors.Create(ctx, d))
	err = doctors.Create(ctx, &Doctor{UserID: u.ID})
	assert.True(t, db.IsUniqueViolation(err, constraintDoctorUserID), "got %v", err)

	birth := NewDate(1985, time.July, 20)
	p := &Patient{UserID: u.ID, BirthDate: &birth}
	require.NoError(t, patients.Create(ctx, p))

	loaded, err := patients.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.BirthDate)
	assert.True(t, loaded.BirthDate.Equal(birth.Time))

	loaded.BirthDate = nil
	require.NoError(t, patients.Update(ctx, loaded))
	again, err := patients.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, again.BirthDate)

	require.NoError(t, patients.Delete(ctx, p.ID))
	_, err = patients.GetByID(ctx, p.ID)
	assert.True(t, errors.Is(err, db.ErrNotFound))
	assert.ErrorIs(t, patients.Delete(ctx, p.ID), db.ErrNotFound)
}

func TestRepoPG_RegisterRollsBack(t *testing.T) {
	pool := dbtest.Start(t)
	ctx := context.Background()
	txm := db.NewTxManager(pool)

	users := NewUserRepoPG(pool)
	roles := NewRoleRepoPG(pool)
	role, err := roles.GetByName(ctx, "patient")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = txm.InTx(ctx, func(ctx context.Context) error {
		if err := users.Create(ctx, &User{Email: "tx@example.com", PasswordHash: "x", IsActive: true, RoleID: role.ID}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = users.GetByEmail(ctx, "tx@example.com")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
