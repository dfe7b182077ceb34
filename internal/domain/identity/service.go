package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sigchi/clinic/internal/platform/apperr"
	"github.com/sigchi/clinic/internal/platform/auth"
	"github.com/sigchi/clinic/internal/platform/db"
	"github.com/sigchi/clinic/internal/policy"
)

const (
	MsgEmailRegistered    = "Email already registered"
	MsgInvalidRoleID      = "Invalid role_id"
	MsgUserNotFound       = "User not found"
	MsgPatientNotFound    = "Patient not found"
	MsgPatientProfileDup  = "This user already has a patient profile"
	MsgDoctorNotFound     = "Doctor not found"
	MsgDoctorProfileDup   = "This user already has a doctor profile"
	MsgDoctorRoleRequired = "User must have role 'doctor' to create a doctor profile"
)

// Unique constraints declared in migrations/001_core.sql.
const (
	constraintUserEmail     = "users_email_key"
	constraintPatientUserID = "patients_user_id_key"
	constraintDoctorUserID  = "doctors_user_id_key"
)

type Service struct {
	roles    RoleRepository
	users    UserRepository
	patients PatientRepository
	doctors  DoctorRepository
	hasher   *auth.PasswordHasher
	engine   *policy.Engine
	tx       TxRunner
	logger   zerolog.Logger
}

func NewService(roles RoleRepository, users UserRepository, patients PatientRepository, doctors DoctorRepository,
	hasher *auth.PasswordHasher, engine *policy.Engine, tx TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		roles:    roles,
		users:    users,
		patients: patients,
		doctors:  doctors,
		hasher:   hasher,
		engine:   engine,
		tx:       tx,
		logger:   logger.With().Str("component", "identity").Logger(),
	}
}

func (s *Service) authorize(c policy.Caller, op policy.Operation, entity policy.Entity, t policy.Target) error {
	d := s.engine.Decide(c, op, entity, t)
	if !d.Allowed {
		s.logger.Info().
			Int64("user_id", c.UserID).
			Str("role", c.Role.String()).
			Str("entity", string(entity)).
			Str("operation", string(op)).
			Str("reason", d.Reason).
			Msg("access denied")
	}
	return d.Err()
}

// lookupErr maps a repository miss to NotFound with detail and anything else
// to Internal.
func lookupErr(err error, detail string) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound(detail)
	}
	return apperr.Internal(err)
}

// -- Users --

func (s *Service) CreateUser(ctx context.Context, caller policy.Caller, in CreateUserInput) (*User, error) {
	if err := s.authorize(caller, policy.OpCreate, policy.EntityUser, policy.Target{}); err != nil {
		return nil, err
	}
	in.Email = normalizeEmail(in.Email)
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, err
	}
	if err := validateNames(in.FirstName, in.LastName); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperr.New(apperr.KindDuplicateEmail, MsgEmailRegistered)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("lookup email: %w", err))
	}

	if _, err := s.roles.GetByID(ctx, in.RoleID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.Validation(MsgInvalidRoleID)
		}
		return nil, apperr.Internal(fmt.Errorf("lookup role: %w", err))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u := &User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		RoleID:       in.RoleID,
	}
	if err := s.createUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("role", u.RoleName).Msg("user created")
	return u, nil
}

func (s *Service) createUser(ctx context.Context, u *User) error {
	if err := s.users.Create(ctx, u); err != nil {
		if db.IsUniqueViolation(err, constraintUserEmail) {
			return apperr.New(apperr.KindDuplicateEmail, MsgEmailRegistered)
		}
		if db.IsForeignKeyViolation(err, "") {
			return apperr.Validation(MsgInvalidRoleID)
		}
		return apperr.Internal(fmt.Errorf("create user: %w", err))
	}
	return nil
}

func (s *Service) Me(ctx context.Context, caller policy.Caller) (*User, error) {
	if err := s.authorize(caller, policy.OpReadSelf, policy.EntityUser, policy.Target{}); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, lookupErr(err, MsgUserNotFound)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, caller policy.Caller, limit, offset int) ([]*User, int, error) {
	if err := s.authorize(caller, policy.OpList, policy.EntityUser, policy.Target{}); err != nil {
		return nil, 0, err
	}
	items, total, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Errorf("list users: %w", err))
	}
	return items, total, nil
}

// Register creates a patient user and its profile in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, err
	}
	if err := validateNames(in.FirstName, in.LastName); err != nil {
		return nil, err
	}
	if err := in.PatientFields.validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	reg := &Registration{}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
			return apperr.New(apperr.KindDuplicateEmail, MsgEmailRegistered)
		} else if !errors.Is(err, db.ErrNotFound) {
			return apperr.Internal(fmt.Errorf("lookup email: %w", err))
		}

		role, err := s.roles.GetByName(ctx, policy.RolePatient.String())
		if err != nil {
			return apperr.Internal(fmt.Errorf("lookup patient role: %w", err))
		}

		u := &User{
			Email:        in.Email,
			PasswordHash: hash,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			IsActive:     true,
			RoleID:       role.ID,
		}
		if err := s.createUser(ctx, u); err != nil {
			return err
		}

		p := &Patient{UserID: u.ID}
		in.PatientFields.applyTo(p)
		if err := s.createPatient(ctx, p); err != nil {
			return err
		}

		reg.User, reg.Patient = u, p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", reg.User.ID).Int64("patient_id", reg.Patient.ID).Msg("patient registered")
	return reg, nil
}

// SeedAdmin creates an admin user unless one with email already exists. It
// reports whether a user was created.
func (s *Service) SeedAdmin(ctx context.Context, email, password string) (*User, bool, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, false, err
	}
	if u, err := s.users.GetByEmail(ctx, email); err == nil {
		return u, false, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup email: %w", err)
	}

	role, err := s.roles.GetByName(ctx, policy.RoleAdmin.String())
	if err != nil {
		return nil, false, fmt.Errorf("lookup admin role: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}
	u := &User{Email: email, PasswordHash: hash, IsActive: true, RoleID: role.ID}
	if err := s.createUser(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, caller policy.Caller, in CreatePatientInput) (*Patient, error) {
	if err := s.authorize(caller, policy.OpCreate, policy.EntityPatient, policy.Target{}); err != nil {
		return nil, err
	}
	if err := in.PatientFields.validate(); err != nil {
		return nil, err
	}

	if _, err := s.patients.GetByUserID(ctx, in.UserID); err == nil {
		return nil, apperr.DuplicateProfile(MsgPatientProfileDup)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("lookup patient profile: %w", err))
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.InvalidReference(MsgUserNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("lookup user: %w", err))
	}

	p := &Patient{UserID: in.UserID}
	in.PatientFields.applyTo(p)
	if err := s.createPatient(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) createPatient(ctx context.Context, p *Patient) error {
	if err := s.patients.Create(ctx, p); err != nil {
		if db.IsUniqueViolation(err, constraintPatientUserID) {
			return apperr.DuplicateProfile(MsgPatientProfileDup)
		}
		if db.IsForeignKeyViolation(err, "") {
			return apperr.InvalidReference(MsgUserNotFound)
		}
		return apperr.Internal(fmt.Errorf("create patient: %w", err))
	}
	return nil
}

func (s *Service) ListPatients(ctx context.Context, caller policy.Caller, limit, offset int) ([]*Patient, int, error) {
	if err := s.authorize(caller, policy.OpList, policy.EntityPatient, policy.Target{}); err != nil {
		return nil, 0, err
	}
	items, total, err := s.patients.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Errorf("list patients: %w", err))
	}
	return items, total, nil
}

func (s *Service) MyPatient(ctx context.Context, caller policy.Caller) (*Patient, error) {
	if err := s.authorize(caller, policy.OpReadSelf, policy.EntityPatient, policy.Target{}); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByUserID(ctx, caller.UserID)
	if err != nil {
		return nil, lookupErr(err, policy.MsgPatientProfileMissing)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, caller policy.Caller, id int64) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, MsgPatientNotFound)
	}
	if err := s.authorize(caller, policy.OpRead, policy.EntityPatient, policy.Target{OwnerUserID: p.UserID}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, caller policy.Caller, id int64, pp PatientPatch) (*Patient, error) {
	if err := s.authorize(caller, policy.OpUpdate, policy.EntityPatient, policy.Target{}); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, MsgPatientNotFound)
	}
	pp.applyTo(p)
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, lookupErr(err, MsgPatientNotFound)
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, caller policy.Caller, id int64) error {
	if err := s.authorize(caller, policy.OpDelete, policy.EntityPatient, policy.Target{}); err != nil {
		return err
	}
	if err := s.patients.Delete(ctx, id); err != nil {
		return lookupErr(err, MsgPatientNotFound)
	}
	s.logger.Info().Int64("patient_id", id).Int64("by_user_id", caller.UserID).Msg("patient deleted")
	return nil
}

// PatientExists reports whether a patient profile with id exists.
func (s *Service) PatientExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// -- Doctors --

func (s *Service) CreateDoctor(ctx context.Context, caller policy.Caller, in CreateDoctorInput) (*Doctor, error) {
	if err := s.authorize(caller, policy.OpCreate, policy.EntityDoctor, policy.Target{}); err != nil {
		return nil, err
	}
	if err := checkLength("specialty", in.Specialty, maxSpecialtyLength); err != nil {
		return nil, err
	}

	if _, err := s.doctors.GetByUserID(ctx, in.UserID); err == nil {
		return nil, apperr.DuplicateProfile(MsgDoctorProfileDup)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("lookup doctor profile: %w", err))
	}

	u, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.InvalidReference(MsgUserNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("lookup user: %w", err))
	}
	if policy.ParseRole(u.RoleName) != policy.RoleDoctor {
		return nil, apperr.Validation(MsgDoctorRoleRequired)
	}

	d := &Doctor{UserID: in.UserID, Specialty: in.Specialty}
	if err := s.doctors.Create(ctx, d); err != nil {
		if db.IsUniqueViolation(err, constraintDoctorUserID) {
			return nil, apperr.DuplicateProfile(MsgDoctorProfileDup)
		}
		if db.IsForeignKeyViolation(err, "") {
			return nil, apperr.InvalidReference(MsgUserNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("create doctor: %w", err))
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, caller policy.Caller, limit, offset int) ([]*Doctor, int, error) {
	if err := s.authorize(caller, policy.OpList, policy.EntityDoctor, policy.Target{}); err != nil {
		return nil, 0, err
	}
	items, total, err := s.doctors.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Errorf("list doctors: %w", err))
	}
	return items, total, nil
}

func (s *Service) MyDoctor(ctx context.Context, caller policy.Caller) (*Doctor, error) {
	if err := s.authorize(caller, policy.OpReadSelf, policy.EntityDoctor, policy.Target{}); err != nil {
		return nil, err
	}
	d, err := s.doctors.GetByUserID(ctx, caller.UserID)
	if err != nil {
		return nil, lookupErr(err, policy.MsgDoctorProfileMissing)
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, caller policy.Caller, id int64) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, MsgDoctorNotFound)
	}
	if err := s.authorize(caller, policy.OpRead, policy.EntityDoctor, policy.Target{OwnerUserID: d.UserID}); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, caller policy.Caller, id int64, dp DoctorPatch) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, MsgDoctorNotFound)
	}
	if err := s.authorize(caller, policy.OpUpdate, policy.EntityDoctor, policy.Target{OwnerUserID: d.UserID}); err != nil {
		return nil, err
	}
	dp.Specialty.Apply(&d.Specialty)
	if err := checkLength("specialty", d.Specialty, maxSpecialtyLength); err != nil {
		return nil, err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, lookupErr(err, MsgDoctorNotFound)
	}
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, caller policy.Caller, id int64) error {
	if err := s.authorize(caller, policy.OpDelete, policy.EntityDoctor, policy.Target{}); err != nil {
		return err
	}
	if err := s.doctors.Delete(ctx, id); err != nil {
		return lookupErr(err, MsgDoctorNotFound)
	}
	s.logger.Info().Int64("doctor_id", id).Int64("by_user_id", caller.UserID).Msg("doctor deleted")
	return nil
}

// DoctorExists reports whether a doctor profile with id exists.
func (s *Service) DoctorExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.doctors.GetByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// -- Auth adapters --

func toAccount(u *User) *auth.Account {
	return &auth.Account{
		UserID:       u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.RoleName,
		Active:       u.IsActive,
	}
}

// AccountByEmail implements auth.AccountStore.
func (s *Service) AccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, err
	}
	return toAccount(u), nil
}

// AccountByID implements auth.AccountStore.
func (s *Service) AccountByID(ctx context.Context, id int64) (*auth.Account, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, err
	}
	return toAccount(u), nil
}

// ProfileIDs implements auth.ProfileLookup.
func (s *Service) ProfileIDs(ctx context.Context, userID int64) (patientID, doctorID *int64, err error) {
	p, err := s.patients.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		patientID = &p.ID
	case !errors.Is(err, db.ErrNotFound):
		return nil, nil, fmt.Errorf("lookup patient profile: %w", err)
	}

	d, err := s.doctors.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		doctorID = &d.ID
	case !errors.Is(err, db.ErrNotFound):
		return nil, nil, fmt.Errorf("lookup doctor profile: %w", err)
	}
	return patientID, doctorID, nil
}
