package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sigchi/clinic/internal/platform/apperr"
	"github.com/sigchi/clinic/internal/platform/db"
	"github.com/sigchi/clinic/internal/policy"
)

const (
	MsgAppointmentNotFound = "Appointment not found"
	MsgInvalidPatientID    = "Invalid patient_id"
	MsgInvalidDoctorID     = "Invalid doctor_id"
)

// Foreign keys of the appointments table, named by PostgreSQL's default
// <table>_<column>_fkey scheme in migrations/001_core.sql.
const (
	constraintPatientFK = "appointments_patient_id_fkey"
	constraintDoctorFK  = "appointments_doctor_id_fkey"
)

type Service struct {
	appointments AppointmentRepository
	profiles     ProfileDirectory
	engine       *policy.Engine
	logger       zerolog.Logger
}

func NewService(appts AppointmentRepository, profiles ProfileDirectory, engine *policy.Engine, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appts,
		profiles:     profiles,
		engine:       engine,
		logger:       logger.With().Str("component", "scheduling").Logger(),
	}
}

func (s *Service) authorize(c policy.Caller, op policy.Operation, t policy.Target) (policy.Decision, error) {
	d := s.engine.Decide(c, op, policy.EntityAppointment, t)
	if !d.Allowed {
		s.logger.Info().
			Int64("user_id", c.UserID).
			Str("role", c.Role.String()).
			Str("operation", string(op)).
			Str("reason", d.Reason).
			Msg("access denied")
	}
	return d, d.Err()
}

func (s *Service) get(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound(MsgAppointmentNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("get appointment: %w", err))
	}
	return a, nil
}

func (s *Service) checkReferences(ctx context.Context, patientID, doctorID int64) error {
	ok, err := s.profiles.PatientExists(ctx, patientID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("lookup patient: %w", err))
	}
	if !ok {
		return apperr.InvalidReference(MsgInvalidPatientID)
	}
	ok, err = s.profiles.DoctorExists(ctx, doctorID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("lookup doctor: %w", err))
	}
	if !ok {
		return apperr.InvalidReference(MsgInvalidDoctorID)
	}
	return nil
}

// Create books an appointment. References are validated before ownership and
// the stored status is always "scheduled".
func (s *Service) Create(ctx context.Context, caller policy.Caller, in CreateAppointmentInput) (*Appointment, error) {
	if in.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduled_at is required")
	}
	if err := checkLength("reason", in.Reason, maxReasonLength); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := s.checkReferences(ctx, in.PatientID, in.DoctorID); err != nil {
		return nil, err
	}
	target := policy.Target{PatientID: in.PatientID, DoctorID: in.DoctorID}
	if _, err := s.authorize(caller, policy.OpCreate, target); err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:   in.PatientID,
		DoctorID:    in.DoctorID,
		ScheduledAt: in.ScheduledAt,
		Status:      StatusScheduled,
		Reason:      in.Reason,
		Notes:       in.Notes,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		switch {
		case db.IsForeignKeyViolation(err, constraintPatientFK):
			return nil, apperr.InvalidReference(MsgInvalidPatientID)
		case db.IsForeignKeyViolation(err, constraintDoctorFK):
			return nil, apperr.InvalidReference(MsgInvalidDoctorID)
		}
		return nil, apperr.Internal(fmt.Errorf("create appointment: %w", err))
	}
	return a, nil
}

// List returns the appointments visible to caller: all for admin, own for
// doctors and patients.
func (s *Service) List(ctx context.Context, caller policy.Caller, limit, offset int) ([]*Appointment, int, error) {
	d, err := s.authorize(caller, policy.OpList, policy.Target{})
	if err != nil {
		return nil, 0, err
	}
	f := Filter{PatientID: d.Scope.PatientID, DoctorID: d.Scope.DoctorID}
	items, total, err := s.appointments.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Errorf("list appointments: %w", err))
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, caller policy.Caller, id int64) (*Appointment, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(caller, policy.OpRead, targetOf(a)); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, caller policy.Caller, id int64, p AppointmentPatch) (*Appointment, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(caller, policy.OpUpdate, targetOf(a)); err != nil {
		return nil, err
	}
	if err := p.applyTo(a); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound(MsgAppointmentNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("update appointment: %w", err))
	}
	return a, nil
}

// Cancel sets the status to "cancelled". Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, caller policy.Caller, id int64) (*Appointment, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(caller, policy.OpCancel, targetOf(a)); err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return a, nil
	}
	a.Status = StatusCancelled
	if err := s.appointments.Update(ctx, a); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound(MsgAppointmentNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("cancel appointment: %w", err))
	}
	s.logger.Info().Int64("appointment_id", a.ID).Int64("by_user_id", caller.UserID).Msg("appointment cancelled")
	return a, nil
}

// Delete removes an appointment. Linked clinical histories keep their row
// with appointment_id cleared.
func (s *Service) Delete(ctx context.Context, caller policy.Caller, id int64) error {
	if _, err := s.authorize(caller, policy.OpDelete, policy.Target{}); err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound(MsgAppointmentNotFound)
		}
		return apperr.Internal(fmt.Errorf("delete appointment: %w", err))
	}
	s.logger.Info().Int64("appointment_id", id).Int64("by_user_id", caller.UserID).Msg("appointment deleted")
	return nil
}

// Parties returns the patient and doctor of an appointment without an access
// check. A missing appointment yields db.ErrNotFound.
func (s *Service) Parties(ctx context.Context, id int64) (patientID, doctorID int64, err error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return a.PatientID, a.DoctorID, nil
}

func targetOf(a *Appointment) policy.Target {
	return policy.Target{PatientID: a.PatientID, DoctorID: a.DoctorID}
}
