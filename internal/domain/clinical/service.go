package clinical

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
	MsgHistoryNotFound      = "Clinical history not found"
	MsgInvalidPatientID     = "Invalid patient_id"
	MsgInvalidDoctorID      = "Invalid doctor_id"
	MsgInvalidAppointmentID = "Invalid appointment_id"
	MsgAppointmentMismatch  = "Appointment does not belong to this patient and doctor"
)

// Foreign keys of the clinical_histories table, named by PostgreSQL's default
// <table>_<column>_fkey scheme in migrations/001_core.sql.
const (
	constraintPatientFK     = "clinical_histories_patient_id_fkey"
	constraintDoctorFK      = "clinical_histories_doctor_id_fkey"
	constraintAppointmentFK = "clinical_histories_appointment_id_fkey"
)

type Service struct {
	histories    HistoryRepository
	profiles     ProfileDirectory
	appointments AppointmentLookup
	engine       *policy.Engine
	logger       zerolog.Logger
}

func NewService(histories HistoryRepository, profiles ProfileDirectory, appointments AppointmentLookup,
	engine *policy.Engine, logger zerolog.Logger) *Service {
	return &Service{
		histories:    histories,
		profiles:     profiles,
		appointments: appointments,
		engine:       engine,
		logger:       logger.With().Str("component", "clinical").Logger(),
	}
}

func (s *Service) authorize(c policy.Caller, op policy.Operation, t policy.Target) (policy.Decision, error) {
	d := s.engine.Decide(c, op, policy.EntityClinicalHistory, t)
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

func lookupErr(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound(MsgHistoryNotFound)
	}
	return apperr.Internal(err)
}

func (s *Service) get(ctx context.Context, id int64) (*ClinicalHistory, error) {
	h, err := s.histories.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	return h, nil
}

// checkReferences validates the patient, doctor and optional appointment of
// a new history. A linked appointment must be between the same two parties.
func (s *Service) checkReferences(ctx context.Context, in CreateHistoryInput) error {
	ok, err := s.profiles.PatientExists(ctx, in.PatientID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("lookup patient: %w", err))
	}
	if !ok {
		return apperr.InvalidReference(MsgInvalidPatientID)
	}
	ok, err = s.profiles.DoctorExists(ctx, in.DoctorID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("lookup doctor: %w", err))
	}
	if !ok {
		return apperr.InvalidReference(MsgInvalidDoctorID)
	}
	if in.AppointmentID == nil {
		return nil
	}
	patientID, doctorID, err := s.appointments.Parties(ctx, *in.AppointmentID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.InvalidReference(MsgInvalidAppointmentID)
		}
		return apperr.Internal(fmt.Errorf("lookup appointment: %w", err))
	}
	if patientID != in.PatientID || doctorID != in.DoctorID {
		return apperr.InvalidReference(MsgAppointmentMismatch)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, caller policy.Caller, in CreateHistoryInput) (*ClinicalHistory, error) {
	if in.VisitDate.IsZero() {
		return nil, apperr.Validation("visit_date is required")
	}
	if err := s.checkReferences(ctx, in); err != nil {
		return nil, err
	}
	target := policy.Target{PatientID: in.PatientID, DoctorID: in.DoctorID}
	if _, err := s.authorize(caller, policy.OpCreate, target); err != nil {
		return nil, err
	}

	h := &ClinicalHistory{
		PatientID:     in.PatientID,
		DoctorID:      in.DoctorID,
		AppointmentID: in.AppointmentID,
		VisitDate:     in.VisitDate,
		Diagnosis:     in.Diagnosis,
		Treatment:     in.Treatment,
		Notes:         in.Notes,
	}
	if err := s.histories.Create(ctx, h); err != nil {
		switch {
		case db.IsForeignKeyViolation(err, constraintPatientFK):
			return nil, apperr.InvalidReference(MsgInvalidPatientID)
		case db.IsForeignKeyViolation(err, constraintDoctorFK):
			return nil, apperr.InvalidReference(MsgInvalidDoctorID)
		case db.IsForeignKeyViolation(err, constraintAppointmentFK):
			return nil, apperr.InvalidReference(MsgInvalidAppointmentID)
		}
		return nil, apperr.Internal(fmt.Errorf("create clinical history: %w", err))
	}
	s.logger.Info().Int64("history_id", h.ID).Int64("patient_id", h.PatientID).
		Int64("by_user_id", caller.UserID).Msg("clinical history created")
	return h, nil
}

func (s *Service) List(ctx context.Context, caller policy.Caller, limit, offset int) ([]*ClinicalHistory, int, error) {
	d, err := s.authorize(caller, policy.OpList, policy.Target{})
	if err != nil {
		return nil, 0, err
	}
	return s.list(ctx, d.Scope, limit, offset)
}

// ListByPatient returns one patient's histories. Doctors only see the entries
// they authored.
func (s *Service) ListByPatient(ctx context.Context, caller policy.Caller, patientID int64, limit, offset int) ([]*ClinicalHistory, int, error) {
	d, err := s.authorize(caller, policy.OpListByPatient, policy.Target{PatientID: patientID})
	if err != nil {
		return nil, 0, err
	}
	return s.list(ctx, d.Scope, limit, offset)
}

func (s *Service) list(ctx context.Context, scope policy.Scope, limit, offset int) ([]*ClinicalHistory, int, error) {
	f := Filter{PatientID: scope.PatientID, DoctorID: scope.DoctorID}
	items, total, err := s.histories.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Errorf("list clinical histories: %w", err))
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, caller policy.Caller, id int64) (*ClinicalHistory, error) {
	h, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(caller, policy.OpRead, targetOf(h)); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) Update(ctx context.Context, caller policy.Caller, id int64, p HistoryPatch) (*ClinicalHistory, error) {
	h, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(caller, policy.OpUpdate, targetOf(h)); err != nil {
		return nil, err
	}
	if err := p.applyTo(h); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := s.histories.Update(ctx, h); err != nil {
		return nil, lookupErr(err)
	}
	return h, nil
}

func (s *Service) Delete(ctx context.Context, caller policy.Caller, id int64) error {
	if _, err := s.authorize(caller, policy.OpDelete, policy.Target{}); err != nil {
		return err
	}
	if err := s.histories.Delete(ctx, id); err != nil {
		return lookupErr(err)
	}
	s.logger.Info().Int64("history_id", id).Int64("by_user_id", caller.UserID).Msg("clinical history deleted")
	return nil
}

func targetOf(h *ClinicalHistory) policy.Target {
	return policy.Target{PatientID: h.PatientID, DoctorID: h.DoctorID}
}
