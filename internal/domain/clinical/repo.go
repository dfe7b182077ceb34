package clinical

import (
	"context"
)

type HistoryRepository interface {
	Create(ctx context.Context, h *ClinicalHistory) error
	GetByID(ctx context.Context, id int64) (*ClinicalHistory, error)
	Update(ctx context.Context, h *ClinicalHistory) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*ClinicalHistory, int, error)
}

// ProfileDirectory answers whether referenced patient and doctor profiles
// exist.
type ProfileDirectory interface {
	PatientExists(ctx context.Context, id int64) (bool, error)
	DoctorExists(ctx context.Context, id int64) (bool, error)
}

// AppointmentLookup resolves the parties of an appointment. A missing
// appointment is reported as db.ErrNotFound.
type AppointmentLookup interface {
	Parties(ctx context.Context, id int64) (patientID, doctorID int64, err error)
}
