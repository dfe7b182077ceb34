package clinical

import (
	"time"

	"github.com/sigchi/clinic/pkg/patch"
)

// ClinicalHistory maps to the clinical_histories table.
type ClinicalHistory struct {
	ID            int64     `json:"id"`
	PatientID     int64     `json:"patient_id"`
	DoctorID      int64     `json:"doctor_id"`
	AppointmentID *int64    `json:"appointment_id"`
	VisitDate     time.Time `json:"visit_date"`
	Diagnosis     *string   `json:"diagnosis"`
	Treatment     *string   `json:"treatment"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CreateHistoryInput struct {
	PatientID     int64     `json:"patient_id"`
	DoctorID      int64     `json:"doctor_id"`
	AppointmentID *int64    `json:"appointment_id"`
	VisitDate     time.Time `json:"visit_date"`
	Diagnosis     *string   `json:"diagnosis"`
	Treatment     *string   `json:"treatment"`
	Notes         *string   `json:"notes"`
}

// HistoryPatch is a partial update. Patient, doctor and appointment links are
// fixed at creation.
type HistoryPatch struct {
	VisitDate patch.Field[time.Time] `json:"visit_date"`
	Diagnosis patch.Field[string]    `json:"diagnosis"`
	Treatment patch.Field[string]    `json:"treatment"`
	Notes     patch.Field[string]    `json:"notes"`
}

func (p HistoryPatch) applyTo(h *ClinicalHistory) error {
	if err := p.VisitDate.ApplyRequired("visit_date", &h.VisitDate); err != nil {
		return err
	}
	p.Diagnosis.Apply(&h.Diagnosis)
	p.Treatment.Apply(&h.Treatment)
	p.Notes.Apply(&h.Notes)
	return nil
}

// Filter restricts List. Nil fields do not filter.
type Filter struct {
	PatientID *int64
	DoctorID  *int64
}
