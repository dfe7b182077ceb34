package scheduling

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sigchi/clinic/pkg/patch"
)

// Known appointment statuses. Status is an open string; only creation and
// cancel force a value.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Column widths of the appointments table.
const (
	maxStatusLength = 20
	maxReasonLength = 255
)

// Appointment maps to the appointments table.
type Appointment struct {
	ID          int64     `json:"id"`
	PatientID   int64     `json:"patient_id"`
	DoctorID    int64     `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	Reason      *string   `json:"reason"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateAppointmentInput is the creation payload. A status sent by the client
// is not part of it and is dropped by the decoder.
type CreateAppointmentInput struct {
	PatientID   int64     `json:"patient_id"`
	DoctorID    int64     `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      *string   `json:"reason"`
	Notes       *string   `json:"notes"`
}

// AppointmentPatch is a partial update. scheduled_at and status are not
// nullable.
type AppointmentPatch struct {
	ScheduledAt patch.Field[time.Time] `json:"scheduled_at"`
	Reason      patch.Field[string]    `json:"reason"`
	Notes       patch.Field[string]    `json:"notes"`
	Status      patch.Field[string]    `json:"status"`
}

func (p AppointmentPatch) applyTo(a *Appointment) error {
	if err := p.ScheduledAt.ApplyRequired("scheduled_at", &a.ScheduledAt); err != nil {
		return err
	}
	if err := p.Status.ApplyRequired("status", &a.Status); err != nil {
		return err
	}
	if p.Status.Set {
		if a.Status == "" {
			return fmt.Errorf("status cannot be empty")
		}
		if err := checkLength("status", &a.Status, maxStatusLength); err != nil {
			return err
		}
	}
	p.Reason.Apply(&a.Reason)
	p.Notes.Apply(&a.Notes)
	return checkLength("reason", a.Reason, maxReasonLength)
}

// checkLength counts characters, not bytes, as VARCHAR(n) does.
func checkLength(field string, v *string, max int) error {
	if v != nil && utf8.RuneCountInString(*v) > max {
		return fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return nil
}

// Filter restricts List. Nil fields do not filter.
type Filter struct {
	PatientID *int64
	DoctorID  *int64
}
