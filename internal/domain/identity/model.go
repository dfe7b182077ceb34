package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sigchi/clinic/internal/platform/apperr"
	"github.com/sigchi/clinic/internal/platform/auth"
	"github.com/sigchi/clinic/pkg/patch"
)

// Role maps to the roles table.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User maps to the users table joined with its role name.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    *string   `json:"first_name"`
	LastName     *string   `json:"last_name"`
	IsActive     bool      `json:"is_active"`
	RoleID       int64     `json:"role_id"`
	RoleName     string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Patient maps to the patients table.
type Patient struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	DocumentType    *string   `json:"document_type"`
	DocumentNumber  *string   `json:"document_number"`
	Phone           *string   `json:"phone"`
	Address         *string   `json:"address"`
	BirthDate       *Date     `json:"birth_date"`
	PersonalHistory *string   `json:"personal_history"`
	FamilyHistory   *string   `json:"family_history"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Specialty *string   `json:"specialty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Column widths from the schema. VARCHAR(n) counts characters.
const (
	maxEmailLength          = 255
	maxNameLength           = 100
	maxDocumentTypeLength   = 20
	maxDocumentNumberLength = 50
	maxPhoneLength          = 30
	maxAddressLength        = 255
	maxSpecialtyLength      = 100
)

func checkLength(field string, v *string, max int) error {
	if v != nil && utf8.RuneCountInString(*v) > max {
		return apperr.Validation(fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return nil
}

func validateNames(first, last *string) error {
	if err := checkLength("first_name", first, maxNameLength); err != nil {
		return err
	}
	return checkLength("last_name", last, maxNameLength)
}

func (p *Patient) validate() error {
	checks := []struct {
		field string
		v     *string
		max   int
	}{
		{"document_type", p.DocumentType, maxDocumentTypeLength},
		{"document_number", p.DocumentNumber, maxDocumentNumberLength},
		{"phone", p.Phone, maxPhoneLength},
		{"address", p.Address, maxAddressLength},
	}
	for _, c := range checks {
		if err := checkLength(c.field, c.v, c.max); err != nil {
			return err
		}
	}
	return nil
}

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

func dateToTime(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func timeToDate(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
	return &d
}

// CreateUserInput is the admin user-creation payload.
type CreateUserInput struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	RoleID    int64   `json:"role_id"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// PatientFields are the profile attributes shared by create and register.
type PatientFields struct {
	DocumentType    *string `json:"document_type"`
	DocumentNumber  *string `json:"document_number"`
	Phone           *string `json:"phone"`
	Address         *string `json:"address"`
	BirthDate       *Date   `json:"birth_date"`
	PersonalHistory *string `json:"personal_history"`
	FamilyHistory   *string `json:"family_history"`
}

type CreatePatientInput struct {
	UserID int64 `json:"user_id"`
	PatientFields
}

// RegisterInput is the public self-registration payload: a patient user and
// its profile.
type RegisterInput struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	PatientFields
}

// Registration is returned by Register.
type Registration struct {
	User    *User    `json:"user"`
	Patient *Patient `json:"patient"`
}

// PatientPatch is a partial patient update. Every column is nullable.
type PatientPatch struct {
	DocumentType    patch.Field[string] `json:"document_type"`
	DocumentNumber  patch.Field[string] `json:"document_number"`
	Phone           patch.Field[string] `json:"phone"`
	Address         patch.Field[string] `json:"address"`
	BirthDate       patch.Field[Date]   `json:"birth_date"`
	PersonalHistory patch.Field[string] `json:"personal_history"`
	FamilyHistory   patch.Field[string] `json:"family_history"`
}

func (pp PatientPatch) applyTo(p *Patient) {
	pp.DocumentType.Apply(&p.DocumentType)
	pp.DocumentNumber.Apply(&p.DocumentNumber)
	pp.Phone.Apply(&p.Phone)
	pp.Address.Apply(&p.Address)
	pp.BirthDate.Apply(&p.BirthDate)
	pp.PersonalHistory.Apply(&p.PersonalHistory)
	pp.FamilyHistory.Apply(&p.FamilyHistory)
}

func (f PatientFields) validate() error {
	var p Patient
	f.applyTo(&p)
	return p.validate()
}

func (f PatientFields) applyTo(p *Patient) {
	p.DocumentType = f.DocumentType
	p.DocumentNumber = f.DocumentNumber
	p.Phone = f.Phone
	p.Address = f.Address
	p.BirthDate = f.BirthDate
	p.PersonalHistory = f.PersonalHistory
	p.FamilyHistory = f.FamilyHistory
}

type CreateDoctorInput struct {
	UserID    int64   `json:"user_id"`
	Specialty *string `json:"specialty"`
}

type DoctorPatch struct {
	Specialty patch.Field[string] `json:"specialty"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("Invalid email address")
	}
	if err := checkLength("email", &email, maxEmailLength); err != nil {
		return err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}
