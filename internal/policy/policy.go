// Package policy decides whether a caller may perform an operation on a
// clinic record and, for listings, which subset of records is visible.
// Decide is pure: it reads nothing but its arguments.
package policy

import (
	"github.com/sigchi/clinic/internal/platform/apperr"
)

type Operation string

const (
	OpCreate        Operation = "create"
	OpList          Operation = "list"
	OpRead          Operation = "read"
	OpReadSelf      Operation = "read_self"
	OpUpdate        Operation = "update"
	OpDelete        Operation = "delete"
	OpCancel        Operation = "cancel"
	OpListByPatient Operation = "list_by_patient"
)

type Entity string

const (
	EntityUser            Entity = "user"
	EntityPatient         Entity = "patient"
	EntityDoctor          Entity = "doctor"
	EntityAppointment     Entity = "appointment"
	EntityClinicalHistory Entity = "clinical_history"
)

// Caller is the authenticated principal with its own profile ids resolved.
type Caller struct {
	UserID    int64
	Role      Role
	PatientID *int64
	DoctorID  *int64
}

func (c Caller) OwnsPatient(id int64) bool {
	return c.PatientID != nil && *c.PatientID == id
}

func (c Caller) OwnsDoctor(id int64) bool {
	return c.DoctorID != nil && *c.DoctorID == id
}

// Target carries the ownership attributes of the record being acted on.
// PatientID/DoctorID apply to appointments and histories, OwnerUserID to
// patient and doctor profiles.
type Target struct {
	PatientID   int64
	DoctorID    int64
	OwnerUserID int64
}

// Scope restricts a listing. A nil field means no restriction on it.
type Scope struct {
	PatientID *int64
	DoctorID  *int64
}

func (s Scope) Unrestricted() bool {
	return s.PatientID == nil && s.DoctorID == nil
}

// Decision is the outcome of Decide.
type Decision struct {
	Allowed bool
	Reason  string
	Scope   Scope
	// MissingProfile marks a denial caused by the caller lacking the profile a
	// scoped listing needs. It renders as a 400 rather than a 403.
	MissingProfile bool
}

// Err converts a denial into the matching application error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.MissingProfile {
		return apperr.Validation(d.Reason)
	}
	return apperr.Forbidden(d.Reason)
}

// Rule evaluates one role's access for one (entity, operation) pair.
type Rule func(c Caller, t Target) Decision

// Policy holds the per-role rules of an (entity, operation) pair. A nil rule
// denies with Denied.
type Policy struct {
	Entity    Entity
	Operation Operation
	Admin     Rule
	Doctor    Rule
	Patient   Rule
	Denied    string
}

type policyKey struct {
	entity Entity
	op     Operation
}

// Engine evaluates policies. Unknown pairs and unknown roles are denied.
type Engine struct {
	policies map[policyKey]Policy
}

func NewEngine(policies []Policy) *Engine {
	m := make(map[policyKey]Policy, len(policies))
	for _, p := range policies {
		m[policyKey{p.Entity, p.Operation}] = p
	}
	return &Engine{policies: m}
}

// DefaultEngine returns an engine loaded with the clinic's access rules.
func DefaultEngine() *Engine {
	return NewEngine(DefaultPolicies())
}

const msgInsufficient = "Insufficient permissions"

func (e *Engine) Decide(c Caller, op Operation, entity Entity, t Target) Decision {
	p, ok := e.policies[policyKey{entity, op}]
	if !ok {
		return deny(msgInsufficient)
	}

	var rule Rule
	switch c.Role {
	case RoleAdmin:
		rule = p.Admin
	case RoleDoctor:
		rule = p.Doctor
	case RolePatient:
		rule = p.Patient
	default:
		return deny(msgInsufficient)
	}

	if rule == nil {
		if p.Denied != "" {
			return deny(p.Denied)
		}
		return deny(msgInsufficient)
	}
	return rule(c, t)
}

// Authorize is Decide followed by Err.
func (e *Engine) Authorize(c Caller, op Operation, entity Entity, t Target) error {
	return e.Decide(c, op, entity, t).Err()
}

func allow(s Scope) Decision {
	return Decision{Allowed: true, Scope: s}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

func missingProfile(reason string) Decision {
	return Decision{Reason: reason, MissingProfile: true}
}
