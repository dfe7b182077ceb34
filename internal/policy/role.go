package policy

import "strings"

// Role is the closed set of roles a user can hold. Anything that does not
// parse to a known role is RoleUnknown and is denied everywhere.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleDoctor
	RolePatient
)

func ParseRole(name string) Role {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin":
		return RoleAdmin
	case "doctor":
		return RoleDoctor
	case "patient":
		return RolePatient
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleDoctor:
		return "doctor"
	case RolePatient:
		return "patient"
	default:
		return "unknown"
	}
}

func (r Role) Known() bool {
	return r != RoleUnknown
}
