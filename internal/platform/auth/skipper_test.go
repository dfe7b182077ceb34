package auth

import "testing"

func TestIsPublicPath(t *testing.T) {
	public := []string{"/api/health", "/api/health/db", "/metrics", "/api/auth/token", "/api/auth/register"}
	for _, p := range public {
		if !IsPublicPath(p) {
			t.Errorf("expected %s to be public", p)
		}
	}

	protected := []string{"/api/users/me", "/api/patients", "/api/appointments/:id", "/api/histories/patient/:patient_id", ""}
	for _, p := range protected {
		if IsPublicPath(p) {
			t.Errorf("expected %s to require auth", p)
		}
	}
}

func TestAllowsInactive(t *testing.T) {
	if !AllowsInactive("/api/users/me") {
		t.Error("expected /api/users/me to accept inactive users")
	}
	for _, p := range []string{"/api/users", "/api/patients/me", "/api/appointments"} {
		if AllowsInactive(p) {
			t.Errorf("expected %s to reject inactive users", p)
		}
	}
}
