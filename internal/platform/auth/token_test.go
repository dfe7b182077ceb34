package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, clock *fakeClock) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer(testSigningKey, "HS256", time.Hour)
	require.NoError(t, err)
	return ti.WithClock(clock.Now)
}

func TestNewTokenIssuer_RejectsBadConfig(t *testing.T) {
	_, err := NewTokenIssuer(nil, "HS256", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer(testSigningKey, "RS256", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer(testSigningKey, "none", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer(testSigningKey, "HS256", 0)
	assert.Error(t, err)

	ti, err := NewTokenIssuer(testSigningKey, "HS512", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ti.TTL())
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	ti := newTestIssuer(t, clock)

	token, err := ti.Issue(42, "doctor")
	require.NoError(t, err)

	userID, err := ti.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestTokenIssuer_Expiry(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	ti := newTestIssuer(t, clock)

	token, err := ti.IssueWithTTL(7, "patient", 10*time.Minute)
	require.NoError(t, err)

	clock.t = start.Add(10*time.Minute - time.Second)
	_, err = ti.Parse(token)
	assert.NoError(t, err, "token must be valid just before expiry")

	clock.t = start.Add(10*time.Minute + time.Second)
	_, err = ti.Parse(token)
	assert.Error(t, err, "token must be rejected just after expiry")
}

func TestTokenIssuer_ExpiryWithSubSecondIssue(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 700*int(time.Millisecond), time.UTC)
	clock := &fakeClock{t: start}
	ti := newTestIssuer(t, clock)

	token, err := ti.Issue(7, "patient")
	require.NoError(t, err)

	clock.t = start.Add(time.Hour - 100*time.Millisecond)
	_, err = ti.Parse(token)
	assert.NoError(t, err, "token must be valid until its full ttl has elapsed")

	clock.t = start.Add(time.Hour + time.Second)
	_, err = ti.Parse(token)
	assert.Error(t, err)
}

func TestExpiryAt(t *testing.T) {
	whole := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, whole.Add(time.Hour), expiryAt(whole, time.Hour))

	frac := whole.Add(300 * time.Millisecond)
	assert.Equal(t, whole.Add(time.Hour+time.Second), expiryAt(frac, time.Hour))
}

func TestTokenIssuer_RejectsWrongKey(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ti := newTestIssuer(t, clock)

	other, err := NewTokenIssuer([]byte("another-key"), "HS256", time.Hour)
	require.NoError(t, err)
	token, err := other.WithClock(clock.Now).Issue(1, "admin")
	require.NoError(t, err)

	_, err = ti.Parse(token)
	assert.Error(t, err)
}

func TestTokenIssuer_RejectsOtherAlgorithm(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ti := newTestIssuer(t, clock)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSigningKey)
	require.NoError(t, err)

	_, err = ti.Parse(token)
	assert.Error(t, err)
}

func signClaims(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	require.NoError(t, err)
	return token
}

func TestTokenIssuer_RejectsBadSubject(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ti := newTestIssuer(t, clock)
	exp := jwt.NewNumericDate(clock.t.Add(time.Hour))

	for _, sub := range []string{"", "abc", "-3", "0"} {
		token := signClaims(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: exp}})
		_, err := ti.Parse(token)
		assert.Error(t, err, "subject %q", sub)
	}
}

func TestTokenIssuer_RequiresExpiry(t *testing.T) {
	ti := newTestIssuer(t, &fakeClock{t: time.Now()})
	token := signClaims(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}})
	_, err := ti.Parse(token)
	assert.Error(t, err)
}
