package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sigchi/clinic/internal/platform/apperr"
)

type mockAccountStore struct {
	mock.Mock
}

func (m *mockAccountStore) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	args := m.Called(ctx, email)
	acct, _ := args.Get(0).(*Account)
	return acct, args.Error(1)
}

func (m *mockAccountStore) AccountByID(ctx context.Context, id int64) (*Account, error) {
	args := m.Called(ctx, id)
	acct, _ := args.Get(0).(*Account)
	return acct, args.Error(1)
}

func newTestAuthenticator(t *testing.T, store AccountStore) (*Authenticator, *PasswordHasher, *TokenIssuer) {
	t.Helper()
	hasher := newTestHasher(t)
	tokens := newTestIssuer(t, &fakeClock{t: time.Now()})
	return NewAuthenticator(store, hasher, tokens, zerolog.Nop()), hasher, tokens
}

func testAccount(t *testing.T, hasher *PasswordHasher, active bool) *Account {
	t.Helper()
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)
	return &Account{UserID: 5, Email: "doc@clinic.test", PasswordHash: hash, Role: "doctor", Active: active}
}

func TestAuthenticator_Login(t *testing.T) {
	store := new(mockAccountStore)
	authn, hasher, tokens := newTestAuthenticator(t, store)
	store.On("AccountByEmail", mock.Anything, "doc@clinic.test").Return(testAccount(t, hasher, true), nil)

	resp, err := authn.Login(context.Background(), " doc@clinic.test ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "doctor", resp.Role)

	userID, err := tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(5), userID)
	store.AssertExpectations(t)
}

func TestAuthenticator_WrongPassword(t *testing.T) {
	store := new(mockAccountStore)
	authn, hasher, _ := newTestAuthenticator(t, store)
	store.On("AccountByEmail", mock.Anything, "doc@clinic.test").Return(testAccount(t, hasher, true), nil)

	_, err := authn.Authenticate(context.Background(), "doc@clinic.test", "nope")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidCredentials, apperr.KindOf(err))
	assert.Equal(t, MsgIncorrectCredentials, apperr.As(err).Detail)
}

func TestAuthenticator_UnknownEmail(t *testing.T) {
	store := new(mockAccountStore)
	authn, _, _ := newTestAuthenticator(t, store)
	store.On("AccountByEmail", mock.Anything, "ghost@clinic.test").Return(nil, ErrAccountNotFound)

	_, err := authn.Authenticate(context.Background(), "ghost@clinic.test", "whatever")
	assert.Equal(t, apperr.KindInvalidCredentials, apperr.KindOf(err))
	assert.Equal(t, MsgIncorrectCredentials, apperr.As(err).Detail)
}

func TestAuthenticator_InactiveUser(t *testing.T) {
	store := new(mockAccountStore)
	authn, hasher, _ := newTestAuthenticator(t, store)
	store.On("AccountByEmail", mock.Anything, "doc@clinic.test").Return(testAccount(t, hasher, false), nil)

	_, err := authn.Login(context.Background(), "doc@clinic.test", "correct-horse")
	assert.Equal(t, apperr.KindInactiveUser, apperr.KindOf(err))
	assert.Equal(t, MsgInactiveUser, apperr.As(err).Detail)
}

func TestAuthenticator_StoreFailure(t *testing.T) {
	store := new(mockAccountStore)
	authn, _, _ := newTestAuthenticator(t, store)
	store.On("AccountByEmail", mock.Anything, "doc@clinic.test").Return(nil, errors.New("db down"))

	_, err := authn.Authenticate(context.Background(), "doc@clinic.test", "x")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestAuthenticator_ResolveToken(t *testing.T) {
	store := new(mockAccountStore)
	authn, hasher, tokens := newTestAuthenticator(t, store)
	acct := testAccount(t, hasher, true)
	store.On("AccountByID", mock.Anything, int64(5)).Return(acct, nil)
	store.On("AccountByID", mock.Anything, int64(6)).Return(nil, ErrAccountNotFound)

	token, err := tokens.Issue(5, "doctor")
	require.NoError(t, err)
	got, err := authn.ResolveToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	token, err = tokens.Issue(6, "doctor")
	require.NoError(t, err)
	_, err = authn.ResolveToken(context.Background(), token)
	assert.Equal(t, apperr.KindUnknownUser, apperr.KindOf(err))

	_, err = authn.ResolveToken(context.Background(), "garbage")
	assert.Equal(t, apperr.KindInvalidToken, apperr.KindOf(err))
	assert.Equal(t, MsgCouldNotValidate, apperr.As(err).Detail)
}
