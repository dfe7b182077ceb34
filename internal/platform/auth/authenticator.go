package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sigchi/clinic/internal/platform/apperr"
)

// Client-facing messages for authentication failures.
const (
	MsgIncorrectCredentials = "Incorrect email or password"
	MsgCouldNotValidate     = "Could not validate credentials"
	MsgNotAuthenticated     = "Not authenticated"
	MsgInactiveUser         = "Inactive user"
)

// ErrAccountNotFound is returned by an AccountStore when no user matches.
var ErrAccountNotFound = errors.New("account not found")

// Account is the credential view of a user.
type Account struct {
	UserID       int64
	Email        string
	PasswordHash string
	Role         string
	Active       bool
}

// AccountStore loads accounts for login and token resolution.
type AccountStore interface {
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	AccountByID(ctx context.Context, id int64) (*Account, error)
}

// Authenticator verifies credentials, issues tokens and resolves them back
// to accounts.
type Authenticator struct {
	store  AccountStore
	hasher *PasswordHasher
	tokens *TokenIssuer
	logger zerolog.Logger
}

func NewAuthenticator(store AccountStore, hasher *PasswordHasher, tokens *TokenIssuer, logger zerolog.Logger) *Authenticator {
	return &Authenticator{store: store, hasher: hasher, tokens: tokens, logger: logger}
}

// Authenticate checks email and password. Unknown email and wrong password are
// indistinguishable to the caller. Inactive accounts fail with InactiveUser.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	email = strings.TrimSpace(email)
	acct, err := a.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			a.hasher.Burn(password)
			a.logger.Info().Str("reason", "unknown_email").Msg("login failed")
			return nil, apperr.New(apperr.KindInvalidCredentials, MsgIncorrectCredentials)
		}
		return nil, apperr.Internal(err)
	}

	ok, err := a.hasher.Verify(acct.PasswordHash, password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		a.logger.Info().Int64("user_id", acct.UserID).Str("reason", "bad_password").Msg("login failed")
		return nil, apperr.New(apperr.KindInvalidCredentials, MsgIncorrectCredentials)
	}
	if !acct.Active {
		return nil, apperr.New(apperr.KindInactiveUser, MsgInactiveUser)
	}
	return acct, nil
}

// TokenResponse is the body returned by the token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

// Login authenticates and issues an access token.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	acct, err := a.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	token, err := a.tokens.Issue(acct.UserID, acct.Role)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &TokenResponse{AccessToken: token, TokenType: "bearer", Role: acct.Role}, nil
}

// ResolveToken validates a bearer token and loads its account.
func (a *Authenticator) ResolveToken(ctx context.Context, token string) (*Account, error) {
	userID, err := a.tokens.Parse(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidToken, MsgCouldNotValidate, err)
	}
	acct, err := a.store.AccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, apperr.New(apperr.KindUnknownUser, MsgCouldNotValidate)
		}
		return nil, apperr.Internal(err)
	}
	return acct, nil
}
