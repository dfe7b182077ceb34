package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sigchi/clinic/internal/platform/apperr"
	"github.com/sigchi/clinic/internal/policy"
)

// ProfileLookup resolves the patient and doctor profile ids owned by a user.
type ProfileLookup interface {
	ProfileIDs(ctx context.Context, userID int64) (patientID, doctorID *int64, err error)
}

// Middleware authenticates the bearer token, rejects inactive users outside
// AllowsInactive routes and stores a policy.Caller on the request context.
// Requests matched by skipper pass through untouched.
func Middleware(authn *Authenticator, profiles ProfileLookup, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			acct, err := authn.ResolveToken(ctx, token)
			if err != nil {
				return err
			}
			if !acct.Active && !AllowsInactive(c.Path()) {
				return apperr.New(apperr.KindInactiveUser, MsgInactiveUser)
			}

			caller := policy.Caller{UserID: acct.UserID, Role: policy.ParseRole(acct.Role)}
			if profiles != nil && (caller.Role == policy.RoleDoctor || caller.Role == policy.RolePatient) {
				caller.PatientID, caller.DoctorID, err = profiles.ProfileIDs(ctx, acct.UserID)
				if err != nil {
					return apperr.Internal(err)
				}
			}

			c.Set("user_id", acct.UserID)
			c.SetRequest(c.Request().WithContext(WithCaller(ctx, caller)))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.New(apperr.KindInvalidToken, MsgNotAuthenticated)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.New(apperr.KindInvalidToken, MsgNotAuthenticated)
	}
	return strings.TrimSpace(parts[1]), nil
}

// RequireCaller returns the caller stored by Middleware or a 401 when the
// route was reached without authentication.
func RequireCaller(c echo.Context) (policy.Caller, error) {
	caller, ok := CallerFromContext(c.Request().Context())
	if !ok {
		return policy.Caller{}, apperr.New(apperr.KindInvalidToken, MsgNotAuthenticated)
	}
	return caller, nil
}
