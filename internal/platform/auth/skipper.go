package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass authentication: health checks,
// metrics, login and self-registration.
var publicPaths = map[string]bool{
	"/api/health":        true,
	"/api/health/db":     true,
	"/metrics":           true,
	"/api/auth/token":    true,
	"/api/auth/register": true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the given path is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}

// inactivePaths are authenticated routes an inactive user may still call.
var inactivePaths = map[string]bool{
	"/api/users/me": true,
}

// AllowsInactive reports whether an inactive account may reach path.
func AllowsInactive(path string) bool {
	return inactivePaths[path]
}
