package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sigchi/clinic/internal/platform/apperr"
)

// Handler serves the OAuth2 password-flow token endpoint.
type Handler struct {
	authn *Authenticator
}

func NewHandler(authn *Authenticator) *Handler {
	return &Handler{authn: authn}
}

// RegisterRoutes mounts POST /token on the auth group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/token", h.Token)
}

// Token accepts form fields username (the email) and password.
func (h *Handler) Token(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" || password == "" {
		return apperr.Validation("username and password are required")
	}

	resp, err := h.authn.Login(c.Request().Context(), username, password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
