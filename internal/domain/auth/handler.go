package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/chartview/chartview/internal/platform/ehr"
	"github.com/chartview/chartview/internal/platform/token"
)

type Handler struct {
	svc    *Service
	policy token.Policy
	log    zerolog.Logger
}

func NewHandler(svc *Service, policy token.Policy, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, policy: policy, log: log}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/login", h.Login)
	e.POST("/logout", h.Logout)
}

// Login exchanges the posted credentials for a token pair, sets the session
// cookies and relays the remote token body unchanged.
func (h *Handler) Login(c echo.Context) error {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	store := token.NewCookieStore(c.Request(), c.Response(), h.policy)
	tr, err := h.svc.Login(c.Request().Context(), store, creds)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSONBlob(http.StatusOK, tr.Raw)
}

// Logout clears the session cookies.
func (h *Handler) Logout(c echo.Context) error {
	store := token.NewCookieStore(c.Request(), c.Response(), h.policy)
	h.svc.Logout(store)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) respondError(c echo.Context, err error) error {
	var ferr *FieldError
	if errors.As(err, &ferr) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": ferr.Reason,
			"field": ferr.Field,
		})
	}

	var remote *ehr.RemoteError
	if errors.As(err, &remote) {
		msg := remote.Message
		if msg == "" {
			msg = "login failed"
		}
		return c.JSON(remote.StatusCode, echo.Map{"error": msg})
	}

	h.log.Error().Err(err).Msg("login exchange failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
