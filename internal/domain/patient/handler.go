package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/chartview/chartview/internal/platform/ehr"
	"github.com/chartview/chartview/internal/platform/token"
	"github.com/chartview/chartview/pkg/pagination"
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
	e.GET("/patients", h.ListPatients)
	e.GET("/patients/:id", h.GetPatient)
	e.PUT("/patients/:id", h.UpdatePatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	sess := h.session(c)

	page, err := h.svc.List(c.Request().Context(), sess, pg)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) GetPatient(c echo.Context) error {
	sess := h.session(c)

	detail, err := h.svc.Get(c.Request().Context(), sess, c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var edits Edits
	if err := c.Bind(&edits); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	sess := h.session(c)
	detail, err := h.svc.Update(c.Request().Context(), sess, c.Param("id"), edits)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Patient updated",
		"patient": detail,
	})
}

// session builds the per-request upstream session backed by the caller's
// token cookies. A refresh during the request rewrites those cookies on the
// response.
func (h *Handler) session(c echo.Context) *ehr.Session {
	store := token.NewCookieStore(c.Request(), c.Response(), h.policy)
	return h.svc.Session(store)
}

func (h *Handler) respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrIDMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})

	case errors.Is(err, ehr.ErrNoSession):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})

	case errors.Is(err, ehr.ErrSessionExpired), errors.Is(err, ehr.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired, please log in again"})

	case errors.Is(err, ehr.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Patient not found"})
	}

	var remote *ehr.RemoteError
	if errors.As(err, &remote) {
		msg := remote.Message
		if msg == "" {
			msg = "remote EHR request failed"
		}
		return c.JSON(remote.StatusCode, echo.Map{"error": msg})
	}

	h.log.Error().Err(err).Str("path", c.Path()).Msg("unexpected error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
