package portal

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/middleware"
)

type Handler struct {
	svc      *Service
	sessions *auth.Sessions
	limiter  echo.MiddlewareFunc
}

func NewHandler(svc *Service, sessions *auth.Sessions) *Handler {
	return &Handler{
		svc:      svc,
		sessions: sessions,
		limiter:  middleware.RateLimit(middleware.LoginRateLimitConfig()),
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/session", h.CreateSession, h.limiter)
	api.GET("/session", h.GetSession)
	api.DELETE("/session", h.DeleteSession)

	api.GET("/dashboard/doctor", h.DoctorDashboard)
	api.GET("/dashboard/patient", h.PatientDashboard)
	api.GET("/dashboard/facility", h.FacilityDashboard)
}

type loginRequest struct {
	UserType string `json:"user_type"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserType  auth.UserType `json:"user_type"`
	UserID    uuid.UUID     `json:"user_id"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Token     string        `json:"token,omitempty"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p, err := h.svc.Login(ctx, req.UserType, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	sess, token, err := h.sessions.Start(ctx, p.UserType, p.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "could not start session")
	}
	h.sessions.SetCookie(c, token, sess.ExpiresAt)
	return c.JSON(http.StatusCreated, sessionResponse{
		UserType:  sess.UserType,
		UserID:    sess.UserID,
		ExpiresAt: &sess.ExpiresAt,
		Token:     token,
	})
}

func (h *Handler) GetSession(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.JSON(http.StatusOK, sessionResponse{UserType: p.UserType, UserID: p.UserID})
}

func (h *Handler) DeleteSession(c echo.Context) error {
	p := auth.PrincipalFromContext(c.Request().Context())
	if err := h.sessions.End(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "could not end session")
	}
	h.sessions.ClearCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// principalOf returns the caller when it is an account of type t.
func principalOf(c echo.Context, t auth.UserType) (*auth.Principal, error) {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if p.UserType != t {
		return nil, echo.NewHTTPError(http.StatusForbidden, auth.ErrForbidden.Error())
	}
	return p, nil
}

func (h *Handler) DoctorDashboard(c echo.Context) error {
	p, err := principalOf(c, auth.UserDoctor)
	if err != nil {
		return err
	}
	d, err := h.svc.DoctorDashboard(c.Request().Context(), p.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) PatientDashboard(c echo.Context) error {
	p, err := principalOf(c, auth.UserPatient)
	if err != nil {
		return err
	}
	d, err := h.svc.PatientDashboard(c.Request().Context(), p.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) FacilityDashboard(c echo.Context) error {
	p, err := principalOf(c, auth.UserFacility)
	if err != nil {
		return err
	}
	d, err := h.svc.FacilityDashboard(c.Request().Context(), p.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}
