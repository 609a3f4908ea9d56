package scheduling

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/validation"
	"github.com/healthportal/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.POST("/appointments", h.CreateAppointment)
	api.POST("/appointments/validate", h.ValidateAppointment)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.PATCH("/appointments/:id", h.UpdateAppointment)
	api.DELETE("/appointments/:id", h.DeleteAppointment)
	api.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	api.POST("/appointments/:id/cancel", h.CancelAppointment)
	api.POST("/appointments/:id/complete", h.CompleteAppointment)
	api.POST("/appointments/:id/no-show", h.MarkNoShow)

	api.GET("/doctors/:id/available-slots", h.AvailableSlots)
	api.GET("/doctors/:id/appointments", h.DoctorAppointments)
	api.GET("/patients/:id/appointments", h.PatientAppointments)
}

// httpError maps service errors onto responses.
func httpError(err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return validation.HTTPError(verrs)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNoShowBeforeStart):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrReferenceNotFound):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidScope):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func caller(c echo.Context) (*auth.Principal, error) {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func isParty(p *auth.Principal, doctorID, patientID uuid.UUID) bool {
	return p.Is(auth.UserDoctor, doctorID) || p.Is(auth.UserPatient, patientID)
}

// requireParty loads the appointment and rejects callers that are neither
// its doctor nor its patient.
func (h *Handler) requireParty(c echo.Context, id uuid.UUID) (*auth.Principal, *Appointment, error) {
	p, err := caller(c)
	if err != nil {
		return nil, nil, err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return nil, nil, httpError(err)
	}
	if !isParty(p, a.DoctorID, a.PatientID) {
		return nil, nil, echo.NewHTTPError(http.StatusForbidden, "you can only access your own appointments")
	}
	return p, a, nil
}

// requireBooker lets doctors book for themselves and patients book for
// themselves. Missing ids are left to validation.
func requireBooker(c echo.Context, in AppointmentInput) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	ok := false
	switch p.UserType {
	case auth.UserDoctor:
		ok = in.DoctorID == nil || *in.DoctorID == p.UserID
	case auth.UserPatient:
		ok = in.PatientID == nil || *in.PatientID == p.UserID
	}
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "you can only book your own appointments")
	}
	return nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var in AppointmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := requireBooker(c, in); err != nil {
		return err
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, NewView(a, h.svc.Now()))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	_, a, err := h.requireParty(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewView(a, h.svc.Now()))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, current, err := h.requireParty(c, id)
	if err != nil {
		return err
	}
	var in AppointmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doctorID, patientID := current.DoctorID, current.PatientID
	if in.DoctorID != nil {
		doctorID = *in.DoctorID
	}
	if in.PatientID != nil {
		patientID = *in.PatientID
	}
	if !isParty(p, doctorID, patientID) {
		return echo.NewHTTPError(http.StatusForbidden, "you cannot hand an appointment over to other accounts")
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, NewView(a, h.svc.Now()))
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, _, err := h.requireParty(c, id); err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type validateRequest struct {
	ID *uuid.UUID `json:"id"`
	AppointmentInput
}

// ValidateAppointment reports every rule a candidate would break without
// storing it. The response is 200 either way.
func (h *Handler) ValidateAppointment(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ID != nil {
		if _, _, err := h.requireParty(c, *req.ID); err != nil {
			return err
		}
	} else if err := requireBooker(c, req.AppointmentInput); err != nil {
		return err
	}
	errs, err := h.svc.ValidateAppointment(c.Request().Context(), req.ID, req.AppointmentInput)
	if err != nil {
		return httpError(err)
	}
	if errs == nil {
		errs = validation.Errors{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	q, err := parseListQuery(c)
	if err != nil {
		return err
	}
	return h.list(c, q)
}

func (h *Handler) DoctorAppointments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	q, err := parseListQuery(c)
	if err != nil {
		return err
	}
	q.DoctorID = &id
	return h.list(c, q)
}

func (h *Handler) PatientAppointments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	q, err := parseListQuery(c)
	if err != nil {
		return err
	}
	q.PatientID = &id
	return h.list(c, q)
}

// scopeToCaller narrows q to the caller's own appointments. Asking for
// another account of the caller's own type is refused.
func scopeToCaller(c echo.Context, q *ListQuery) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var own **uuid.UUID
	switch p.UserType {
	case auth.UserDoctor:
		own = &q.DoctorID
	case auth.UserPatient:
		own = &q.PatientID
	case auth.UserFacility:
		own = &q.FacilityID
	default:
		return echo.NewHTTPError(http.StatusForbidden, auth.ErrForbidden.Error())
	}
	if *own != nil && **own != p.UserID {
		return echo.NewHTTPError(http.StatusForbidden, "you can only list your own appointments")
	}
	id := p.UserID
	*own = &id
	return nil
}

func (h *Handler) list(c echo.Context, q ListQuery) error {
	if err := scopeToCaller(c, &q); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), q, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(NewViews(items, h.svc.Now()), total, pg))
}

func parseListQuery(c echo.Context) (ListQuery, error) {
	var q ListQuery
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{
		{"doctor_id", &q.DoctorID},
		{"patient_id", &q.PatientID},
		{"facility_id", &q.FacilityID},
	} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
		}
		*p.dst = &id
	}

	if v := c.QueryParam("status"); v != "" {
		s := Status(v)
		if !s.Valid() {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		q.Status = &s
	}
	if v := c.QueryParam("type"); v != "" {
		t := Type(v)
		if !t.Valid() {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid type")
		}
		q.Type = &t
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &q.From},
		{"to", &q.To},
	} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name+": expected RFC 3339 timestamp")
		}
		*p.dst = &ts
	}
	q.Scope = c.QueryParam("scope")
	q.Ascending = c.QueryParam("order") == "asc"
	return q, nil
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	return h.act(c, h.svc.Confirm)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	return h.act(c, h.svc.Complete)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.act(c, h.svc.MarkNoShow)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Reason == "" {
		req.Reason = c.QueryParam("reason")
	}
	if _, _, err := h.requireParty(c, id); err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, NewView(a, h.svc.Now()))
}

func (h *Handler) act(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Appointment, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, _, err := h.requireParty(c, id); err != nil {
		return err
	}
	a, err := fn(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, NewView(a, h.svc.Now()))
}

// AvailableSlots answers GET /doctors/:id/available-slots?date=2025-01-07&duration=45.
func (h *Handler) AvailableSlots(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	day := h.svc.Now().In(h.svc.Location())
	if v := c.QueryParam("date"); v != "" {
		day, err = time.ParseInLocation(time.DateOnly, v, h.svc.Location())
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
		}
	}
	duration := 0
	if v := c.QueryParam("duration"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid duration")
		}
	}

	slots, err := h.svc.AvailableSlots(c.Request().Context(), id, day, duration)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id": id,
		"date":      day.Format(time.DateOnly),
		"slots":     slots,
	})
}
