package facility

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/validation"
	"github.com/healthportal/portal/pkg/pagination"
)

const kindKey = "facility_kind"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	for _, r := range []struct {
		prefix string
		kind   Kind
	}{
		{"/hospitals", KindHospital},
		{"/clinics", KindClinic},
	} {
		g := api.Group(r.prefix, scopeTo(r.kind))
		g.GET("", h.List)
		g.POST("", h.Create)
		g.GET("/:id", h.Get)
		g.PUT("/:id", h.Update)
		g.PATCH("/:id", h.Update)
		g.DELETE("/:id", h.Delete)
	}
}

// scopeTo pins every handler in the group to one facility kind.
func scopeTo(k Kind) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(kindKey, k)
			return next(c)
		}
	}
}

func kindOf(c echo.Context) Kind {
	k, _ := c.Get(kindKey).(Kind)
	return k
}

func httpError(err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return validation.HTTPError(verrs)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
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

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.Create(c.Request().Context(), kindOf(c), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, NewView(f, nil))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	f, err := h.svc.Get(ctx, kindOf(c), id)
	if err != nil {
		return httpError(err)
	}
	stats, err := h.svc.Stats(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, NewView(f, stats))
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Kind:           kindOf(c),
		Query:          c.QueryParam("q"),
		Status:         c.QueryParam("status"),
		City:           c.QueryParam("city"),
		HealthCareType: c.QueryParam("type"),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(NewViews(items), total, pg))
}

// requireOwner rejects callers other than the facility's own account.
func requireOwner(c echo.Context, id uuid.UUID) error {
	if !auth.PrincipalFromContext(c.Request().Context()).Is(auth.UserFacility, id) {
		return echo.NewHTTPError(http.StatusForbidden, "you can only modify your own facility")
	}
	return nil
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := requireOwner(c, id); err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.Update(c.Request().Context(), kindOf(c), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, NewView(f, nil))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := requireOwner(c, id); err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), kindOf(c), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
