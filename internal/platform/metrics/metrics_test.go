package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/appointments/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/"+id, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/appointments/:id", "200"))
	if got != 3 {
		t.Errorf("expected 3 requests on the route pattern, got %v", got)
	}
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.ValidationRejected("double_booked")
	m.ValidationRejected("double_booked")
	m.ValidationRejected("closed_day")
	m.Transition("complete", false)
	m.AppointmentWrite("create", true)
	m.Login("doctor", false)

	if v := testutil.ToFloat64(m.validationRejected.WithLabelValues("double_booked")); v != 2 {
		t.Errorf("expected 2 double_booked, got %v", v)
	}
	if v := testutil.ToFloat64(m.transitions.WithLabelValues("complete", "rejected")); v != 1 {
		t.Errorf("expected 1 rejected complete, got %v", v)
	}
	if v := testutil.ToFloat64(m.bookings.WithLabelValues("create", "ok")); v != 1 {
		t.Errorf("expected 1 create, got %v", v)
	}
	if v := testutil.ToFloat64(m.logins.WithLabelValues("doctor", "rejected")); v != 1 {
		t.Errorf("expected 1 rejected login, got %v", v)
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ValidationRejected("too_far_in_past")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `portal_appointments_validation_errors_total{code="too_far_in_past"} 1`) {
		t.Errorf("expected validation counter in output")
	}
}
