package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()

	for _, hsts := range []bool{false, true} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil), rec)

		if err := SecurityHeaders(hsts)(okHandler)(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		h := rec.Header()
		if h.Get("X-Content-Type-Options") != "nosniff" {
			t.Error("expected nosniff")
		}
		if h.Get("X-Frame-Options") != "DENY" {
			t.Error("expected X-Frame-Options DENY")
		}
		if h.Get("Cache-Control") != "no-store" {
			t.Error("expected Cache-Control no-store")
		}
		if got := h.Get("Strict-Transport-Security") != ""; got != hsts {
			t.Errorf("hsts=%v: Strict-Transport-Security present=%v", hsts, got)
		}
	}
}
