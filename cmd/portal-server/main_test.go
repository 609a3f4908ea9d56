package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/config"
	"github.com/healthportal/portal/internal/domain/facility"
	"github.com/healthportal/portal/internal/domain/identity"
	"github.com/healthportal/portal/internal/domain/scheduling"
	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/metrics"
	"github.com/healthportal/portal/internal/platform/websocket"
	"github.com/healthportal/portal/pkg/clock"
)

func TestPrintStatus(t *testing.T) {
	applied := time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, "public", []db.MigrationStatus{
		{Version: 1, Name: "create_facilities", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "create_appointments"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Migration status for schema: public" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[3], "create_facilities") || !strings.Contains(lines[3], "applied") ||
		!strings.HasSuffix(lines[3], "2025-01-06 09:30:00") {
		t.Errorf("unexpected applied row %q", lines[3])
	}
	if !strings.Contains(lines[4], "pending") {
		t.Errorf("unexpected pending row %q", lines[4])
	}
}

// newTestRouter wires the real router over a nil pool. Only requests that
// are answered before reaching a repository are safe to send through it.
func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := &config.Config{
		Env:           "test",
		SessionTTL:    time.Hour,
		SessionCookie: "_portal_session",
		CORSOrigins:   []string{"http://localhost:3000"},
	}
	logger := zerolog.Nop()
	m := metrics.New()
	svcs, err := newServices(cfg, nil, m, clock.System{}, logger)
	if err != nil {
		t.Fatalf("newServices: %v", err)
	}
	signer, err := auth.NewTokenSigner("test-secret", nil)
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	sessions := auth.NewSessions(auth.NewMemorySessionStore(nil), signer,
		auth.CookieConfig{Name: cfg.SessionCookie, TTL: cfg.SessionTTL}, clock.System{}, logger)
	authorizer, err := auth.NewAuthorizer(nil)
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	health := db.NewHealthChecker(time.Second).Add("self", func(context.Context) error { return nil })
	return newRouter(cfg, svcs, sessions, authorizer, health, m, logger)
}

func TestRouter_RegistersRoutes(t *testing.T) {
	e := newTestRouter(t)

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /api/v1/session",
		"DELETE /api/v1/session",
		"GET /api/v1/hospitals",
		"PATCH /api/v1/clinics/:id",
		"POST /api/v1/doctors",
		"GET /api/v1/specializations",
		"GET /api/v1/patients/:id",
		"POST /api/v1/appointments",
		"GET /api/v1/doctors/:id/available-slots",
		"POST /api/v1/appointments/:id/cancel",
		"GET /api/v1/dashboard/facility",
		"GET /api/v1/feed",
	} {
		if !registered[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestRouter_Access(t *testing.T) {
	e := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics are public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"appointments need a session", http.MethodGet, "/api/v1/appointments", "", http.StatusUnauthorized},
		{"dashboards need a session", http.MethodGet, "/api/v1/dashboard/doctor", "", http.StatusUnauthorized},
		{"patient list needs a session", http.MethodGet, "/api/v1/patients", "", http.StatusUnauthorized},
		{"feed needs a session", http.MethodGet, "/api/v1/feed", "", http.StatusUnauthorized},
		{"unknown user type", http.MethodPost, "/api/v1/session", `{"user_type":"admin","email":"a@b.c","password":"x"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected a request id header")
	}
}

var seedNow = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

func TestGenerator_Deterministic(t *testing.T) {
	a := newGenerator(42, seedNow, time.UTC, "secret1")
	b := newGenerator(42, seedNow, time.UTC, "secret1")

	if !reflect.DeepEqual(a.facility(facility.KindHospital, 0), b.facility(facility.KindHospital, 0)) {
		t.Error("facility inputs differ for the same seed")
	}
	if !reflect.DeepEqual(a.patient(3), b.patient(3)) {
		t.Error("patient inputs differ for the same seed")
	}
}

func TestGenerator_Facility(t *testing.T) {
	g := newGenerator(7, seedNow, time.UTC, "secret1")

	h := g.facility(facility.KindHospital, 0)
	if h.BedCapacity == nil || *h.BedCapacity < 50 {
		t.Errorf("hospital needs a bed capacity, got %v", h.BedCapacity)
	}
	if h.ServicesOffered != nil {
		t.Error("hospital should not carry services_offered")
	}
	if !contains(facility.HealthCareTypes[facility.KindHospital], *h.HealthCareType) {
		t.Errorf("unexpected hospital type %q", *h.HealthCareType)
	}

	c := g.facility(facility.KindClinic, 1)
	if c.ServicesOffered == nil || len(*c.ServicesOffered) < facility.MinServicesOfferedLength {
		t.Errorf("clinic needs services_offered, got %v", c.ServicesOffered)
	}
	if c.BedCapacity != nil {
		t.Error("clinic should not carry a bed capacity")
	}
	if *h.Email == *c.Email || *h.Name == *c.Name {
		t.Error("facilities must not share an email or name")
	}
}

func TestGenerator_Doctor(t *testing.T) {
	g := newGenerator(7, seedNow, time.UTC, "secret1")

	for i := 0; i < 20; i++ {
		d := g.doctor(i, nil, nil)
		if d.HospitalID != nil || d.ClinicID != nil {
			t.Fatal("no facilities exist to affiliate with")
		}
		if !contains(identity.IndependentSpecializations, *d.Specialization) {
			t.Errorf("unaffiliated doctor got %q", *d.Specialization)
		}
	}

	hospitals := []uuid.UUID{uuid.New()}
	clinics := []uuid.UUID{uuid.New()}
	for i := 0; i < 20; i++ {
		d := g.doctor(i, hospitals, clinics)
		if d.HospitalID == nil && d.ClinicID == nil {
			t.Error("doctor should be affiliated when facilities exist")
		}
	}
}

func TestGenerator_Patient(t *testing.T) {
	g := newGenerator(7, seedNow, time.UTC, "secret1")

	for i := 0; i < 20; i++ {
		p := g.patient(i)
		dob, err := time.Parse(time.DateOnly, *p.DateOfBirth)
		if err != nil {
			t.Fatalf("bad date of birth %q", *p.DateOfBirth)
		}
		if !dob.Before(seedNow) || dob.Year() < 1900 {
			t.Errorf("date of birth %s out of range", *p.DateOfBirth)
		}
		if !contains(identity.Genders, *p.Gender) {
			t.Errorf("unexpected gender %q", *p.Gender)
		}
	}
}

func TestGenerator_SlotWithinBusinessHours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	g := newGenerator(7, seedNow, loc, "secret1")
	hours := scheduling.DefaultBusinessHours(loc)

	for i := 0; i < 200; i++ {
		s := g.slot(hours)
		if !s.After(seedNow) || s.After(seedNow.AddDate(0, 0, 91)) {
			t.Fatalf("slot %s outside the next 90 days", s)
		}
		if fe := hours.Check(s); fe != nil {
			t.Fatalf("slot %s rejected: %s", s, fe.Message)
		}
		if s.Minute()%15 != 0 {
			t.Fatalf("slot %s not on a quarter hour", s)
		}
	}
}

func TestGenerator_Appointment(t *testing.T) {
	g := newGenerator(7, seedNow, time.UTC, "secret1")
	doctors := []uuid.UUID{uuid.New(), uuid.New()}
	patients := []uuid.UUID{uuid.New()}

	in := g.appointment(doctors, patients, scheduling.DefaultBusinessHours(time.UTC))
	if *in.PatientID != patients[0] {
		t.Errorf("unexpected patient %s", *in.PatientID)
	}
	if *in.DoctorID != doctors[0] && *in.DoctorID != doctors[1] {
		t.Errorf("unexpected doctor %s", *in.DoctorID)
	}
	if in.Status != nil {
		t.Error("new appointments take the default status")
	}
	if *in.DurationMinutes%15 != 0 {
		t.Errorf("unexpected duration %d", *in.DurationMinutes)
	}
}

func TestAppointmentFeed_PublishesToBothParties(t *testing.T) {
	hub := websocket.NewHub(zerolog.Nop())
	a := &scheduling.Appointment{ID: uuid.New(), DoctorID: uuid.New(), PatientID: uuid.New(), Status: scheduling.StatusCancelled}
	doctor := websocket.NewClient(websocket.Topic(auth.UserDoctor, a.DoctorID), 1)
	patient := websocket.NewClient(websocket.Topic(auth.UserPatient, a.PatientID), 1)
	other := websocket.NewClient(websocket.Topic(auth.UserPatient, uuid.New()), 1)
	for _, c := range []*websocket.Client{doctor, patient, other} {
		hub.Register(c)
	}

	appointmentFeed{hub: hub, logger: zerolog.Nop()}.AppointmentChanged(context.Background(), "cancelled", a)

	for name, c := range map[string]*websocket.Client{"doctor": doctor, "patient": patient} {
		select {
		case msg := <-c.Send:
			var ev websocket.Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ev.Type != "appointment.cancelled" || ev.ID != a.ID.String() {
				t.Errorf("%s got %+v", name, ev)
			}
		default:
			t.Errorf("%s received nothing", name)
		}
	}
	if len(other.Send) != 0 {
		t.Error("unrelated account received the event")
	}
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
