package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthportal/portal/internal/platform/validation"
	"github.com/healthportal/portal/pkg/clock"
)

// Monday 6 January 2025, 10:00 UTC.
var testNow = time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC)

// tuesdayAt returns Tuesday 7 January 2025 at h:m UTC.
func tuesdayAt(h, m int) time.Time {
	return time.Date(2025, time.January, 7, h, m, 0, 0, time.UTC)
}

func newTestValidator(repo *mockAppointmentRepo) *Validator {
	return NewValidator(clock.Fixed(testNow), DefaultBusinessHours(time.UTC), repo)
}

func candidate(doctorID uuid.UUID, start time.Time, minutes int) *Appointment {
	a := NewAppointment()
	a.DoctorID = doctorID
	a.PatientID = uuid.New()
	a.AppointmentDate = start
	a.DurationMinutes = minutes
	return a
}

func validate(t *testing.T, v *Validator, a *Appointment) validation.Errors {
	t.Helper()
	errs, err := v.Validate(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return errs
}

func TestValidate_Accepted(t *testing.T) {
	repo := newMockAppointmentRepo()
	v := newTestValidator(repo)

	errs := validate(t, v, candidate(uuid.New(), tuesdayAt(14, 0), 30))
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_PastBoundary(t *testing.T) {
	v := newTestValidator(newMockAppointmentRepo())
	boundary := testNow.Add(-time.Hour)

	if errs := validate(t, v, candidate(uuid.New(), boundary, 30)); len(errs) != 0 {
		t.Errorf("start exactly one hour ago should be accepted, got %v", errs)
	}

	errs := validate(t, v, candidate(uuid.New(), boundary.Add(-time.Nanosecond), 30))
	if !errs.Has(CodeTooFarInPast) {
		t.Errorf("expected %s, got %v", CodeTooFarInPast, errs.Codes())
	}
	if got := errs.On("appointment_date"); len(got) != 1 || got[0].Message != "cannot be more than 1 hour in the past" {
		t.Errorf("unexpected appointment_date errors: %v", got)
	}
}

func TestValidate_FutureBoundary(t *testing.T) {
	v := newTestValidator(newMockAppointmentRepo())
	limit := testNow.AddDate(2, 0, 0) // Wednesday 6 January 2027, 10:00

	if errs := validate(t, v, candidate(uuid.New(), limit, 30)); len(errs) != 0 {
		t.Errorf("start exactly two years ahead should be accepted, got %v", errs)
	}
	errs := validate(t, v, candidate(uuid.New(), limit.Add(time.Minute), 30))
	if !errs.Has(CodeTooFarInFuture) {
		t.Errorf("expected %s, got %v", CodeTooFarInFuture, errs.Codes())
	}
}

func TestValidate_Sunday(t *testing.T) {
	v := newTestValidator(newMockAppointmentRepo())
	for _, hour := range []int{0, 7, 10, 14, 23} {
		start := time.Date(2025, time.January, 12, hour, 0, 0, 0, time.UTC)
		errs := validate(t, v, candidate(uuid.New(), start, 30))
		if len(errs) != 1 || errs[0].Code != CodeClosedDay {
			t.Errorf("hour %d: expected only %s, got %v", hour, CodeClosedDay, errs)
			continue
		}
		if errs[0].Message != "appointments cannot be scheduled on Sundays" {
			t.Errorf("unexpected message %q", errs[0].Message)
		}
	}
}

func TestValidate_BusinessHours(t *testing.T) {
	v := newTestValidator(newMockAppointmentRepo())
	saturday := func(h, m int) time.Time { return time.Date(2025, time.January, 11, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		start time.Time
		ok    bool
		msg   string
	}{
		{"weekday opening", tuesdayAt(7, 0), true, ""},
		{"weekday before opening", tuesdayAt(6, 59), false, "weekday appointments must be between 7 AM and 6 PM"},
		{"weekday last hour", tuesdayAt(18, 45), true, ""},
		{"weekday evening", tuesdayAt(19, 0), false, "weekday appointments must be between 7 AM and 6 PM"},
		{"saturday opening", saturday(8, 0), true, ""},
		{"saturday early", saturday(7, 30), false, "Saturday appointments must be between 8 AM and 2 PM"},
		{"saturday last hour", saturday(14, 30), true, ""},
		{"saturday afternoon", saturday(15, 0), false, "Saturday appointments must be between 8 AM and 2 PM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validate(t, v, candidate(uuid.New(), tt.start, 30))
			if tt.ok {
				if len(errs) != 0 {
					t.Errorf("expected acceptance, got %v", errs)
				}
				return
			}
			if len(errs) != 1 || errs[0].Code != CodeOutsideBusinessHours || errs[0].Message != tt.msg {
				t.Errorf("expected %s %q, got %v", CodeOutsideBusinessHours, tt.msg, errs)
			}
		})
	}
}

func TestValidate_BusinessHoursUseLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	v := NewValidator(clock.Fixed(testNow), DefaultBusinessHours(ny), nil)

	// 12:00 UTC on Tuesday is 07:00 in New York.
	if errs := validate(t, v, candidate(uuid.New(), tuesdayAt(12, 0), 30)); len(errs) != 0 {
		t.Errorf("expected acceptance in New York hours, got %v", errs)
	}
	// 11:00 UTC is 06:00 in New York.
	errs := validate(t, v, candidate(uuid.New(), tuesdayAt(11, 0), 30))
	if !errs.Has(CodeOutsideBusinessHours) {
		t.Errorf("expected %s, got %v", CodeOutsideBusinessHours, errs.Codes())
	}
}

func TestValidate_Overlap(t *testing.T) {
	repo := newMockAppointmentRepo()
	doctor := uuid.New()
	repo.put(candidate(doctor, tuesdayAt(14, 0), 30)) // A
	v := newTestValidator(repo)

	tests := []struct {
		name    string
		start   time.Time
		minutes int
		booked  bool
	}{
		{"overlaps the second half", tuesdayAt(14, 15), 30, true},
		{"starts at the same time", tuesdayAt(14, 0), 5, true},
		{"contains it", tuesdayAt(13, 30), 120, true},
		{"starts when it ends", tuesdayAt(14, 30), 30, false},
		{"ends when it starts", tuesdayAt(13, 30), 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validate(t, v, candidate(doctor, tt.start, tt.minutes))
			if errs.Has(CodeDoubleBooked) != tt.booked {
				t.Errorf("double booked = %v, want %v (%v)", errs.Has(CodeDoubleBooked), tt.booked, errs)
			}
		})
	}

	t.Run("other doctor", func(t *testing.T) {
		if errs := validate(t, v, candidate(uuid.New(), tuesdayAt(14, 15), 30)); len(errs) != 0 {
			t.Errorf("expected no conflict for another doctor, got %v", errs)
		}
	})
}

func TestValidate_OverlapMessage(t *testing.T) {
	repo := newMockAppointmentRepo()
	doctor := uuid.New()
	repo.put(candidate(doctor, tuesdayAt(14, 0), 30))

	errs := validate(t, newTestValidator(repo), candidate(doctor, tuesdayAt(14, 15), 30))
	got := errs.On("appointment_date")
	if len(got) != 1 || got[0].Message != "conflicts with another appointment for this doctor" {
		t.Errorf("unexpected errors %v", errs)
	}
}

func TestValidate_SelfNeverConflicts(t *testing.T) {
	repo := newMockAppointmentRepo()
	doctor := uuid.New()
	a := repo.put(candidate(doctor, tuesdayAt(14, 0), 30))
	v := newTestValidator(repo)

	moved := *a
	moved.AppointmentDate = tuesdayAt(14, 15)
	if errs := validate(t, v, &moved); len(errs) != 0 {
		t.Errorf("updating an appointment must not conflict with itself, got %v", errs)
	}
}

func TestValidate_TerminalAppointmentsDoNotBlock(t *testing.T) {
	for _, status := range []Status{StatusCancelled, StatusNoShow} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMockAppointmentRepo()
			doctor := uuid.New()
			existing := candidate(doctor, tuesdayAt(14, 0), 30)
			existing.Status = status
			repo.put(existing)

			errs := validate(t, newTestValidator(repo), candidate(doctor, tuesdayAt(14, 0), 30))
			if len(errs) != 0 {
				t.Errorf("%s appointment should not block the slot, got %v", status, errs)
			}
		})
	}
}

func TestValidate_CompletedAppointmentsBlock(t *testing.T) {
	repo := newMockAppointmentRepo()
	doctor := uuid.New()
	existing := candidate(doctor, tuesdayAt(14, 0), 30)
	existing.Status = StatusCompleted
	repo.put(existing)

	errs := validate(t, newTestValidator(repo), candidate(doctor, tuesdayAt(14, 10), 30))
	if !errs.Has(CodeDoubleBooked) {
		t.Errorf("expected completed appointment to hold its slot, got %v", errs)
	}
}

func TestValidate_CancelledCandidateSkipsOverlap(t *testing.T) {
	repo := newMockAppointmentRepo()
	doctor := uuid.New()
	repo.put(candidate(doctor, tuesdayAt(14, 0), 30))

	c := candidate(doctor, tuesdayAt(14, 0), 30)
	c.Status = StatusCancelled
	if errs := validate(t, newTestValidator(repo), c); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_Duration(t *testing.T) {
	v := newTestValidator(newMockAppointmentRepo())
	tests := []struct {
		minutes int
		ok      bool
	}{
		{3, false},
		{4, false},
		{5, true},
		{30, true},
		{480, true},
		{481, false},
	}
	for _, tt := range tests {
		errs := validate(t, v, candidate(uuid.New(), tuesdayAt(9, 0), tt.minutes))
		if errs.Has(CodeInvalidDuration) == tt.ok {
			t.Errorf("duration %d: errors %v, want ok=%v", tt.minutes, errs, tt.ok)
		}
		if !tt.ok {
			fe := errs.On("duration_minutes")
			if len(fe) != 1 || fe[0].Message != "must be between 5 and 480 minutes (8 hours)" {
				t.Errorf("duration %d: unexpected message %v", tt.minutes, fe)
			}
		}
	}
}

func TestValidate_Enumerations(t *testing.T) {
	v := newTestValidator(newMockAppointmentRepo())
	a := candidate(uuid.New(), tuesdayAt(9, 0), 30)
	a.Status = "pending"
	a.AppointmentType = "checkup"

	errs := validate(t, v, a)
	if !errs.Has(CodeInvalidStatus) || !errs.Has(CodeInvalidType) {
		t.Fatalf("expected status and type errors, got %v", errs.Codes())
	}
	want := "must be one of: scheduled, confirmed, completed, cancelled, no_show"
	if got := errs.On("status")[0].Message; got != want {
		t.Errorf("status message = %q, want %q", got, want)
	}
}

func TestValidate_Required(t *testing.T) {
	v := newTestValidator(newMockAppointmentRepo())
	errs := validate(t, v, NewAppointment())

	for _, field := range []string{"doctor_id", "patient_id", "appointment_date"} {
		fe := errs.On(field)
		if len(fe) != 1 || fe[0].Code != validation.CodeRequired || fe[0].Message != "can't be blank" {
			t.Errorf("%s: expected a single required error, got %v", field, fe)
		}
	}
	if len(errs) != 3 {
		t.Errorf("expected exactly the three required errors, got %v", errs)
	}
}

func TestValidate_Accumulates(t *testing.T) {
	repo := newMockAppointmentRepo()
	v := newTestValidator(repo)

	// A Sunday a week before now: too far in the past and closed.
	a := candidate(uuid.New(), time.Date(2024, time.December, 29, 10, 0, 0, 0, time.UTC), 481)
	errs := validate(t, v, a)

	want := []string{CodeInvalidDuration, CodeTooFarInPast, CodeClosedDay}
	got := errs.Codes()
	if len(got) != len(want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("codes[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestValidate_FinderError(t *testing.T) {
	repo := newMockAppointmentRepo()
	repo.findErr = errors.New("connection refused")
	v := newTestValidator(repo)

	_, err := v.Validate(context.Background(), candidate(uuid.New(), tuesdayAt(9, 0), 30))
	if err == nil || !errors.Is(err, repo.findErr) {
		t.Errorf("expected wrapped finder error, got %v", err)
	}
}
