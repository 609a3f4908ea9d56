package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthportal/portal/internal/platform/validation"
	"github.com/healthportal/portal/pkg/clock"
)

// Codes reported by Validate in addition to validation.CodeRequired.
const (
	CodeTooFarInFuture       = "too_far_in_future"
	CodeTooFarInPast         = "too_far_in_past"
	CodeClosedDay            = "closed_day"
	CodeOutsideBusinessHours = "outside_business_hours"
	CodeDoubleBooked         = "double_booked"
	CodeInvalidDuration      = "invalid_duration"
	CodeInvalidType          = "invalid_type"
	CodeInvalidStatus        = "invalid_status"
)

const (
	MaxLeadTime = 2 // years
	MaxLateness = time.Hour
)

// OverlapFinder returns the blocking appointments of one doctor whose
// interval intersects [start, end), excluding excludeID.
type OverlapFinder interface {
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error)
}

// Window is an inclusive range of start hours.
type Window struct {
	Open, Close int
}

func (w Window) contains(hour int) bool {
	return hour >= w.Open && hour <= w.Close
}

// BusinessHours holds the start-hour windows per weekday in one location.
// A nil entry means the day is closed.
type BusinessHours struct {
	Location *time.Location
	Days     [7]*Window
}

func DefaultBusinessHours(loc *time.Location) BusinessHours {
	if loc == nil {
		loc = time.UTC
	}
	weekday := &Window{Open: 7, Close: 18}
	return BusinessHours{
		Location: loc,
		Days: [7]*Window{
			time.Sunday:    nil,
			time.Monday:    weekday,
			time.Tuesday:   weekday,
			time.Wednesday: weekday,
			time.Thursday:  weekday,
			time.Friday:    weekday,
			time.Saturday:  {Open: 8, Close: 14},
		},
	}
}

// Check returns a field error when t does not fall inside the window of its
// local weekday.
func (b BusinessHours) Check(t time.Time) *validation.FieldError {
	local := t.In(b.Location)
	day := local.Weekday()
	w := b.Days[day]
	if w == nil {
		return &validation.FieldError{
			Field:   "appointment_date",
			Code:    CodeClosedDay,
			Message: fmt.Sprintf("appointments cannot be scheduled on %ss", day),
		}
	}
	if w.contains(local.Hour()) {
		return nil
	}
	label := "weekday"
	if day == time.Saturday {
		label = "Saturday"
	}
	return &validation.FieldError{
		Field:   "appointment_date",
		Code:    CodeOutsideBusinessHours,
		Message: fmt.Sprintf("%s appointments must be between %s and %s", label, hourLabel(w.Open), hourLabel(w.Close)),
	}
}

func hourLabel(h int) string {
	switch {
	case h == 0:
		return "12 AM"
	case h < 12:
		return fmt.Sprintf("%d AM", h)
	case h == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", h-12)
	}
}

// Validator decides whether a candidate appointment may be persisted. It
// holds no state of its own; time comes from the clock and existing bookings
// from the finder.
type Validator struct {
	clock  clock.Clock
	hours  BusinessHours
	finder OverlapFinder
}

func NewValidator(clk clock.Clock, hours BusinessHours, finder OverlapFinder) *Validator {
	if clk == nil {
		clk = clock.System{}
	}
	return &Validator{clock: clk, hours: hours, finder: finder}
}

func (v *Validator) Hours() BusinessHours { return v.hours }

// Validate runs every check and returns all failures together. The error
// return is reserved for the overlap lookup failing.
func (v *Validator) Validate(ctx context.Context, a *Appointment) (validation.Errors, error) {
	var errs validation.Errors
	now := v.clock.Now()

	if a.DoctorID == uuid.Nil {
		errs.Add("doctor_id", validation.CodeRequired, "can't be blank")
	}
	if a.PatientID == uuid.Nil {
		errs.Add("patient_id", validation.CodeRequired, "can't be blank")
	}
	hasDate := !a.AppointmentDate.IsZero()
	if !hasDate {
		errs.Add("appointment_date", validation.CodeRequired, "can't be blank")
	}

	if !a.Status.Valid() {
		errs.Add("status", CodeInvalidStatus, "must be one of: "+joinStatuses(Statuses))
	}
	if a.DurationMinutes < MinDuration || a.DurationMinutes > MaxDuration {
		errs.Add("duration_minutes", CodeInvalidDuration,
			fmt.Sprintf("must be between %d and %d minutes (8 hours)", MinDuration, MaxDuration))
	}
	if !a.AppointmentType.Valid() {
		errs.Add("appointment_type", CodeInvalidType, "must be one of: "+joinTypes(Types))
	}

	if hasDate {
		if a.AppointmentDate.After(now.AddDate(MaxLeadTime, 0, 0)) {
			errs.Add("appointment_date", CodeTooFarInFuture, "cannot be more than 2 years in the future")
		}
		if a.AppointmentDate.Before(now.Add(-MaxLateness)) {
			errs.Add("appointment_date", CodeTooFarInPast, "cannot be more than 1 hour in the past")
		}
	}

	if hasDate && a.DoctorID != uuid.Nil && a.DurationMinutes > 0 && a.Status.Blocking() && v.finder != nil {
		conflicts, err := v.finder.FindOverlapping(ctx, a.DoctorID, a.AppointmentDate, a.EndTime(), a.ID)
		if err != nil {
			return nil, fmt.Errorf("checking doctor availability: %w", err)
		}
		if len(conflicts) > 0 {
			errs.Add("appointment_date", CodeDoubleBooked, "conflicts with another appointment for this doctor")
		}
	}

	if hasDate {
		if fe := v.hours.Check(a.AppointmentDate); fe != nil {
			errs = append(errs, *fe)
		}
	}

	return errs, nil
}

func joinStatuses(ss []Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
