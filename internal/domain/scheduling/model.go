package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var Statuses = []Status{StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

// UpcomingStatuses are the statuses an appointment that has not happened
// yet can still be in.
var UpcomingStatuses = []Status{StatusScheduled, StatusConfirmed}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further lifecycle transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Blocking reports whether an appointment in this status occupies the
// doctor's time. Cancelled and no-show appointments free their slot.
func (s Status) Blocking() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Display renders "no_show" as "No Show".
func (s Status) Display() string {
	return titleize(string(s))
}

type Type string

const (
	TypeRoutine      Type = "routine"
	TypeFollowUp     Type = "follow_up"
	TypeEmergency    Type = "emergency"
	TypeConsultation Type = "consultation"
	TypeProcedure    Type = "procedure"
	TypeSurgery      Type = "surgery"
	TypeTherapy      Type = "therapy"
	TypeScreening    Type = "screening"
	TypeVaccination  Type = "vaccination"
	TypeOther        Type = "other"
)

var Types = []Type{
	TypeRoutine, TypeFollowUp, TypeEmergency, TypeConsultation, TypeProcedure,
	TypeSurgery, TypeTherapy, TypeScreening, TypeVaccination, TypeOther,
}

func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

func (t Type) Display() string {
	if t == TypeFollowUp {
		return "Follow-up"
	}
	return titleize(string(t))
}

const (
	DefaultDuration = 30
	MinDuration     = 5
	MaxDuration     = 480
)

type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	AppointmentDate time.Time  `json:"appointment_date"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          Status     `json:"status"`
	AppointmentType Type       `json:"appointment_type"`
	Notes           *string    `json:"notes,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewAppointment returns a candidate with the defaults every new
// appointment starts from.
func NewAppointment() *Appointment {
	return &Appointment{
		Status:          StatusScheduled,
		DurationMinutes: DefaultDuration,
		AppointmentType: TypeRoutine,
	}
}

func (a *Appointment) EndTime() time.Time {
	return a.AppointmentDate.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps uses half-open intervals: an appointment ending at 14:30 does not
// overlap one starting at 14:30.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.AppointmentDate.Before(end) && a.EndTime().After(start)
}

func (a *Appointment) CanBeConfirmed() bool   { return a.Status == StatusScheduled }
func (a *Appointment) CanBeCancelled() bool   { return a.Status == StatusScheduled || a.Status == StatusConfirmed }
func (a *Appointment) CanBeCompleted() bool   { return a.Status == StatusConfirmed }
func (a *Appointment) CanBeRescheduled() bool { return a.CanBeCancelled() }

func (a *Appointment) IsUpcoming(now time.Time) bool { return a.AppointmentDate.After(now) }
func (a *Appointment) IsPast(now time.Time) bool     { return !a.AppointmentDate.After(now) }

func (a *Appointment) IsToday(now time.Time, loc *time.Location) bool {
	y1, m1, d1 := a.AppointmentDate.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DurationDisplay renders minutes as "1h 30m", "2h" or "45m".
func DurationDisplay(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

// TimeUntil describes how far away the appointment is in its largest whole
// unit ("3 days", "1 hour", "12 minutes"). Empty once it has started.
func (a *Appointment) TimeUntil(now time.Time) string {
	if !a.IsUpcoming(now) {
		return ""
	}
	d := a.AppointmentDate.Sub(now)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case days > 0:
		return plural(days, "day")
	case hours > 0:
		return plural(hours, "hour")
	default:
		return plural(minutes, "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func titleize(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// AppointmentView is the JSON shape returned by the API: the stored record
// plus derived display fields.
type AppointmentView struct {
	*Appointment
	EndTime         time.Time `json:"end_time"`
	DurationDisplay string    `json:"duration_display"`
	StatusDisplay   string    `json:"status_display"`
	TypeDisplay     string    `json:"appointment_type_display"`
	CanConfirm      bool      `json:"can_be_confirmed"`
	CanCancel       bool      `json:"can_be_cancelled"`
	CanComplete     bool      `json:"can_be_completed"`
	TimeUntil       string    `json:"time_until,omitempty"`
}

func NewView(a *Appointment, now time.Time) *AppointmentView {
	return &AppointmentView{
		Appointment:     a,
		EndTime:         a.EndTime(),
		DurationDisplay: DurationDisplay(a.DurationMinutes),
		StatusDisplay:   a.Status.Display(),
		TypeDisplay:     a.AppointmentType.Display(),
		CanConfirm:      a.CanBeConfirmed(),
		CanCancel:       a.CanBeCancelled(),
		CanComplete:     a.CanBeCompleted(),
		TimeUntil:       a.TimeUntil(now),
	}
}

func NewViews(items []*Appointment, now time.Time) []*AppointmentView {
	out := make([]*AppointmentView, len(items))
	for i, a := range items {
		out[i] = NewView(a, now)
	}
	return out
}
