package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/validation"
	"github.com/healthportal/portal/pkg/clock"
)

var ErrInvalidScope = errors.New("scope must be one of: upcoming, past, today, this_week")

// Recorder receives appointment outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ValidationRejected(code string)
	Transition(action string, ok bool)
	AppointmentWrite(operation string, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) ValidationRejected(string)     {}
func (nopRecorder) Transition(string, bool)       {}
func (nopRecorder) AppointmentWrite(string, bool) {}

// Publisher is told about every stored change. change is "created",
// "updated" or the new status after a lifecycle action.
type Publisher interface {
	AppointmentChanged(ctx context.Context, change string, a *Appointment)
}

type nopPublisher struct{}

func (nopPublisher) AppointmentChanged(context.Context, string, *Appointment) {}

// AppointmentInput carries the client-supplied attributes. Nil fields keep
// the default on create and the stored value on update.
type AppointmentInput struct {
	DoctorID        *uuid.UUID `json:"doctor_id"`
	PatientID       *uuid.UUID `json:"patient_id"`
	AppointmentDate *time.Time `json:"appointment_date"`
	DurationMinutes *int       `json:"duration_minutes"`
	Status          *Status    `json:"status"`
	AppointmentType *Type      `json:"appointment_type"`
	Notes           *string    `json:"notes"`
}

func (in AppointmentInput) applyTo(a *Appointment) {
	if in.DoctorID != nil {
		a.DoctorID = *in.DoctorID
	}
	if in.PatientID != nil {
		a.PatientID = *in.PatientID
	}
	if in.AppointmentDate != nil {
		a.AppointmentDate = *in.AppointmentDate
	}
	if in.DurationMinutes != nil {
		a.DurationMinutes = *in.DurationMinutes
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.AppointmentType != nil {
		a.AppointmentType = *in.AppointmentType
	}
	if in.Notes != nil {
		a.Notes = in.Notes
	}
}

type Config struct {
	Location                *time.Location
	NoShowRequiresPastStart bool
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	repo      AppointmentRepository
	tx        db.TxRunner
	clock     clock.Clock
	loc       *time.Location
	validator *Validator
	lifecycle *Lifecycle
	metrics   Recorder
	publisher Publisher
	logger    zerolog.Logger
}

func NewService(repo AppointmentRepository, tx db.TxRunner, clk clock.Clock, cfg Config, opts ...Option) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if tx == nil {
		tx = db.NoopTxRunner{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		repo:      repo,
		tx:        tx,
		clock:     clk,
		loc:       loc,
		validator: NewValidator(clk, DefaultBusinessHours(loc), repo),
		lifecycle: NewLifecycle(clk, cfg.NoShowRequiresPastStart),
		metrics:   nopRecorder{},
		publisher: nopPublisher{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location { return s.loc }
func (s *Service) Now() time.Time           { return s.clock.Now() }

// CreateAppointment validates and stores a new appointment. The doctor row
// stays locked from the overlap check until the insert commits.
func (s *Service) CreateAppointment(ctx context.Context, in AppointmentInput) (*Appointment, error) {
	a := NewAppointment()
	in.applyTo(a)

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := initialStatusErr(a).Err(); err != nil {
			return err
		}
		if err := s.checkLocked(ctx, a); err != nil {
			return err
		}
		return s.repo.Create(ctx, a)
	})
	if err = s.finishWrite("create", a, err); err != nil {
		return nil, err
	}
	s.publisher.AppointmentChanged(ctx, "created", a)
	return a, nil
}

// UpdateAppointment applies in to a live appointment and re-validates it.
// Status changes go through the lifecycle actions instead.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, in AppointmentInput) (*Appointment, error) {
	var a *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.CanBeRescheduled() {
			return fmt.Errorf("%w: cannot modify a %s appointment", ErrInvalidTransition, current.Status)
		}
		if in.Status != nil && *in.Status != current.Status {
			return fmt.Errorf("%w: use the lifecycle actions to change status", ErrInvalidTransition)
		}
		a = current
		in.applyTo(a)
		if err := s.checkLocked(ctx, a); err != nil {
			return err
		}
		return s.repo.Update(ctx, a)
	})
	if err = s.finishWrite("update", a, err); err != nil {
		return nil, err
	}
	s.publisher.AppointmentChanged(ctx, "updated", a)
	return a, nil
}

// initialStatusErr refuses to book an appointment that is already over.
// Such a row would skip the overlap check and could never be acted on.
func initialStatusErr(a *Appointment) validation.Errors {
	if !a.Status.Valid() || !a.Status.Terminal() {
		return nil
	}
	return validation.Errors{{
		Field:   "status",
		Code:    CodeInvalidStatus,
		Message: "new appointments must be scheduled or confirmed",
	}}
}

func (s *Service) checkLocked(ctx context.Context, a *Appointment) error {
	if a.DoctorID != uuid.Nil {
		if err := s.repo.LockDoctor(ctx, a.DoctorID); err != nil {
			return err
		}
	}
	errs, err := s.validator.Validate(ctx, a)
	if err != nil {
		return err
	}
	return errs.Err()
}

func (s *Service) finishWrite(op string, a *Appointment, err error) error {
	if errors.Is(err, ErrOverlap) {
		err = validation.Errors{{
			Field:   "appointment_date",
			Code:    CodeDoubleBooked,
			Message: "conflicts with another appointment for this doctor",
		}}
	}

	var verrs validation.Errors
	switch {
	case err == nil:
		s.metrics.AppointmentWrite(op, true)
		s.logger.Info().Str("operation", op).Str("appointment_id", a.ID.String()).
			Str("doctor_id", a.DoctorID.String()).Time("appointment_date", a.AppointmentDate).
			Msg("appointment saved")
		return nil
	case errors.As(err, &verrs):
		for _, code := range verrs.Codes() {
			s.metrics.ValidationRejected(code)
		}
		s.logger.Debug().Str("operation", op).Strs("codes", verrs.Codes()).Msg("appointment rejected")
	default:
		s.logger.Warn().Err(err).Str("operation", op).Msg("appointment write failed")
	}
	s.metrics.AppointmentWrite(op, false)
	return err
}

// ValidateAppointment is a dry run: it reports what Create (or Update when
// id is set) would reject without writing anything.
func (s *Service) ValidateAppointment(ctx context.Context, id *uuid.UUID, in AppointmentInput) (validation.Errors, error) {
	a := NewAppointment()
	if id != nil {
		current, err := s.repo.GetByID(ctx, *id)
		if err != nil {
			return nil, err
		}
		a = current
	}
	in.applyTo(a)
	errs, err := s.validator.Validate(ctx, a)
	if err != nil {
		return nil, err
	}
	if id == nil {
		errs.Merge(initialStatusErr(a))
	}
	return errs, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	s.metrics.AppointmentWrite("delete", err == nil)
	return err
}

// ListQuery is the caller-facing filter; Scope is resolved against the
// clock in the business location. Status wins over Statuses. The upcoming
// scope only returns UpcomingStatuses unless a status is given.
type ListQuery struct {
	DoctorID   *uuid.UUID
	PatientID  *uuid.UUID
	FacilityID *uuid.UUID
	Status     *Status
	Statuses   []Status
	Type       *Type
	From       *time.Time
	To         *time.Time
	Scope      string
	Ascending  bool
}

func (s *Service) Filter(q ListQuery) (ListFilter, error) {
	f := ListFilter{
		DoctorID:   q.DoctorID,
		PatientID:  q.PatientID,
		FacilityID: q.FacilityID,
		Type:       q.Type,
		From:       q.From,
		To:         q.To,
		Statuses:   q.Statuses,
		Ascending:  q.Ascending,
	}
	if q.Status != nil {
		f.Statuses = []Status{*q.Status}
	}

	now := s.clock.Now()
	switch q.Scope {
	case "":
	case "upcoming":
		f.After = &now
		if len(f.Statuses) == 0 {
			f.Statuses = UpcomingStatuses
		}
	case "past":
		f.Until = &now
	case "today":
		start := startOfDay(now, s.loc)
		end := start.AddDate(0, 0, 1)
		f.From, f.To = &start, &end
	case "this_week":
		start := startOfWeek(now, s.loc)
		end := start.AddDate(0, 0, 7)
		f.From, f.To = &start, &end
	default:
		return ListFilter{}, ErrInvalidScope
	}
	return f, nil
}

func (s *Service) ListAppointments(ctx context.Context, q ListQuery, limit, offset int) ([]*Appointment, int, error) {
	f, err := s.Filter(q)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, f, limit, offset)
}

// UpcomingForDoctor counts the doctor's live appointments that have not
// started yet.
func (s *Service) UpcomingForDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	now := s.clock.Now()
	return s.repo.Count(ctx, ListFilter{
		DoctorID: &doctorID,
		After:    &now,
		Statuses: UpcomingStatuses,
	})
}

func (s *Service) DistinctPatients(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return s.repo.CountDistinctPatients(ctx, doctorID)
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActionConfirm, "")
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, id, ActionCancel, reason)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActionComplete, "")
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActionNoShow, "")
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, action Action, reason string) (*Appointment, error) {
	t, err := s.lifecycle.Plan(id, action, reason)
	if err != nil {
		return nil, err
	}

	a, err := s.repo.Transition(ctx, t)
	if err == nil {
		s.metrics.Transition(string(action), true)
		s.logger.Info().Str("appointment_id", id.String()).Str("action", string(action)).
			Str("status", string(a.Status)).Msg("appointment transitioned")
		s.publisher.AppointmentChanged(ctx, string(a.Status), a)
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(string(action), false)
	return nil, s.lifecycle.Explain(current, t)
}

const (
	SlotFirstHour = 9
	SlotLastHour  = 17
)

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// AvailableSlots lists the hourly start times between 09:00 and 17:00 on
// day (business location) at which the doctor could take an appointment of
// the given length. Slots that would be rejected on booking are left out.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, day time.Time, duration int) ([]Slot, error) {
	if duration == 0 {
		duration = DefaultDuration
	}
	if duration < MinDuration || duration > MaxDuration {
		var errs validation.Errors
		errs.Add("duration_minutes", CodeInvalidDuration,
			fmt.Sprintf("must be between %d and %d minutes (8 hours)", MinDuration, MaxDuration))
		return nil, errs
	}

	length := time.Duration(duration) * time.Minute
	y, m, d := day.In(s.loc).Date()
	at := func(hour int) time.Time { return time.Date(y, m, d, hour, 0, 0, 0, s.loc) }

	booked, err := s.repo.FindOverlapping(ctx, doctorID, at(SlotFirstHour), at(SlotLastHour).Add(length), uuid.Nil)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	slots := []Slot{}
	for hour := SlotFirstHour; hour <= SlotLastHour; hour++ {
		start := at(hour)
		end := start.Add(length)
		if start.Before(now.Add(-MaxLateness)) || start.After(now.AddDate(MaxLeadTime, 0, 0)) {
			continue
		}
		if s.validator.Hours().Check(start) != nil {
			continue
		}
		if conflicts(booked, start, end) {
			continue
		}
		slots = append(slots, Slot{Start: start, End: end, Label: start.In(s.loc).Format("03:04 PM")})
	}
	return slots, nil
}

func conflicts(booked []*Appointment, start, end time.Time) bool {
	for _, b := range booked {
		if b.Status.Blocking() && b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// startOfWeek returns Monday 00:00 of t's week.
func startOfWeek(t time.Time, loc *time.Location) time.Time {
	day := startOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
