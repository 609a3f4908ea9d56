package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/domain/scheduling"
	"github.com/healthportal/portal/internal/platform/auth"
)

const (
	DoctorRecentLimit   = 5
	FacilityRecentLimit = 10
	UpcomingLimit       = 20
)

// Authenticator checks one account type's credentials and returns the
// account id. Failures must be auth.ErrInvalidCredentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (uuid.UUID, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, email, password string) (uuid.UUID, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	return f(ctx, email, password)
}

// Appointments is the slice of the scheduling service the dashboards read.
type Appointments interface {
	ListAppointments(ctx context.Context, q scheduling.ListQuery, limit, offset int) ([]*scheduling.Appointment, int, error)
	DistinctPatients(ctx context.Context, doctorID uuid.UUID) (int, error)
	Now() time.Time
}

type DoctorCounter interface {
	DoctorCount(ctx context.Context, facilityID uuid.UUID) (int, error)
}

// LoginRecorder receives login outcomes. *metrics.Metrics satisfies it.
type LoginRecorder interface {
	Login(userType string, ok bool)
}

type nopLoginRecorder struct{}

func (nopLoginRecorder) Login(string, bool) {}

type Service struct {
	authenticators map[auth.UserType]Authenticator
	appointments   Appointments
	facilities     DoctorCounter
	recorder       LoginRecorder
	logger         zerolog.Logger
}

type Option func(*Service)

func WithAuthenticator(t auth.UserType, a Authenticator) Option {
	return func(s *Service) { s.authenticators[t] = a }
}

func WithLoginRecorder(r LoginRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(appointments Appointments, facilities DoctorCounter, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		authenticators: make(map[auth.UserType]Authenticator),
		appointments:   appointments,
		facilities:     facilities,
		recorder:       nopLoginRecorder{},
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks the credentials for the given account type. Unknown types,
// unknown emails and wrong passwords all yield auth.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, userType, email, password string) (*auth.Principal, error) {
	t, err := auth.ParseUserType(userType)
	if err != nil {
		s.recorder.Login("unknown", false)
		return nil, auth.ErrInvalidCredentials
	}
	a, ok := s.authenticators[t]
	if !ok {
		s.recorder.Login(string(t), false)
		return nil, auth.ErrInvalidCredentials
	}

	id, err := a.Authenticate(ctx, email, password)
	if err != nil {
		s.recorder.Login(string(t), false)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Info().Str("user_type", string(t)).Msg("login rejected")
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate %s: %w", t, err)
	}
	s.recorder.Login(string(t), true)
	return &auth.Principal{UserType: t, UserID: id}, nil
}

type DoctorDashboard struct {
	UpcomingAppointments []*scheduling.AppointmentView `json:"upcoming_appointments"`
	UpcomingCount        int                           `json:"upcoming_appointments_count"`
	TotalPatients        int                           `json:"total_patients"`
	RecentAppointments   []*scheduling.AppointmentView `json:"recent_appointments"`
}

type PatientDashboard struct {
	UpcomingAppointments []*scheduling.AppointmentView `json:"upcoming_appointments"`
	UpcomingCount        int                           `json:"upcoming_appointments_count"`
}

type FacilityDashboard struct {
	TotalDoctors       int                           `json:"total_doctors"`
	RecentAppointments []*scheduling.AppointmentView `json:"recent_appointments"`
}

func (s *Service) upcoming(ctx context.Context, q scheduling.ListQuery) ([]*scheduling.AppointmentView, int, error) {
	q.Scope = "upcoming"
	q.Statuses = scheduling.UpcomingStatuses
	q.Ascending = true
	items, total, err := s.appointments.ListAppointments(ctx, q, UpcomingLimit, 0)
	if err != nil {
		return nil, 0, err
	}
	return scheduling.NewViews(items, s.appointments.Now()), total, nil
}

func (s *Service) recent(ctx context.Context, q scheduling.ListQuery, limit int) ([]*scheduling.AppointmentView, error) {
	items, _, err := s.appointments.ListAppointments(ctx, q, limit, 0)
	if err != nil {
		return nil, err
	}
	return scheduling.NewViews(items, s.appointments.Now()), nil
}

func (s *Service) DoctorDashboard(ctx context.Context, doctorID uuid.UUID) (*DoctorDashboard, error) {
	q := scheduling.ListQuery{DoctorID: &doctorID}
	upcoming, count, err := s.upcoming(ctx, q)
	if err != nil {
		return nil, err
	}
	patients, err := s.appointments.DistinctPatients(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	recent, err := s.recent(ctx, q, DoctorRecentLimit)
	if err != nil {
		return nil, err
	}
	return &DoctorDashboard{
		UpcomingAppointments: upcoming,
		UpcomingCount:        count,
		TotalPatients:        patients,
		RecentAppointments:   recent,
	}, nil
}

func (s *Service) PatientDashboard(ctx context.Context, patientID uuid.UUID) (*PatientDashboard, error) {
	upcoming, count, err := s.upcoming(ctx, scheduling.ListQuery{PatientID: &patientID})
	if err != nil {
		return nil, err
	}
	return &PatientDashboard{UpcomingAppointments: upcoming, UpcomingCount: count}, nil
}

func (s *Service) FacilityDashboard(ctx context.Context, facilityID uuid.UUID) (*FacilityDashboard, error) {
	doctors, err := s.facilities.DoctorCount(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	recent, err := s.recent(ctx, scheduling.ListQuery{FacilityID: &facilityID}, FacilityRecentLimit)
	if err != nil {
		return nil, err
	}
	return &FacilityDashboard{TotalDoctors: doctors, RecentAppointments: recent}, nil
}
