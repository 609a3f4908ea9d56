package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/validation"
	"github.com/healthportal/portal/pkg/clock"
)

// FacilityDirectory resolves the kind ("hospital" or "clinic") of a
// facility. An unknown id yields "".
type FacilityDirectory interface {
	KindOf(ctx context.Context, id uuid.UUID) (string, error)
}

// AppointmentStats supplies the booking figures shown on doctor profiles.
type AppointmentStats interface {
	UpcomingForDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)
	DistinctPatients(ctx context.Context, doctorID uuid.UUID) (int, error)
}

type Service struct {
	doctors    DoctorRepository
	patients   PatientRepository
	facilities FacilityDirectory
	stats      AppointmentStats
	validator  *validation.Validator
	clock      clock.Clock
	logger     zerolog.Logger
}

func NewService(doctors DoctorRepository, patients PatientRepository, facilities FacilityDirectory,
	stats AppointmentStats, clk clock.Clock, logger zerolog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		doctors:    doctors,
		patients:   patients,
		facilities: facilities,
		stats:      stats,
		validator:  validation.New(),
		clock:      clk,
		logger:     logger,
	}
}

func (s *Service) Today() time.Time { return s.clock.Now() }

// checkPassword validates a new password. It is required on create and
// optional on update.
func checkPassword(errs *validation.Errors, password *string, required bool) {
	if password == nil || *password == "" {
		if required {
			errs.Add("password", validation.CodeRequired, "can't be blank")
		}
		return
	}
	if len(*password) < auth.MinPasswordLength {
		errs.Add("password", validation.CodeTooShort,
			fmt.Sprintf("is too short (minimum is %d characters)", auth.MinPasswordLength))
	}
}

func setPassword(digest *string, password *string) error {
	if password == nil || *password == "" {
		return nil
	}
	h, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	*digest = h
	return nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func normalizePhone(s *string) {
	if s != nil && *s != "" {
		*s = validation.NormalizePhone(*s)
	}
}

func optional(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// -- Doctor --

type DoctorInput struct {
	FirstName         *string    `json:"first_name"`
	LastName          *string    `json:"last_name"`
	Email             *string    `json:"email"`
	Phone             *string    `json:"phone"`
	Specialization    *string    `json:"specialization"`
	LicenseNumber     *string    `json:"license_number"`
	YearsOfExperience *int       `json:"years_of_experience"`
	HospitalID        *uuid.UUID `json:"hospital_id"`
	ClinicID          *uuid.UUID `json:"clinic_id"`
	Password          *string    `json:"password"`
}

func (in DoctorInput) applyTo(d *Doctor) {
	if in.FirstName != nil {
		d.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		d.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		d.Email = normalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		d.Phone = optional(in.Phone)
	}
	if in.Specialization != nil {
		d.Specialization = strings.TrimSpace(*in.Specialization)
	}
	if in.LicenseNumber != nil {
		d.LicenseNumber = strings.TrimSpace(*in.LicenseNumber)
	}
	if in.YearsOfExperience != nil {
		d.YearsOfExperience = *in.YearsOfExperience
	}
	if in.HospitalID != nil {
		d.HospitalID = nilIfZero(*in.HospitalID)
	}
	if in.ClinicID != nil {
		d.ClinicID = nilIfZero(*in.ClinicID)
	}
}

// nilIfZero lets clients detach a facility by sending the nil UUID.
func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (s *Service) validateDoctor(ctx context.Context, d *Doctor, password *string, creating bool) (validation.Errors, error) {
	errs := s.validator.Struct(d)
	checkPassword(&errs, password, creating)

	if d.HospitalID != nil && d.ClinicID != nil && *d.HospitalID == *d.ClinicID {
		errs.Add("clinic_id", validation.CodeInvalid, "cannot be the same as hospital")
		errs.Add("hospital_id", validation.CodeInvalid, "cannot be the same as clinic")
	}
	if d.Independent() && !d.MayPractiseIndependently() {
		errs.Add("base", validation.CodeRequired, "must be associated with at least one healthcare facility")
	}

	for _, ref := range []struct {
		field string
		id    *uuid.UUID
		kind  string
	}{
		{"hospital_id", d.HospitalID, "hospital"},
		{"clinic_id", d.ClinicID, "clinic"},
	} {
		if ref.id == nil || s.facilities == nil {
			continue
		}
		kind, err := s.facilities.KindOf(ctx, *ref.id)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", ref.field, err)
		}
		switch kind {
		case "":
			errs.Add(ref.field, validation.CodeNotFound, "does not exist")
		case ref.kind:
		default:
			errs.Add(ref.field, validation.CodeInvalid, "must reference a "+ref.kind)
		}
	}
	return errs, nil
}

func (s *Service) CreateDoctor(ctx context.Context, in DoctorInput) (*Doctor, error) {
	d := &Doctor{}
	in.applyTo(d)

	errs, err := s.validateDoctor(ctx, d, in.Password, true)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs
	}
	normalizePhone(d.Phone)
	if err := setPassword(&d.PasswordDigest, in.Password); err != nil {
		return nil, err
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Msg("doctor registered")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// DoctorStats loads the booking figures for one doctor.
func (s *Service) DoctorStats(ctx context.Context, id uuid.UUID) (*DoctorStats, error) {
	if s.stats == nil {
		return nil, nil
	}
	upcoming, err := s.stats.UpcomingForDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	patients, err := s.stats.DistinctPatients(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DoctorStats{
		UpcomingAppointments: upcoming,
		TotalPatients:        patients,
		AcceptsNewPatients:   upcoming < MaxUpcomingForNewPatients,
	}, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, in DoctorInput) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(d)

	errs, err := s.validateDoctor(ctx, d, in.Password, false)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errs
	}
	normalizePhone(d.Phone)
	if err := setPassword(&d.PasswordDigest, in.Password); err != nil {
		return nil, err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, f, limit, offset)
}

func (s *Service) Specializations(ctx context.Context) ([]string, error) {
	return s.doctors.Specializations(ctx)
}

// AuthenticateDoctor returns the doctor's id when email and password match.
func (s *Service) AuthenticateDoctor(ctx context.Context, email, password string) (uuid.UUID, error) {
	d, err := s.doctors.GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, ErrDoctorNotFound) {
		return uuid.Nil, err
	}
	digest := ""
	if d != nil {
		digest = d.PasswordDigest
	}
	if !auth.CheckPasswordOrDummy(password, digest) {
		return uuid.Nil, auth.ErrInvalidCredentials
	}
	return d.ID, nil
}

// -- Patient --

type PatientInput struct {
	FirstName             *string `json:"first_name"`
	LastName              *string `json:"last_name"`
	Email                 *string `json:"email"`
	Phone                 *string `json:"phone"`
	DateOfBirth           *string `json:"date_of_birth"`
	Gender                *string `json:"gender"`
	EmergencyContactName  *string `json:"emergency_contact_name"`
	EmergencyContactPhone *string `json:"emergency_contact_phone"`
	Password              *string `json:"password"`
}

// applyTo copies the input onto p. A date of birth that does not parse is
// reported rather than applied.
func (in PatientInput) applyTo(p *Patient, errs *validation.Errors) {
	if in.FirstName != nil {
		p.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		p.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		p.Email = normalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		p.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.DateOfBirth != nil {
		if dob, ok := parseDate(*in.DateOfBirth); ok {
			p.DateOfBirth = dob
		} else {
			errs.Add("date_of_birth", validation.CodeInvalid, "is not a valid date")
		}
	}
	if in.Gender != nil {
		p.Gender = optional(in.Gender)
	}
	if in.EmergencyContactName != nil {
		p.EmergencyContactName = optional(in.EmergencyContactName)
	}
	if in.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = optional(in.EmergencyContactPhone)
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func (s *Service) validatePatient(p *Patient, password *string, creating bool, errs validation.Errors) validation.Errors {
	errs.Merge(s.validator.Struct(p))
	checkPassword(&errs, password, creating)

	if p.DateOfBirth.IsZero() {
		if len(errs.On("date_of_birth")) == 0 {
			errs.Add("date_of_birth", validation.CodeRequired, "can't be blank")
		}
		return errs
	}
	y, m, d := s.clock.Now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if !p.DateOfBirth.Before(today) {
		errs.Add("date_of_birth", validation.CodeInvalid, "must be in the past")
	}
	if p.DateOfBirth.Before(today.AddDate(-MaxAgeYears, 0, 0)) {
		errs.Add("date_of_birth", validation.CodeRange, fmt.Sprintf("cannot be more than %d years ago", MaxAgeYears))
	}
	return errs
}

func (s *Service) CreatePatient(ctx context.Context, in PatientInput) (*Patient, error) {
	p := &Patient{}
	var errs validation.Errors
	in.applyTo(p, &errs)

	if errs = s.validatePatient(p, in.Password, true, errs); len(errs) > 0 {
		return nil, errs
	}
	p.Phone = validation.NormalizePhone(p.Phone)
	normalizePhone(p.EmergencyContactPhone)
	if err := setPassword(&p.PasswordDigest, in.Password); err != nil {
		return nil, err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient registered")
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, in PatientInput) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var errs validation.Errors
	in.applyTo(p, &errs)

	if errs = s.validatePatient(p, in.Password, false, errs); len(errs) > 0 {
		return nil, errs
	}
	p.Phone = validation.NormalizePhone(p.Phone)
	normalizePhone(p.EmergencyContactPhone)
	if err := setPassword(&p.PasswordDigest, in.Password); err != nil {
		return nil, err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

// PatientQuery is the caller-facing patient filter. AgeGroup is one of
// minors, adults or seniors.
type PatientQuery struct {
	Query    string
	AgeGroup string
}

var ErrInvalidAgeGroup = errors.New("age_group must be one of: minors, adults, seniors")

func (s *Service) ListPatients(ctx context.Context, q PatientQuery, limit, offset int) ([]*Patient, int, error) {
	f := PatientFilter{Query: q.Query}
	now := s.clock.Now()
	switch q.AgeGroup {
	case "":
	case "minors":
		t := now.AddDate(-18, 0, 0)
		f.BornAfter = &t
	case "adults":
		t := now.AddDate(-18, 0, 0)
		f.BornOnOrBefore = &t
	case "seniors":
		t := now.AddDate(-65, 0, 0)
		f.BornOnOrBefore = &t
	default:
		return nil, 0, ErrInvalidAgeGroup
	}
	return s.patients.List(ctx, f, limit, offset)
}

func (s *Service) AuthenticatePatient(ctx context.Context, email, password string) (uuid.UUID, error) {
	p, err := s.patients.GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, ErrPatientNotFound) {
		return uuid.Nil, err
	}
	digest := ""
	if p != nil {
		digest = p.PasswordDigest
	}
	if !auth.CheckPasswordOrDummy(password, digest) {
		return uuid.Nil, auth.ErrInvalidCredentials
	}
	return p.ID, nil
}
