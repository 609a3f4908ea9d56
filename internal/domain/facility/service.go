package facility

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
)

type Service struct {
	repo      Repository
	validator *validation.Validator
	logger    zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, validator: validation.New(), logger: logger}
}

// Input carries create and update payloads. Nil fields are left unchanged
// on update. Fields of the other kind are ignored.
type Input struct {
	Name              *string `json:"name"`
	Address           *string `json:"address"`
	City              *string `json:"city"`
	State             *string `json:"state"`
	ZipCode           *string `json:"zip_code"`
	Phone             *string `json:"phone"`
	Email             *string `json:"email"`
	WebsiteURL        *string `json:"website_url"`
	EstablishedDate   *string `json:"established_date"`
	HealthCareType    *string `json:"health_care_type"`
	Status            *string `json:"status"`
	BedCapacity       *int    `json:"bed_capacity"`
	EmergencyServices *bool   `json:"emergency_services"`
	ServicesOffered   *string `json:"services_offered"`
	AcceptsWalkIns    *bool   `json:"accepts_walk_ins"`
	Password          *string `json:"password"`
}

func trimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func optional(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (in Input) applyTo(f *Facility, errs *validation.Errors) {
	trimmed(&f.Name, in.Name)
	trimmed(&f.Address, in.Address)
	trimmed(&f.City, in.City)
	trimmed(&f.State, in.State)
	trimmed(&f.ZipCode, in.ZipCode)
	trimmed(&f.Phone, in.Phone)
	trimmed(&f.HealthCareType, in.HealthCareType)
	trimmed(&f.Status, in.Status)
	if in.Email != nil {
		f.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.WebsiteURL != nil {
		f.WebsiteURL = optional(in.WebsiteURL)
	}
	if in.EstablishedDate != nil {
		if s := strings.TrimSpace(*in.EstablishedDate); s == "" {
			f.EstablishedDate = nil
		} else if t, err := time.Parse(time.DateOnly, s); err == nil {
			f.EstablishedDate = &t
		} else {
			errs.Add("established_date", validation.CodeInvalid, "is not a valid date")
		}
	}
	if in.BedCapacity != nil {
		f.BedCapacity = in.BedCapacity
	}
	if in.EmergencyServices != nil {
		f.EmergencyServices = *in.EmergencyServices
	}
	if in.ServicesOffered != nil {
		f.ServicesOffered = optional(in.ServicesOffered)
	}
	if in.AcceptsWalkIns != nil {
		f.AcceptsWalkIns = *in.AcceptsWalkIns
	}
	f.clearForeignFields()
}

func (s *Service) validate(f *Facility, password *string, creating bool, errs validation.Errors) validation.Errors {
	errs.Merge(s.validator.Struct(f))

	if password == nil || *password == "" {
		if creating {
			errs.Add("password", validation.CodeRequired, "can't be blank")
		}
	} else if len(*password) < auth.MinPasswordLength {
		errs.Add("password", validation.CodeTooShort,
			fmt.Sprintf("is too short (minimum is %d characters)", auth.MinPasswordLength))
	}

	if f.HealthCareType != "" && !contains(HealthCareTypes[f.Kind], f.HealthCareType) {
		errs.Add("health_care_type", validation.CodeInvalid,
			"must be one of: "+strings.Join(HealthCareTypes[f.Kind], ", "))
	}
	switch f.Kind {
	case KindHospital:
		if f.BedCapacity == nil {
			errs.Add("bed_capacity", validation.CodeRequired, "can't be blank")
		}
	case KindClinic:
		if f.ServicesOffered == nil {
			errs.Add("services_offered", validation.CodeRequired, "can't be blank")
		}
	}
	return errs
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (s *Service) Create(ctx context.Context, kind Kind, in Input) (*Facility, error) {
	f := &Facility{Kind: kind, Status: "active"}
	var errs validation.Errors
	in.applyTo(f, &errs)

	if errs = s.validate(f, in.Password, true, errs); len(errs) > 0 {
		return nil, errs
	}
	f.Phone = validation.NormalizePhone(f.Phone)
	digest, err := auth.HashPassword(*in.Password)
	if err != nil {
		return nil, err
	}
	f.PasswordDigest = digest
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info().Str("facility_id", f.ID.String()).Str("kind", string(kind)).Msg("facility registered")
	return f, nil
}

// Get returns the facility when it exists and is of the given kind.
func (s *Service) Get(ctx context.Context, kind Kind, id uuid.UUID) (*Facility, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if kind != "" && f.Kind != kind {
		return nil, ErrNotFound
	}
	return f, nil
}

func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	n, err := s.repo.DoctorCount(ctx, id)
	if err != nil {
		return nil, err
	}
	specs, err := s.repo.Specializations(ctx, id)
	if err != nil {
		return nil, err
	}
	if specs == nil {
		specs = []string{}
	}
	return &Stats{DoctorCount: n, AvailableSpecializations: specs}, nil
}

func (s *Service) DoctorCount(ctx context.Context, id uuid.UUID) (int, error) {
	return s.repo.DoctorCount(ctx, id)
}

func (s *Service) Update(ctx context.Context, kind Kind, id uuid.UUID, in Input) (*Facility, error) {
	f, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	var errs validation.Errors
	in.applyTo(f, &errs)

	if errs = s.validate(f, in.Password, false, errs); len(errs) > 0 {
		return nil, errs
	}
	f.Phone = validation.NormalizePhone(f.Phone)
	if in.Password != nil && *in.Password != "" {
		if f.PasswordDigest, err = auth.HashPassword(*in.Password); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) Delete(ctx context.Context, kind Kind, id uuid.UUID) error {
	if _, err := s.Get(ctx, kind, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("facility_id", id.String()).Msg("facility deleted")
	return nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Facility, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// KindOf reports "hospital" or "clinic", or "" when no facility has the id.
func (s *Service) KindOf(ctx context.Context, id uuid.UUID) (string, error) {
	f, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(f.Kind), nil
}

// Authenticate returns the facility's id when email and password match.
func (s *Service) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	f, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return uuid.Nil, err
	}
	digest := ""
	if f != nil {
		digest = f.PasswordDigest
	}
	if !auth.CheckPasswordOrDummy(password, digest) {
		return uuid.Nil, auth.ErrInvalidCredentials
	}
	return f.ID, nil
}
