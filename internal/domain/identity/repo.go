package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// DoctorFilter narrows doctor listings. Query is free text matched by
// prefix against name, specialization and license number.
type DoctorFilter struct {
	Query          string
	Specialization string
	HospitalID     *uuid.UUID
	ClinicID       *uuid.UUID
	FacilityID     *uuid.UUID // either affiliation
	Independent    *bool
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByEmail(ctx context.Context, email string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error)
	Specializations(ctx context.Context) ([]string, error)
}

// PatientFilter narrows patient listings. Query matches name, email and
// phone by prefix.
type PatientFilter struct {
	Query          string
	BornAfter      *time.Time
	BornOnOrBefore *time.Time
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error)
}
