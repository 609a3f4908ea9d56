package facility

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("facility not found")

// Filter narrows facility listings. Query matches name, address and city
// by prefix.
type Filter struct {
	Kind           Kind
	Query          string
	Status         string
	City           string
	HealthCareType string
}

type Repository interface {
	Create(ctx context.Context, f *Facility) error
	GetByID(ctx context.Context, id uuid.UUID) (*Facility, error)
	GetByEmail(ctx context.Context, email string) (*Facility, error)
	Update(ctx context.Context, f *Facility) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Facility, int, error)

	// DoctorCount counts doctors whose hospital_id or clinic_id is id.
	DoctorCount(ctx context.Context, id uuid.UUID) (int, error)
	// Specializations returns the distinct, sorted specializations of the
	// facility's doctors.
	Specializations(ctx context.Context, id uuid.UUID) ([]string, error)
}
