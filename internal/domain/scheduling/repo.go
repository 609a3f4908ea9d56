package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrOverlap           = errors.New("appointment overlaps another booking")
	ErrReferenceNotFound = errors.New("referenced doctor or patient not found")
)

// ListFilter narrows List and Count. Zero values are ignored.
type ListFilter struct {
	DoctorID   *uuid.UUID
	PatientID  *uuid.UUID
	FacilityID *uuid.UUID
	Statuses   []Status
	Type       *Type
	From       *time.Time // appointment_date >= From
	To         *time.Time // appointment_date < To
	After      *time.Time // appointment_date > After
	Until      *time.Time // appointment_date <= Until
	Ascending  bool
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	Count(ctx context.Context, f ListFilter) (int, error)
	CountDistinctPatients(ctx context.Context, doctorID uuid.UUID) (int, error)
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error)
	// Transition applies t atomically and returns the updated row, or
	// ErrNotFound when no row matched id together with the guard.
	Transition(ctx context.Context, t Transition) (*Appointment, error)
	// LockDoctor serialises writers for one doctor until the surrounding
	// transaction ends.
	LockDoctor(ctx context.Context, doctorID uuid.UUID) error
}
