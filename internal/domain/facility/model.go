package facility

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates hospitals from clinics. Both live in one table.
type Kind string

const (
	KindHospital Kind = "hospital"
	KindClinic   Kind = "clinic"
)

func (k Kind) Valid() bool { return k == KindHospital || k == KindClinic }

// HealthCareTypes lists the accepted health_care_type values per kind.
var HealthCareTypes = map[Kind][]string{
	KindHospital: {"General", "Specialty", "Teaching", "Psychiatric", "Rehabilitation", "Children", "Cancer", "Heart", "Other"},
	KindClinic: {"Family Practice", "Urgent Care", "Specialty", "Pediatric", "Internal Medicine", "Cardiology",
		"Dermatology", "Orthopedic", "Mental Health", "Dental", "Eye Care", "Other"},
}

var Statuses = []string{"active", "inactive", "suspended"}

const MinServicesOfferedLength = 5

type Facility struct {
	ID              uuid.UUID  `json:"id"`
	Kind            Kind       `json:"kind"`
	Name            string     `json:"name" validate:"required,max=255"`
	Address         string     `json:"address" validate:"required,max=255"`
	City            string     `json:"city" validate:"required,max=100"`
	State           string     `json:"state" validate:"required,max=100"`
	ZipCode         string     `json:"zip_code" validate:"required,max=20"`
	Phone           string     `json:"phone" validate:"required,phone"`
	Email           string     `json:"email" validate:"required,max=255,email"`
	WebsiteURL      *string    `json:"website_url,omitempty" validate:"omitempty,max=255,http_url"`
	EstablishedDate *time.Time `json:"established_date,omitempty"`
	HealthCareType  string     `json:"health_care_type" validate:"required"`
	Status          string     `json:"status" validate:"required,oneof=active inactive suspended"`

	// Hospital only.
	BedCapacity       *int `json:"bed_capacity,omitempty" validate:"omitempty,gte=0"`
	EmergencyServices bool `json:"emergency_services"`

	// Clinic only.
	ServicesOffered *string `json:"services_offered,omitempty" validate:"omitempty,min=5"`
	AcceptsWalkIns  bool    `json:"accepts_walk_ins"`

	PasswordDigest string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (f *Facility) Hospital() bool { return f.Kind == KindHospital }
func (f *Facility) Clinic() bool   { return f.Kind == KindClinic }

// clearForeignFields drops attributes that belong to the other kind.
func (f *Facility) clearForeignFields() {
	switch f.Kind {
	case KindHospital:
		f.ServicesOffered = nil
		f.AcceptsWalkIns = false
	case KindClinic:
		f.BedCapacity = nil
		f.EmergencyServices = false
	}
}

// Stats summarises the doctors affiliated with a facility.
type Stats struct {
	DoctorCount              int      `json:"doctor_count"`
	AvailableSpecializations []string `json:"available_specializations"`
}

type View struct {
	*Facility
	*Stats
}

func NewView(f *Facility, stats *Stats) *View {
	return &View{Facility: f, Stats: stats}
}

func NewViews(items []*Facility) []*View {
	out := make([]*View, len(items))
	for i, f := range items {
		out[i] = NewView(f, nil)
	}
	return out
}
