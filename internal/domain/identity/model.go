package identity

import (
	"time"

	"github.com/google/uuid"
)

// Specializations that may practise without a hospital or clinic.
var IndependentSpecializations = []string{"Dermatology", "Psychiatry", "Private Practice"}

// MaxUpcomingForNewPatients is the booking load above which a doctor stops
// accepting new patients.
const MaxUpcomingForNewPatients = 50

type Doctor struct {
	ID                uuid.UUID  `json:"id"`
	FirstName         string     `json:"first_name" validate:"required,max=100"`
	LastName          string     `json:"last_name" validate:"required,max=100"`
	Email             string     `json:"email" validate:"required,max=255,email"`
	Phone             *string    `json:"phone,omitempty" validate:"omitempty,phone"`
	Specialization    string     `json:"specialization" validate:"required,min=3,max=150"`
	LicenseNumber     string     `json:"license_number" validate:"required,min=3,max=50"`
	YearsOfExperience int        `json:"years_of_experience" validate:"gte=0,lte=70"`
	HospitalID        *uuid.UUID `json:"hospital_id,omitempty"`
	ClinicID          *uuid.UUID `json:"clinic_id,omitempty"`
	PasswordDigest    string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (d *Doctor) FullName() string    { return d.FirstName + " " + d.LastName }
func (d *Doctor) DisplayName() string { return "Dr. " + d.LastName }
func (d *Doctor) FormalName() string  { return d.FullName() + ", MD" }

func (d *Doctor) Independent() bool        { return d.HospitalID == nil && d.ClinicID == nil }
func (d *Doctor) HospitalAffiliated() bool { return d.HospitalID != nil }
func (d *Doctor) ClinicAffiliated() bool   { return d.ClinicID != nil }
func (d *Doctor) DualAffiliated() bool     { return d.HospitalID != nil && d.ClinicID != nil }

// MayPractiseIndependently reports whether the doctor's specialization is
// exempt from the facility requirement.
func (d *Doctor) MayPractiseIndependently() bool {
	for _, s := range IndependentSpecializations {
		if d.Specialization == s {
			return true
		}
	}
	return false
}

// DoctorView adds derived names, affiliation flags and, when loaded, the
// booking statistics.
type DoctorView struct {
	*Doctor
	FullName           string `json:"full_name"`
	DisplayName        string `json:"display_name"`
	FormalName         string `json:"formal_name"`
	Independent        bool   `json:"independent"`
	HospitalAffiliated bool   `json:"hospital_affiliated"`
	ClinicAffiliated   bool   `json:"clinic_affiliated"`
	DualAffiliated     bool   `json:"dual_affiliated"`
	*DoctorStats
}

type DoctorStats struct {
	UpcomingAppointments int  `json:"upcoming_appointments_count"`
	TotalPatients        int  `json:"total_patients_count"`
	AcceptsNewPatients   bool `json:"can_accept_new_patients"`
}

func NewDoctorView(d *Doctor, stats *DoctorStats) *DoctorView {
	return &DoctorView{
		Doctor:             d,
		FullName:           d.FullName(),
		DisplayName:        d.DisplayName(),
		FormalName:         d.FormalName(),
		Independent:        d.Independent(),
		HospitalAffiliated: d.HospitalAffiliated(),
		ClinicAffiliated:   d.ClinicAffiliated(),
		DualAffiliated:     d.DualAffiliated(),
		DoctorStats:        stats,
	}
}

func NewDoctorViews(items []*Doctor) []*DoctorView {
	out := make([]*DoctorView, len(items))
	for i, d := range items {
		out[i] = NewDoctorView(d, nil)
	}
	return out
}

var Genders = []string{"male", "female", "other", "prefer_not_to_say"}

const MaxAgeYears = 150

type Patient struct {
	ID                    uuid.UUID `json:"id"`
	FirstName             string    `json:"first_name" validate:"required,max=100"`
	LastName              string    `json:"last_name" validate:"required,max=100"`
	Email                 string    `json:"email" validate:"required,max=255,email"`
	Phone                 string    `json:"phone" validate:"required,phone"`
	DateOfBirth           time.Time `json:"date_of_birth"`
	Gender                *string   `json:"gender,omitempty" validate:"omitempty,oneof=male female other prefer_not_to_say"`
	EmergencyContactName  *string   `json:"emergency_contact_name,omitempty" validate:"omitempty,max=200"`
	EmergencyContactPhone *string   `json:"emergency_contact_phone,omitempty" validate:"omitempty,phone"`
	PasswordDigest        string    `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (p *Patient) FullName() string { return p.FirstName + " " + p.LastName }

// Age is the number of completed years on today's date.
func (p *Patient) Age(today time.Time) int {
	if p.DateOfBirth.IsZero() {
		return 0
	}
	y1, m1, d1 := p.DateOfBirth.Date()
	y2, m2, d2 := today.Date()
	age := y2 - y1
	if m2 < m1 || (m2 == m1 && d2 < d1) {
		age--
	}
	return age
}

func AgeGroup(age int) string {
	switch {
	case age <= 2:
		return "Infant"
	case age <= 12:
		return "Child"
	case age <= 17:
		return "Adolescent"
	case age <= 64:
		return "Adult"
	default:
		return "Senior"
	}
}

func (p *Patient) Minor(today time.Time) bool  { return p.Age(today) < 18 }
func (p *Patient) Adult(today time.Time) bool  { return p.Age(today) >= 18 }
func (p *Patient) Senior(today time.Time) bool { return p.Age(today) >= 65 }

type PatientView struct {
	*Patient
	FullName string `json:"full_name"`
	Age      int    `json:"age"`
	AgeGroup string `json:"age_group"`
	Minor    bool   `json:"minor"`
	Adult    bool   `json:"adult"`
	Senior   bool   `json:"senior"`
}

func NewPatientView(p *Patient, today time.Time) *PatientView {
	age := p.Age(today)
	return &PatientView{
		Patient:  p,
		FullName: p.FullName(),
		Age:      age,
		AgeGroup: AgeGroup(age),
		Minor:    p.Minor(today),
		Adult:    p.Adult(today),
		Senior:   p.Senior(today),
	}
}

func NewPatientViews(items []*Patient, today time.Time) []*PatientView {
	out := make([]*PatientView, len(items))
	for i, p := range items {
		out[i] = NewPatientView(p, today)
	}
	return out
}
