package identity

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/validation"
)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

func taken(field string) error {
	return validation.Errors{{Field: field, Code: validation.CodeTaken, Message: "has already been taken"}}
}

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) unique(d *Doctor) error {
	for _, o := range m.doctors {
		if o.ID == d.ID {
			continue
		}
		if o.Email == d.Email {
			return taken("email")
		}
		if o.LicenseNumber == d.LicenseNumber {
			return taken("license_number")
		}
	}
	return nil
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	if err := m.unique(d); err != nil {
		return err
	}
	d.ID = uuid.New()
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) GetByEmail(_ context.Context, email string) (*Doctor, error) {
	for _, d := range m.doctors {
		if strings.EqualFold(d.Email, email) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	if _, ok := m.doctors[d.ID]; !ok {
		return ErrDoctorNotFound
	}
	if err := m.unique(d); err != nil {
		return err
	}
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(m.doctors, id)
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	var out []*Doctor
	for _, d := range m.doctors {
		if f.Specialization != "" && d.Specialization != f.Specialization {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(d.FullName()+" "+d.Specialization), strings.ToLower(f.Query)) {
			continue
		}
		if f.FacilityID != nil && !sameID(d.HospitalID, f.FacilityID) && !sameID(d.ClinicID, f.FacilityID) {
			continue
		}
		if f.HospitalID != nil && !sameID(d.HospitalID, f.HospitalID) {
			continue
		}
		if f.ClinicID != nil && !sameID(d.ClinicID, f.ClinicID) {
			continue
		}
		if f.Independent != nil && d.Independent() != *f.Independent {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return page(out, limit, offset), len(out), nil
}

func (m *mockDoctorRepo) Specializations(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, d := range m.doctors {
		if !seen[d.Specialization] {
			seen[d.Specialization] = true
			out = append(out, d.Specialization)
		}
	}
	sort.Strings(out)
	return out, nil
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	for _, o := range m.patients {
		if o.Email == p.Email {
			return taken("email")
		}
	}
	p.ID = uuid.New()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetByEmail(_ context.Context, email string) (*Patient, error) {
	for _, p := range m.patients {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrPatientNotFound
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if f.Query != "" && !strings.Contains(strings.ToLower(p.FullName()+" "+p.Email), strings.ToLower(f.Query)) {
			continue
		}
		if f.BornAfter != nil && !p.DateOfBirth.After(*f.BornAfter) {
			continue
		}
		if f.BornOnOrBefore != nil && p.DateOfBirth.After(*f.BornOnOrBefore) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return page(out, limit, offset), len(out), nil
}

// mockFacilities maps facility ids to their kind.
type mockFacilities map[uuid.UUID]string

func (m mockFacilities) KindOf(_ context.Context, id uuid.UUID) (string, error) {
	return m[id], nil
}

type mockStats struct {
	upcoming, patients int
}

func (m mockStats) UpcomingForDoctor(context.Context, uuid.UUID) (int, error) { return m.upcoming, nil }
func (m mockStats) DistinctPatients(context.Context, uuid.UUID) (int, error)  { return m.patients, nil }
