package facility

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

type mockRepo struct {
	facilities map[uuid.UUID]*Facility
	// doctors lists the specialization of every doctor per facility.
	doctors map[uuid.UUID][]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		facilities: make(map[uuid.UUID]*Facility),
		doctors:    make(map[uuid.UUID][]string),
	}
}

func (m *mockRepo) unique(f *Facility) error {
	for _, o := range m.facilities {
		if o.ID == f.ID {
			continue
		}
		field := ""
		switch {
		case o.Name == f.Name:
			field = "name"
		case o.Email == f.Email:
			field = "email"
		default:
			continue
		}
		return validation.Errors{{Field: field, Code: validation.CodeTaken, Message: "has already been taken"}}
	}
	return nil
}

func (m *mockRepo) Create(_ context.Context, f *Facility) error {
	if err := m.unique(f); err != nil {
		return err
	}
	f.ID = uuid.New()
	cp := *f
	m.facilities[f.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Facility, error) {
	f, ok := m.facilities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*Facility, error) {
	for _, f := range m.facilities {
		if strings.EqualFold(f.Email, email) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, f *Facility) error {
	if _, ok := m.facilities[f.ID]; !ok {
		return ErrNotFound
	}
	if err := m.unique(f); err != nil {
		return err
	}
	cp := *f
	m.facilities[f.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.facilities[id]; !ok {
		return ErrNotFound
	}
	delete(m.facilities, id)
	delete(m.doctors, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Facility, int, error) {
	var out []*Facility
	for _, fac := range m.facilities {
		if f.Kind != "" && fac.Kind != f.Kind {
			continue
		}
		if f.Status != "" && fac.Status != f.Status {
			continue
		}
		if f.City != "" && !strings.EqualFold(fac.City, f.City) {
			continue
		}
		if f.HealthCareType != "" && fac.HealthCareType != f.HealthCareType {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(fac.Name+" "+fac.Address+" "+fac.City), strings.ToLower(f.Query)) {
			continue
		}
		cp := *fac
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	if end := offset + limit; end < total {
		out = out[:end]
	}
	return out[offset:], total, nil
}

func (m *mockRepo) DoctorCount(_ context.Context, id uuid.UUID) (int, error) {
	return len(m.doctors[id]), nil
}

func (m *mockRepo) Specializations(_ context.Context, id uuid.UUID) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, s := range m.doctors[id] {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}
