package portal

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/healthportal/portal/internal/domain/scheduling"
	"github.com/healthportal/portal/internal/platform/auth"
)

var testNow = time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC)

// mockAppointments serves a fixed set of appointments. facilityOf maps
// doctors to their facility.
type mockAppointments struct {
	appts      []*scheduling.Appointment
	facilityOf map[uuid.UUID]uuid.UUID
	patients   map[uuid.UUID]int
	queries    []scheduling.ListQuery
	limits     []int
}

func newMockAppointments() *mockAppointments {
	return &mockAppointments{
		facilityOf: make(map[uuid.UUID]uuid.UUID),
		patients:   make(map[uuid.UUID]int),
	}
}

func (m *mockAppointments) add(doctor, patient uuid.UUID, start time.Time) *scheduling.Appointment {
	a := scheduling.NewAppointment()
	a.ID = uuid.New()
	a.DoctorID, a.PatientID, a.AppointmentDate = doctor, patient, start
	m.appts = append(m.appts, a)
	return a
}

func statusIn(s scheduling.Status, set []scheduling.Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (m *mockAppointments) Now() time.Time { return testNow }

func (m *mockAppointments) ListAppointments(_ context.Context, q scheduling.ListQuery, limit, offset int) ([]*scheduling.Appointment, int, error) {
	m.queries = append(m.queries, q)
	m.limits = append(m.limits, limit)

	var out []*scheduling.Appointment
	for _, a := range m.appts {
		if q.DoctorID != nil && a.DoctorID != *q.DoctorID {
			continue
		}
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.FacilityID != nil && m.facilityOf[a.DoctorID] != *q.FacilityID {
			continue
		}
		if len(q.Statuses) > 0 && !statusIn(a.Status, q.Statuses) {
			continue
		}
		if q.Scope == "upcoming" && !a.AppointmentDate.After(testNow) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.Ascending {
			return out[i].AppointmentDate.Before(out[j].AppointmentDate)
		}
		return out[i].AppointmentDate.After(out[j].AppointmentDate)
	})
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	if end := offset + limit; end < total {
		out = out[:end]
	}
	return out[offset:], total, nil
}

func (m *mockAppointments) DistinctPatients(_ context.Context, doctorID uuid.UUID) (int, error) {
	return m.patients[doctorID], nil
}

type mockDoctorCounter map[uuid.UUID]int

func (m mockDoctorCounter) DoctorCount(_ context.Context, id uuid.UUID) (int, error) {
	return m[id], nil
}

// account is a single set of credentials.
type account struct {
	id              uuid.UUID
	email, password string
}

func (a account) authenticator() Authenticator {
	return AuthenticatorFunc(func(_ context.Context, email, password string) (uuid.UUID, error) {
		if email != a.email || password != a.password {
			return uuid.Nil, auth.ErrInvalidCredentials
		}
		return a.id, nil
	})
}

type countingLogins map[string]int

func (c countingLogins) Login(userType string, ok bool) {
	if ok {
		c[userType+":ok"]++
	} else {
		c[userType+":fail"]++
	}
}
