package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// mockAppointmentRepo is an in-memory AppointmentRepository. It enforces the
// same no-double-booking rule as the database so a bypassed check surfaces
// as ErrOverlap.
type mockAppointmentRepo struct {
	mu      sync.Mutex
	appts   map[uuid.UUID]*Appointment
	doctors map[uuid.UUID]uuid.UUID // doctor -> facility
	locked  []uuid.UUID

	// hideOverlaps makes FindOverlapping report nothing, simulating a
	// concurrent writer the validator could not see.
	hideOverlaps bool
	findErr      error
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{
		appts:   make(map[uuid.UUID]*Appointment),
		doctors: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *mockAppointmentRepo) addDoctor(facilityID uuid.UUID) uuid.UUID {
	id := uuid.New()
	m.doctors[id] = facilityID
	return id
}

// put stores a directly, bypassing validation.
func (m *mockAppointmentRepo) put(a *Appointment) *Appointment {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.appts[a.ID] = &cp
	return a
}

func (m *mockAppointmentRepo) overlapping(doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) []*Appointment {
	var out []*Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.ID == excludeID || !a.Status.Blocking() {
			continue
		}
		if a.Overlaps(start, end) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentDate.Before(out[j].AppointmentDate) })
	return out
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[a.DoctorID]; !ok {
		return ErrReferenceNotFound
	}
	if a.Status.Blocking() && len(m.overlapping(a.DoctorID, a.AppointmentDate, a.EndTime(), a.ID)) > 0 {
		return ErrOverlap
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	if a.Status.Blocking() && len(m.overlapping(a.DoctorID, a.AppointmentDate, a.EndTime(), a.ID)) > 0 {
		return ErrOverlap
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockAppointmentRepo) matches(a *Appointment, f ListFilter) bool {
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.FacilityID != nil && m.doctors[a.DoctorID] != *f.FacilityID {
		return false
	}
	if len(f.Statuses) > 0 && !statusIn(a.Status, f.Statuses) {
		return false
	}
	if f.Type != nil && a.AppointmentType != *f.Type {
		return false
	}
	d := a.AppointmentDate
	if f.From != nil && d.Before(*f.From) {
		return false
	}
	if f.To != nil && !d.Before(*f.To) {
		return false
	}
	if f.After != nil && !d.After(*f.After) {
		return false
	}
	if f.Until != nil && d.After(*f.Until) {
		return false
	}
	return true
}

func (m *mockAppointmentRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Appointment
	for _, a := range m.appts {
		if m.matches(a, f) {
			cp := *a
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if f.Ascending {
			return all[i].AppointmentDate.Before(all[j].AppointmentDate)
		}
		return all[i].AppointmentDate.After(all[j].AppointmentDate)
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockAppointmentRepo) Count(ctx context.Context, f ListFilter) (int, error) {
	_, total, err := m.List(ctx, f, 0, 0)
	return total, err
}

func (m *mockAppointmentRepo) CountDistinctPatients(_ context.Context, doctorID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			seen[a.PatientID] = true
		}
	}
	return len(seen), nil
}

func (m *mockAppointmentRepo) FindOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.hideOverlaps {
		return nil, nil
	}
	return m.overlapping(doctorID, start, end, excludeID), nil
}

func (m *mockAppointmentRepo) Transition(_ context.Context, t Transition) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[t.ID]
	if !ok || !t.Permits(a) {
		return nil, ErrNotFound
	}
	t.Apply(a)
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) LockDoctor(_ context.Context, doctorID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[doctorID]; !ok {
		return ErrReferenceNotFound
	}
	m.locked = append(m.locked, doctorID)
	return nil
}

type countingRecorder struct {
	rejected    map[string]int
	transitions map[string]int
	writes      map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		rejected:    map[string]int{},
		transitions: map[string]int{},
		writes:      map[string]int{},
	}
}

func label(name string, ok bool) string {
	if ok {
		return name + ":ok"
	}
	return name + ":fail"
}

func (r *countingRecorder) ValidationRejected(code string)      { r.rejected[code]++ }
func (r *countingRecorder) Transition(action string, ok bool)   { r.transitions[label(action, ok)]++ }
func (r *countingRecorder) AppointmentWrite(op string, ok bool) { r.writes[label(op, ok)]++ }

type recordingPublisher struct {
	changes []string
}

func (p *recordingPublisher) AppointmentChanged(_ context.Context, change string, a *Appointment) {
	p.changes = append(p.changes, change+":"+a.ID.String())
}
