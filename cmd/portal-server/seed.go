package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthportal/portal/internal/config"
	"github.com/healthportal/portal/internal/domain/facility"
	"github.com/healthportal/portal/internal/domain/identity"
	"github.com/healthportal/portal/internal/domain/scheduling"
	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/metrics"
	"github.com/healthportal/portal/internal/platform/validation"
	"github.com/healthportal/portal/pkg/clock"
)

var (
	seedFirstNames    = []string{"Amelia", "Noah", "Olivia", "Liam", "Ava", "Elijah", "Sophia", "Lucas", "Isabella", "Mateo", "Mia", "Levi", "Harper", "Ezra", "Evelyn", "Asher"}
	seedLastNames     = []string{"Garcia", "Nguyen", "Smith", "Okafor", "Kowalski", "Haddad", "Johnson", "Tanaka", "Rossi", "Fischer", "Patel", "Silva", "Murphy", "Larsen", "Cohen", "Moreau"}
	seedCities        = []string{"Springfield", "Riverside", "Fairview", "Franklin", "Greenville", "Madison"}
	seedStates        = []string{"IL", "CA", "OR", "TN", "SC", "WI"}
	seedStreets       = []string{"Main Street", "Oak Avenue", "Maple Drive", "Cedar Lane", "Park Road", "Lake View"}
	seedFacilityNames = []string{"General Hospital", "Medical Center", "Community Clinic", "Specialty Hospital", "Urgent Care Center", "Family Medical Center", "Regional Hospital", "Health Center", "Wellness Clinic"}
	seedSpecialties   = []string{"Cardiology", "Neurology", "Orthopedics", "Pediatrics", "Oncology", "Dermatology", "Psychiatry", "Emergency Medicine", "Internal Medicine", "Surgery", "Radiology", "Ophthalmology"}
	seedServices      = []string{"Vaccinations", "Physical exams", "Laboratory services", "Minor procedures", "Chronic disease management", "Preventive care"}
	seedDurations     = []int{15, 30, 45, 60, 90}
)

// seedCounts is how many rows of each kind the seed command creates.
type seedCounts struct {
	Hospitals    int
	Clinics      int
	Doctors      int
	Patients     int
	Appointments int
}

// generator produces valid, deterministic payloads from a seeded source.
type generator struct {
	rng      *rand.Rand
	now      time.Time
	loc      *time.Location
	password string
}

func newGenerator(seed int64, now time.Time, loc *time.Location, password string) *generator {
	return &generator{rng: rand.New(rand.NewSource(seed)), now: now, loc: loc, password: password}
}

func (g *generator) pick(list []string) string { return list[g.rng.Intn(len(list))] }

func ptr[T any](v T) *T { return &v }

func (g *generator) phone() string {
	return fmt.Sprintf("+1 650-253-%04d", g.rng.Intn(10000))
}

// facility builds the i-th facility. i must be unique across kinds since
// names share one index.
func (g *generator) facility(kind facility.Kind, i int) facility.Input {
	city := g.pick(seedCities)
	name := fmt.Sprintf("%s %s %d", city, g.pick(seedFacilityNames), i+1)
	in := facility.Input{
		Name:            ptr(name),
		Address:         ptr(fmt.Sprintf("%d %s", 1+g.rng.Intn(9000), g.pick(seedStreets))),
		City:            ptr(city),
		State:           ptr(g.pick(seedStates)),
		ZipCode:         ptr(fmt.Sprintf("%05d", 10000+g.rng.Intn(89999))),
		Phone:           ptr(g.phone()),
		Email:           ptr(fmt.Sprintf("%s%d@facilities.example.com", kind, i+1)),
		HealthCareType:  ptr(g.pick(facility.HealthCareTypes[kind])),
		EstablishedDate: ptr(fmt.Sprintf("%d-01-01", 1900+g.rng.Intn(120))),
		Password:        ptr(g.password),
	}
	switch kind {
	case facility.KindHospital:
		in.BedCapacity = ptr(50 + g.rng.Intn(950))
		in.EmergencyServices = ptr(g.rng.Intn(4) > 0)
	case facility.KindClinic:
		in.ServicesOffered = ptr(g.pick(seedServices) + ", " + g.pick(seedServices))
		in.AcceptsWalkIns = ptr(g.rng.Intn(2) == 0)
	}
	return in
}

// doctor picks at most one hospital and one clinic. Doctors without either
// are given a specialization that may practise independently.
func (g *generator) doctor(i int, hospitals, clinics []uuid.UUID) identity.DoctorInput {
	in := identity.DoctorInput{
		FirstName:         ptr(g.pick(seedFirstNames)),
		LastName:          ptr(g.pick(seedLastNames)),
		Email:             ptr(fmt.Sprintf("doctor%d@portal.example.com", i+1)),
		Phone:             ptr(g.phone()),
		Specialization:    ptr(g.pick(seedSpecialties)),
		LicenseNumber:     ptr(fmt.Sprintf("MD-%06d", i+1)),
		YearsOfExperience: ptr(g.rng.Intn(40)),
		Password:          ptr(g.password),
	}
	if len(hospitals) > 0 && g.rng.Intn(3) > 0 {
		in.HospitalID = ptr(hospitals[g.rng.Intn(len(hospitals))])
	}
	if len(clinics) > 0 && (in.HospitalID == nil || g.rng.Intn(4) == 0) {
		in.ClinicID = ptr(clinics[g.rng.Intn(len(clinics))])
	}
	if in.HospitalID == nil && in.ClinicID == nil {
		in.Specialization = ptr(g.pick(identity.IndependentSpecializations))
	}
	return in
}

func (g *generator) patient(i int) identity.PatientInput {
	dob := g.now.AddDate(-1-g.rng.Intn(90), -g.rng.Intn(12), -g.rng.Intn(28))
	return identity.PatientInput{
		FirstName:             ptr(g.pick(seedFirstNames)),
		LastName:              ptr(g.pick(seedLastNames)),
		Email:                 ptr(fmt.Sprintf("patient%d@portal.example.com", i+1)),
		Phone:                 ptr(g.phone()),
		DateOfBirth:           ptr(dob.Format(time.DateOnly)),
		Gender:                ptr(g.pick(identity.Genders)),
		EmergencyContactName:  ptr(g.pick(seedFirstNames) + " " + g.pick(seedLastNames)),
		EmergencyContactPhone: ptr(g.phone()),
		Password:              ptr(g.password),
	}
}

// slot returns a start time within the next 90 days that falls inside the
// default business hours. The end of the appointment may still run past
// closing.
func (g *generator) slot(hours scheduling.BusinessHours) time.Time {
	for {
		day := g.now.In(g.loc).AddDate(0, 0, 1+g.rng.Intn(90))
		w := hours.Days[day.Weekday()]
		if w == nil {
			continue
		}
		y, m, d := day.Date()
		h := w.Open + g.rng.Intn(w.Close-w.Open+1)
		return time.Date(y, m, d, h, 15*g.rng.Intn(4), 0, 0, g.loc)
	}
}

func (g *generator) appointment(doctors, patients []uuid.UUID, hours scheduling.BusinessHours) scheduling.AppointmentInput {
	start := g.slot(hours)
	return scheduling.AppointmentInput{
		DoctorID:        ptr(doctors[g.rng.Intn(len(doctors))]),
		PatientID:       ptr(patients[g.rng.Intn(len(patients))]),
		AppointmentDate: &start,
		DurationMinutes: ptr(seedDurations[g.rng.Intn(len(seedDurations))]),
		AppointmentType: ptr(scheduling.Types[g.rng.Intn(len(scheduling.Types))]),
	}
}

// seed creates the requested rows through the domain services so every row
// passes the same validation as API writes. Appointments that collide with
// an earlier booking are skipped.
func seed(ctx context.Context, svcs *services, g *generator, n seedCounts, logger zerolog.Logger) error {
	var hospitals, clinics, doctors, patients []uuid.UUID

	for i := 0; i < n.Hospitals; i++ {
		f, err := svcs.facilities.Create(ctx, facility.KindHospital, g.facility(facility.KindHospital, i))
		if err != nil {
			return fmt.Errorf("hospital %d: %w", i+1, err)
		}
		hospitals = append(hospitals, f.ID)
	}
	for i := 0; i < n.Clinics; i++ {
		f, err := svcs.facilities.Create(ctx, facility.KindClinic, g.facility(facility.KindClinic, n.Hospitals+i))
		if err != nil {
			return fmt.Errorf("clinic %d: %w", i+1, err)
		}
		clinics = append(clinics, f.ID)
	}
	for i := 0; i < n.Doctors; i++ {
		d, err := svcs.identity.CreateDoctor(ctx, g.doctor(i, hospitals, clinics))
		if err != nil {
			return fmt.Errorf("doctor %d: %w", i+1, err)
		}
		doctors = append(doctors, d.ID)
	}
	for i := 0; i < n.Patients; i++ {
		p, err := svcs.identity.CreatePatient(ctx, g.patient(i))
		if err != nil {
			return fmt.Errorf("patient %d: %w", i+1, err)
		}
		patients = append(patients, p.ID)
	}
	logger.Info().Int("hospitals", len(hospitals)).Int("clinics", len(clinics)).
		Int("doctors", len(doctors)).Int("patients", len(patients)).Msg("seeded accounts")

	if len(doctors) == 0 || len(patients) == 0 {
		return nil
	}

	hours := scheduling.DefaultBusinessHours(g.loc)
	created, skipped := 0, 0
	for i := 0; i < n.Appointments; i++ {
		a, err := svcs.appointments.CreateAppointment(ctx, g.appointment(doctors, patients, hours))
		var verrs validation.Errors
		if errors.As(err, &verrs) || errors.Is(err, scheduling.ErrOverlap) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("appointment %d: %w", i+1, err)
		}
		created++
		if g.rng.Intn(2) == 0 {
			if _, err := svcs.appointments.Confirm(ctx, a.ID); err != nil {
				return fmt.Errorf("confirm appointment: %w", err)
			}
		}
	}
	logger.Info().Int("created", created).Int("skipped", skipped).Msg("seeded appointments")
	return nil
}

func seedCmd() *cobra.Command {
	var n seedCounts
	var randSeed int64
	var password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with sample facilities, doctors, patients and appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, logCloser := newLogger(cfg)
			defer logCloser.Close()

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 4})
			if err != nil {
				return err
			}
			defer pool.Close()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			clk := clock.System{}
			svcs, err := newServices(cfg, pool, metrics.New(), clk, logger)
			if err != nil {
				return err
			}
			return seed(ctx, svcs, newGenerator(randSeed, clk.Now(), loc, password), n, logger)
		},
	}
	cmd.Flags().IntVar(&n.Hospitals, "hospitals", 3, "Number of hospitals")
	cmd.Flags().IntVar(&n.Clinics, "clinics", 5, "Number of clinics")
	cmd.Flags().IntVar(&n.Doctors, "doctors", 20, "Number of doctors")
	cmd.Flags().IntVar(&n.Patients, "patients", 50, "Number of patients")
	cmd.Flags().IntVar(&n.Appointments, "appointments", 100, "Number of appointments to attempt")
	cmd.Flags().Int64Var(&randSeed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&password, "password", "password123", "Password for every seeded account")
	return cmd
}
