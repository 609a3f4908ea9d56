package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthportal/portal/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, doctor_id, patient_id, appointment_date, duration_minutes, status,
	appointment_type, notes, confirmed_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.AppointmentDate, &a.DurationMinutes,
		&a.Status, &a.AppointmentType, &a.Notes, &a.ConfirmedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// translate maps constraint failures to the package's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := db.IsExclusionViolation(err); ok {
		return ErrOverlap
	}
	if constraint, ok := db.IsForeignKeyViolation(err); ok {
		return fmt.Errorf("%w (%s)", ErrReferenceNotFound, constraint)
	}
	return err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, appointment_date, duration_minutes,
			status, appointment_type, notes, confirmed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.AppointmentDate, a.DurationMinutes,
		string(a.Status), string(a.AppointmentType), a.Notes, a.ConfirmedAt).Scan(&a.CreatedAt, &a.UpdatedAt)
	return translate(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET doctor_id=$2, patient_id=$3, appointment_date=$4, duration_minutes=$5,
			status=$6, appointment_type=$7, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.AppointmentDate, a.DurationMinutes,
		string(a.Status), string(a.AppointmentType), a.Notes).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return translate(err)
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildFilter(f ListFilter) *db.Where {
	w := &db.Where{}
	if f.DoctorID != nil {
		w.Add("a.doctor_id = ?", *f.DoctorID)
	}
	if f.PatientID != nil {
		w.Add("a.patient_id = ?", *f.PatientID)
	}
	if f.FacilityID != nil {
		w.Add("a.doctor_id IN (SELECT d.id FROM doctors d WHERE d.hospital_id = ? OR d.clinic_id = ?)", *f.FacilityID)
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			ss[i] = string(s)
		}
		w.Add("a.status = ANY(?)", ss)
	}
	if f.Type != nil {
		w.Add("a.appointment_type = ?", string(*f.Type))
	}
	if f.From != nil {
		w.Add("a.appointment_date >= ?", *f.From)
	}
	if f.To != nil {
		w.Add("a.appointment_date < ?", *f.To)
	}
	if f.After != nil {
		w.Add("a.appointment_date > ?", *f.After)
	}
	if f.Until != nil {
		w.Add("a.appointment_date <= ?", *f.Until)
	}
	return w
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	w := buildFilter(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM appointments a%s ORDER BY a.appointment_date %s, a.id LIMIT %s OFFSET %s`,
		prefixed(apptCols, "a."), w.SQL(), order, w.Arg(limit), w.Arg(offset))

	rows, err := r.conn(ctx).Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func prefixed(cols, alias string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (r *appointmentRepoPG) Count(ctx context.Context, f ListFilter) (int, error) {
	w := buildFilter(f)
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+w.SQL(), w.Args()...).Scan(&n)
	return n, err
}

func (r *appointmentRepoPG) CountDistinctPatients(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(DISTINCT patient_id) FROM appointments WHERE doctor_id = $1`, doctorID).Scan(&n)
	return n, err
}

func (r *appointmentRepoPG) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1
		  AND id <> $2
		  AND status NOT IN ('cancelled', 'no_show')
		  AND appointment_date < $4
		  AND ends_at > $3
		ORDER BY appointment_date`,
		doctorID, excludeID, start, end)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *appointmentRepoPG) Transition(ctx context.Context, t Transition) (*Appointment, error) {
	w := &db.Where{}
	w.Add("id = ?", t.ID)
	w.Add("status = ANY(?)", t.FromStrings())
	if t.StartedBy != nil {
		w.Add("appointment_date <= ?", *t.StartedBy)
	}

	at := w.Arg(t.At)
	set := []string{"status = " + w.Arg(string(t.To)), "updated_at = " + at}
	switch t.Action {
	case ActionConfirm:
		set = append(set, "confirmed_at = "+at)
	case ActionCancel:
		note := w.Arg(t.Note)
		set = append(set, "notes = CASE WHEN notes IS NULL OR notes = '' THEN "+note+" ELSE notes || ' - ' || "+note+" END")
	}

	query := `UPDATE appointments SET ` + strings.Join(set, ", ") + w.SQL() + ` RETURNING ` + apptCols
	return scanAppointment(r.conn(ctx).QueryRow(ctx, query, w.Args()...))
}

func (r *appointmentRepoPG) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, doctorID).Scan(&id)
	if db.IsNoRows(err) {
		return fmt.Errorf("%w: doctor %s", ErrReferenceNotFound, doctorID)
	}
	return err
}
