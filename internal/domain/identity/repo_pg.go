package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/validation"
)

// uniqueFields maps unique constraints to the attribute they guard.
var uniqueFields = map[string]string{
	"doctors_email_key":          "email",
	"doctors_license_number_key": "license_number",
	"patients_email_key":         "email",
}

// translate turns constraint failures into field errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := db.IsUniqueViolation(err); ok {
		field, known := uniqueFields[constraint]
		if !known {
			field = "base"
		}
		return validation.Errors{{Field: field, Code: validation.CodeTaken, Message: "has already been taken"}}
	}
	if constraint, ok := db.IsForeignKeyViolation(err); ok {
		return validation.Errors{{Field: "base", Code: validation.CodeNotFound, Message: "references a missing record (" + constraint + ")"}}
	}
	return err
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const doctorCols = `id, first_name, last_name, email, phone, specialization, license_number,
	years_of_experience, hospital_id, clinic_id, password_digest, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Specialization, &d.LicenseNumber,
		&d.YearsOfExperience, &d.HospitalID, &d.ClinicID, &d.PasswordDigest, &d.CreatedAt, &d.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, first_name, last_name, email, phone, specialization, license_number,
			years_of_experience, hospital_id, clinic_id, password_digest)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Email, d.Phone, d.Specialization, d.LicenseNumber,
		d.YearsOfExperience, d.HospitalID, d.ClinicID, d.PasswordDigest).Scan(&d.CreatedAt, &d.UpdatedAt)
	return translate(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE lower(email) = lower($1)`, email))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET first_name=$2, last_name=$3, email=$4, phone=$5, specialization=$6,
			license_number=$7, years_of_experience=$8, hospital_id=$9, clinic_id=$10,
			password_digest=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.FirstName, d.LastName, d.Email, d.Phone, d.Specialization,
		d.LicenseNumber, d.YearsOfExperience, d.HospitalID, d.ClinicID, d.PasswordDigest).Scan(&d.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrDoctorNotFound
	}
	return translate(err)
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	w := &db.Where{}
	if q := db.PrefixQuery(f.Query); q != "" {
		w.Add("search_vector @@ to_tsquery('simple', ?)", q)
	}
	if f.Specialization != "" {
		w.Add("specialization = ?", f.Specialization)
	}
	if f.HospitalID != nil {
		w.Add("hospital_id = ?", *f.HospitalID)
	}
	if f.ClinicID != nil {
		w.Add("clinic_id = ?", *f.ClinicID)
	}
	if f.FacilityID != nil {
		w.Add("(hospital_id = ? OR clinic_id = ?)", *f.FacilityID)
	}
	if f.Independent != nil {
		if *f.Independent {
			w.AddRaw("hospital_id IS NULL AND clinic_id IS NULL")
		} else {
			w.AddRaw("(hospital_id IS NOT NULL OR clinic_id IS NOT NULL)")
		}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM doctors%s ORDER BY last_name, first_name, id LIMIT %s OFFSET %s`,
		doctorCols, w.SQL(), w.Arg(limit), w.Arg(offset))
	rows, err := r.conn(ctx).Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *doctorRepoPG) Specializations(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT DISTINCT specialization FROM doctors ORDER BY specialization`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, first_name, last_name, email, phone, date_of_birth, gender,
	emergency_contact_name, emergency_contact_phone, password_digest, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.DateOfBirth, &p.Gender,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.PasswordDigest, &p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, phone, date_of_birth, gender,
			emergency_contact_name, emergency_contact_phone, password_digest)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.Gender,
		p.EmergencyContactName, p.EmergencyContactPhone, p.PasswordDigest).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE lower(email) = lower($1)`, email))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, email=$4, phone=$5, date_of_birth=$6,
			gender=$7, emergency_contact_name=$8, emergency_contact_phone=$9, password_digest=$10,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.Gender,
		p.EmergencyContactName, p.EmergencyContactPhone, p.PasswordDigest).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrPatientNotFound
	}
	return translate(err)
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	w := &db.Where{}
	if q := db.PrefixQuery(f.Query); q != "" {
		w.Add("search_vector @@ to_tsquery('simple', ?)", q)
	}
	if f.BornAfter != nil {
		w.Add("date_of_birth > ?", *f.BornAfter)
	}
	if f.BornOnOrBefore != nil {
		w.Add("date_of_birth <= ?", *f.BornOnOrBefore)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM patients%s ORDER BY last_name, first_name, id LIMIT %s OFFSET %s`,
		patientCols, w.SQL(), w.Arg(limit), w.Arg(offset))
	rows, err := r.conn(ctx).Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
