package facility

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/validation"
)

var uniqueFields = map[string]string{
	"facilities_name_key":  "name",
	"facilities_email_key": "email",
}

func translate(err error) error {
	if constraint, ok := db.IsUniqueViolation(err); ok {
		field, known := uniqueFields[constraint]
		if !known {
			field = "base"
		}
		return validation.Errors{{Field: field, Code: validation.CodeTaken, Message: "has already been taken"}}
	}
	return err
}

type facilityRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &facilityRepoPG{pool: pool} }

func (r *facilityRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const facilityCols = `id, kind, name, address, city, state, zip_code, phone, email, website_url,
	established_date, health_care_type, status, bed_capacity, emergency_services,
	services_offered, accepts_walk_ins, password_digest, created_at, updated_at`

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	var kind string
	err := row.Scan(&f.ID, &kind, &f.Name, &f.Address, &f.City, &f.State, &f.ZipCode, &f.Phone, &f.Email,
		&f.WebsiteURL, &f.EstablishedDate, &f.HealthCareType, &f.Status, &f.BedCapacity, &f.EmergencyServices,
		&f.ServicesOffered, &f.AcceptsWalkIns, &f.PasswordDigest, &f.CreatedAt, &f.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Kind = Kind(kind)
	return &f, nil
}

func (r *facilityRepoPG) Create(ctx context.Context, f *Facility) error {
	f.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO facilities (id, kind, name, address, city, state, zip_code, phone, email, website_url,
			established_date, health_care_type, status, bed_capacity, emergency_services,
			services_offered, accepts_walk_ins, password_digest)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING created_at, updated_at`,
		f.ID, string(f.Kind), f.Name, f.Address, f.City, f.State, f.ZipCode, f.Phone, f.Email, f.WebsiteURL,
		f.EstablishedDate, f.HealthCareType, f.Status, f.BedCapacity, f.EmergencyServices,
		f.ServicesOffered, f.AcceptsWalkIns, f.PasswordDigest).Scan(&f.CreatedAt, &f.UpdatedAt)
	return translate(err)
}

func (r *facilityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return scanFacility(r.conn(ctx).QueryRow(ctx, `SELECT `+facilityCols+` FROM facilities WHERE id = $1`, id))
}

func (r *facilityRepoPG) GetByEmail(ctx context.Context, email string) (*Facility, error) {
	return scanFacility(r.conn(ctx).QueryRow(ctx,
		`SELECT `+facilityCols+` FROM facilities WHERE lower(email) = lower($1)`, email))
}

func (r *facilityRepoPG) Update(ctx context.Context, f *Facility) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE facilities SET name=$2, address=$3, city=$4, state=$5, zip_code=$6, phone=$7, email=$8,
			website_url=$9, established_date=$10, health_care_type=$11, status=$12, bed_capacity=$13,
			emergency_services=$14, services_offered=$15, accepts_walk_ins=$16, password_digest=$17,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.Name, f.Address, f.City, f.State, f.ZipCode, f.Phone, f.Email,
		f.WebsiteURL, f.EstablishedDate, f.HealthCareType, f.Status, f.BedCapacity,
		f.EmergencyServices, f.ServicesOffered, f.AcceptsWalkIns, f.PasswordDigest).Scan(&f.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return translate(err)
}

// Delete removes the facility. Doctors keep their rows; the foreign keys
// are ON DELETE SET NULL.
func (r *facilityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM facilities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *facilityRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Facility, int, error) {
	w := &db.Where{}
	if f.Kind != "" {
		w.Add("kind = ?", string(f.Kind))
	}
	if q := db.PrefixQuery(f.Query); q != "" {
		w.Add("search_vector @@ to_tsquery('simple', ?)", q)
	}
	if f.Status != "" {
		w.Add("status = ?", f.Status)
	}
	if f.City != "" {
		w.Add("lower(city) = lower(?)", f.City)
	}
	if f.HealthCareType != "" {
		w.Add("health_care_type = ?", f.HealthCareType)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM facilities`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM facilities%s ORDER BY name, id LIMIT %s OFFSET %s`,
		facilityCols, w.SQL(), w.Arg(limit), w.Arg(offset))
	rows, err := r.conn(ctx).Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Facility
	for rows.Next() {
		fac, err := scanFacility(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, fac)
	}
	return items, total, rows.Err()
}

func (r *facilityRepoPG) DoctorCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctors WHERE hospital_id = $1 OR clinic_id = $1`, id).Scan(&n)
	return n, err
}

func (r *facilityRepoPG) Specializations(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT specialization FROM doctors
		WHERE hospital_id = $1 OR clinic_id = $1
		ORDER BY specialization`, id)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
