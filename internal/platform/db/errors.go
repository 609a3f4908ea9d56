package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the domain layer cares about.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeExclusionViolation  = "23P01"
)

// IsNoRows reports whether err is pgx's no-rows error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func pgCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// IsUniqueViolation reports a unique constraint failure and the constraint name.
func IsUniqueViolation(err error) (string, bool) {
	code, constraint := pgCode(err)
	return constraint, code == CodeUniqueViolation
}

// IsForeignKeyViolation reports a foreign key failure and the constraint name.
func IsForeignKeyViolation(err error) (string, bool) {
	code, constraint := pgCode(err)
	return constraint, code == CodeForeignKeyViolation
}

// IsExclusionViolation reports an exclusion constraint failure.
func IsExclusionViolation(err error) (string, bool) {
	code, constraint := pgCode(err)
	return constraint, code == CodeExclusionViolation
}
