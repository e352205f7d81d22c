package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes inspected by MapError.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// ErrReference indicates a row refers to a parent that does not exist.
var ErrReference = errors.New("referenced record does not exist")

// MapError translates database errors to domain errors.
// sql.ErrNoRows becomes notFoundErr, a unique violation becomes duplicateErr
// and a foreign key violation becomes ErrReference. Other errors are returned
// unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return duplicateErr
		case pgForeignKeyViolation:
			return ErrReference
		}
	}

	return err
}
