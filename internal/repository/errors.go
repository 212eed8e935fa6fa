package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// postgres error codes the repositories translate into sentinels
const (
	pgUniqueViolation = "23505"
	pgNoDataFound     = "P0002"
)

// uniqueViolation returns the violated constraint name when err is a unique violation
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

type rowScanner interface {
	Scan(dest ...any) error
}
