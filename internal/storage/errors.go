package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// errNoRows lets Exec-based repository methods report zero affected rows the
// same way QueryRow does.
func errNoRows() error { return pgx.ErrNoRows }

// IsNotFound reports a query that matched no rows.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsConflict reports a violated overlap exclusion constraint or unique
// constraint; for bookings this is the store-level backstop behind the
// in-transaction overlap check.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23P01" || pgErr.Code == "23505"
}
