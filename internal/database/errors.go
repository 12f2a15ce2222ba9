package database

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound wraps pgx.ErrNoRows.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is a unique-key violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConstraint is a CHECK or foreign-key violation.
	ErrConstraint = errors.New("constraint violation")
	// ErrUnavailable means the database could not be reached or gave up.
	ErrUnavailable = errors.New("database unavailable")
)

// Classify tags err with one of the sentinel errors above while keeping the
// original in the chain. Unknown errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case pgErr.Code == pgerrcode.CheckViolation, pgErr.Code == pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %w", ErrConstraint, err)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// IsDuplicate reports whether err is a unique-key violation.
func IsDuplicate(err error) bool {
	return errors.Is(Classify(err), ErrDuplicate)
}
