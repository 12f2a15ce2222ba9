package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("get user: %w", pgx.ErrNoRows), ErrNotFound},
		{"unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, ErrDuplicate},
		{"check", &pgconn.PgError{Code: pgerrcode.CheckViolation}, ErrConstraint},
		{"fk", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, ErrConstraint},
		{"admin shutdown", &pgconn.PgError{Code: pgerrcode.AdminShutdown}, ErrUnavailable},
		{"too many connections", &pgconn.PgError{Code: pgerrcode.TooManyConnections}, ErrUnavailable},
		{"deadline", context.DeadlineExceeded, ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
			if !errors.Is(got, tc.err) {
				t.Errorf("original error lost from chain: %v", got)
			}
		})
	}
}

func TestClassifyPassesThroughUnknown(t *testing.T) {
	orig := errors.New("boom")
	if got := Classify(orig); got != orig {
		t.Errorf("got %v, want original", got)
	}
	if Classify(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestIsDuplicate(t *testing.T) {
	if !IsDuplicate(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})) {
		t.Error("expected duplicate")
	}
	if IsDuplicate(errors.New("other")) {
		t.Error("unexpected duplicate")
	}
}
