package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound            = errors.New("store: not found")
	ErrDuplicateEntry      = errors.New("store: duplicate entry")
	ErrInsufficientBalance = errors.New("store: insufficient balance")
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// mapError translates driver errors into store sentinels, keeping the
// original error in the chain.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, ErrDuplicateEntry, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}
