// Package service holds the inspection payment engine: the wallet ledger,
// payment reconciliation, the inspection state machine, the revenue split,
// signature collection and the withdrawal pipeline.
package service

import (
	"context" // Request scoping
	"errors"  // Error inspection
	"strconv" // Id formatting
	"time"    // Clock

	"inspection_system/internal/domain" // Models and errors

	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Row locking
)

// Clock returns the current time; tests replace it
type Clock func() time.Time

// forUpdate adds SELECT ... FOR UPDATE to the next query
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// findLocked loads one row by id under a row lock, mapping a miss to NotFound
func findLocked(tx *gorm.DB, dest any, id uint, entity string) error {
	if err := forUpdate(tx).First(dest, id).Error; err != nil {
		return mapDBError(err, entity)
	}
	return nil
}

// mapDBError converts gorm errors into the domain taxonomy
func mapDBError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFound(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.NewError(domain.KindIntegrityViolation, "%s already exists", entity).Wrap(err)
	}
	return err
}

// retryOnConflict runs fn and retries it once when it fails with an integrity
// violation, which is how a lost insert race on a unique key surfaces
func retryOnConflict(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || !isConflict(err) {
		return err
	}
	logrus.WithFields(logrus.Fields{"op": op, "error": err.Error()}).Warn("Concurrent modification, retrying once")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err = fn()
	if err != nil && isConflict(err) {
		if appErr, ok := domain.AsAppError(err); ok {
			return appErr
		}
		return domain.NewError(domain.KindIntegrityViolation, "concurrent modification of %s", op).Wrap(err)
	}
	return err
}

// isConflict reports a duplicate key or integrity violation
func isConflict(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, domain.ErrIntegrityViolation)
}

// uintString formats an id
func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
