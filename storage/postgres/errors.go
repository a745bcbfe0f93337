package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"release-registry/storage"
)

// wrapErrorWithDetails translates gorm errors into the storage taxonomy with
// a more specific message.
func wrapErrorWithDetails(err error, operation, details string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.WrapError(storage.ErrNotFound,
			fmt.Sprintf("Record not found for %s (%s)", operation, details), err)
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.WrapError(storage.ErrAlreadyExists,
			fmt.Sprintf("Conflict for %s (%s)", operation, details), err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return storage.WrapError(storage.ErrConnectionFailed,
			fmt.Sprintf("Database unreachable for %s (%s)", operation, details), err)
	}

	// Storage taxonomy errors raised inside transactions pass through.
	var serr *storage.Error
	if errors.As(err, &serr) {
		return err
	}

	return storage.WrapError(storage.ErrOther,
		fmt.Sprintf("Database operation failed for %s (%s)", operation, details), err)
}
