package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage marks failures of the underlying database: I/O, a blocked
	// file lock, encoding, a cancelled context. Callers cannot fix these by
	// changing their input.
	ErrStorage = errors.New("storage error")

	// ErrDuplicateAccount is returned by CreateUser when the email is taken.
	ErrDuplicateAccount = errors.New("an account with this email already exists")

	// ErrSchemaTooNew means the file was written by a newer release.
	ErrSchemaTooNew = errors.New("database schema is newer than this release")
)

// storageError tags err as a storage failure. Domain errors and errors that
// are already tagged pass through unchanged.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrDuplicateAccount) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
