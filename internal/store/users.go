package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-keeper/internal/models"
)

// CreateUser inserts a new user keyed by email. The existence check and the
// insert share one write transaction; bbolt runs write transactions one at a
// time, so two registrations for the same email cannot both succeed.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := checkContext(ctx, "creating user"); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return storageError("creating user", fmt.Errorf("marshaling user: %w", err))
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(usersBucket))
		if bucket.Get([]byte(user.Email)) != nil {
			return ErrDuplicateAccount
		}
		return bucket.Put([]byte(user.Email), data)
	})
	return storageError("creating user", err)
}

// UpdateUser writes the user record, inserting it if absent.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if err := checkContext(ctx, "updating user"); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return storageError("updating user", fmt.Errorf("marshaling user: %w", err))
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(usersBucket)).Put([]byte(user.Email), data)
	})
	return storageError("updating user", err)
}

// GetUser returns the user with the given email, or nil if there is none.
func (s *Store) GetUser(ctx context.Context, email string) (*models.User, error) {
	if err := checkContext(ctx, "getting user"); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(usersBucket)).Get([]byte(email))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, storageError("getting user", err)
	}
	return user, nil
}
