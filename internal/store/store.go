// Package store is the local persistence layer: a single bbolt file holding
// users and receipts, secondary indexes over receipts, and a schema version
// that is migrated forward on open.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptsBucket          = "receipts"
	usersBucket             = "users"
	receiptsByUserBucket    = "receipts_by_user"
	receiptsByCreatedBucket = "receipts_by_created"
	metaBucket              = "meta"

	schemaVersionKey = "schema_version"
)

// Store owns the database handle. It is opened once at startup and must be
// closed by the owner.
type Store struct {
	db *bbolt.DB
}

// Stats summarizes the contents of the database.
type Stats struct {
	SchemaVersion int
	Users         int
	Receipts      int
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema. A file held by another process yields a storage error
// after a one second wait.
func Open(path string) (*Store, error) {
	return open(path, migrations)
}

func open(path string, steps []migration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, storageError("creating database directory", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, storageError("opening boltdb", err)
	}

	if err := migrate(db, steps); err != nil {
		db.Close()
		return nil, storageError("migrating schema", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return storageError("closing boltdb", s.db.Close())
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.db.Path()
}

// Stats reports record counts and the stored schema version.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, storageError("reading stats", err)
	}

	var stats Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		stats.SchemaVersion = readVersion(tx.Bucket([]byte(metaBucket)))
		stats.Users = tx.Bucket([]byte(usersBucket)).Stats().KeyN
		stats.Receipts = tx.Bucket([]byte(receiptsBucket)).Stats().KeyN
		return nil
	})
	if err != nil {
		return Stats{}, storageError("reading stats", err)
	}
	return stats, nil
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return storageError(op, fmt.Errorf("context done: %w", err))
	}
	return nil
}
