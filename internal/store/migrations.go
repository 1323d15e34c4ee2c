package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-keeper/internal/models"
)

// migration makes sure one piece of schema exists. Steps must be safe to
// run again.
type migration struct {
	version int
	name    string
	apply   func(tx *bbolt.Tx) error
}

// migrations is ordered by version. Append new steps, never edit old ones.
var migrations = []migration{
	{version: 1, name: "create receipts and users", apply: ensureBuckets(receiptsBucket, usersBucket)},
	{version: 2, name: "index receipts by owner", apply: ensureIndex(receiptsByUserBucket, userIndexKey)},
	{version: 3, name: "index receipts by creation time", apply: ensureIndex(receiptsByCreatedBucket, createdIndexKey)},
	{version: 4, name: "order index keys before 1970", apply: rebuildIndexes(
		receiptIndex{receiptsByUserBucket, userIndexKey},
		receiptIndex{receiptsByCreatedBucket, createdIndexKey},
	)},
}

// LatestVersion is the schema version this release writes.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// migrate applies every step above the stored version in a single write
// transaction, so a crash leaves the file at its old version.
func migrate(db *bbolt.DB, steps []migration) error {
	var applied []migration
	err := db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return fmt.Errorf("creating meta bucket: %w", err)
		}

		current := readVersion(meta)
		latest := steps[len(steps)-1].version
		if current > latest {
			return fmt.Errorf("%w: stored version %d, latest known %d", ErrSchemaTooNew, current, latest)
		}

		for _, step := range steps {
			if step.version <= current {
				continue
			}
			if err := step.apply(tx); err != nil {
				return fmt.Errorf("migration %d (%s): %w", step.version, step.name, err)
			}
			applied = append(applied, step)
		}

		if current == latest {
			return nil
		}
		return writeVersion(meta, latest)
	})
	if err != nil {
		return err
	}

	for _, step := range applied {
		slog.Info("Applied schema migration", "version", step.version, "name", step.name)
	}
	return nil
}

func ensureBuckets(names ...string) func(tx *bbolt.Tx) error {
	return func(tx *bbolt.Tx) error {
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	}
}

// ensureIndex creates an index bucket and adds any entry missing for an
// existing receipt.
func ensureIndex(name string, key func(*models.Receipt) []byte) func(tx *bbolt.Tx) error {
	return func(tx *bbolt.Tx) error {
		index, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", name, err)
		}

		receipts := tx.Bucket([]byte(receiptsBucket))
		if receipts == nil {
			return fmt.Errorf("bucket %s missing", receiptsBucket)
		}
		return receipts.ForEach(func(k, v []byte) error {
			var receipt models.Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", k, err)
			}
			entry := key(&receipt)
			if index.Get(entry) != nil {
				return nil
			}
			return index.Put(entry, []byte(receipt.ID))
		})
	}
}

type receiptIndex struct {
	bucket string
	key    func(*models.Receipt) []byte
}

// rebuildIndexes drops and refills index buckets whose key layout changed.
func rebuildIndexes(indexes ...receiptIndex) func(tx *bbolt.Tx) error {
	return func(tx *bbolt.Tx) error {
		for _, idx := range indexes {
			if tx.Bucket([]byte(idx.bucket)) != nil {
				if err := tx.DeleteBucket([]byte(idx.bucket)); err != nil {
					return fmt.Errorf("dropping bucket %s: %w", idx.bucket, err)
				}
			}
			if err := ensureIndex(idx.bucket, idx.key)(tx); err != nil {
				return err
			}
		}
		return nil
	}
}

func readVersion(meta *bbolt.Bucket) int {
	if meta == nil {
		return 0
	}
	v := meta.Get([]byte(schemaVersionKey))
	if len(v) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(v))
}

func writeVersion(meta *bbolt.Bucket, version int) error {
	return meta.Put([]byte(schemaVersionKey), binary.BigEndian.AppendUint64(nil, uint64(version)))
}
