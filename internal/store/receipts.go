package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-keeper/internal/models"
)

// SaveReceipt inserts the receipt or overwrites the one with the same ID.
// Field values are not validated here.
func (s *Store) SaveReceipt(ctx context.Context, receipt *models.Receipt) error {
	if err := checkContext(ctx, "saving receipt"); err != nil {
		return err
	}

	data, err := json.Marshal(receipt)
	if err != nil {
		return storageError("saving receipt", fmt.Errorf("marshaling receipt: %w", err))
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptsBucket))
		if old := bucket.Get([]byte(receipt.ID)); old != nil {
			var previous models.Receipt
			if err := json.Unmarshal(old, &previous); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			if err := unindexReceipt(tx, &previous); err != nil {
				return err
			}
		}
		if err := bucket.Put([]byte(receipt.ID), data); err != nil {
			return err
		}
		return indexReceipt(tx, receipt)
	})
	return storageError("saving receipt", err)
}

// GetReceipt returns the receipt with the given ID, or nil if there is none.
func (s *Store) GetReceipt(ctx context.Context, id string) (*models.Receipt, error) {
	if err := checkContext(ctx, "getting receipt"); err != nil {
		return nil, err
	}

	var receipt *models.Receipt
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(receiptsBucket)).Get([]byte(id))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, storageError("getting receipt", err)
	}
	return receipt, nil
}

// GetReceiptsByUser returns the receipts owned by userEmail, newest first.
// It walks the owner index rather than scanning every receipt.
func (s *Store) GetReceiptsByUser(ctx context.Context, userEmail string) ([]*models.Receipt, error) {
	if err := checkContext(ctx, "listing receipts by user"); err != nil {
		return nil, err
	}

	receipts := make([]*models.Receipt, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptsBucket))
		prefix := userIndexPrefix(userEmail)
		c := tx.Bucket([]byte(receiptsByUserBucket)).Cursor()
		for k, id := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, id = c.Next() {
			data := bucket.Get(id)
			if data == nil {
				continue
			}
			var receipt models.Receipt
			if err := json.Unmarshal(data, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", id, err)
			}
			if receipt.UserEmail != userEmail {
				continue
			}
			receipts = append(receipts, &receipt)
		}
		return nil
	})
	if err != nil {
		return nil, storageError("listing receipts by user", err)
	}

	// Index keys sort oldest first.
	slices.Reverse(receipts)
	return receipts, nil
}

// ListReceipts returns every stored receipt, newest first, using the
// creation-time index.
func (s *Store) ListReceipts(ctx context.Context) ([]*models.Receipt, error) {
	if err := checkContext(ctx, "listing receipts"); err != nil {
		return nil, err
	}

	receipts := make([]*models.Receipt, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptsBucket))
		c := tx.Bucket([]byte(receiptsByCreatedBucket)).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			data := bucket.Get(id)
			if data == nil {
				continue
			}
			var receipt models.Receipt
			if err := json.Unmarshal(data, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", id, err)
			}
			receipts = append(receipts, &receipt)
		}
		return nil
	})
	if err != nil {
		return nil, storageError("listing receipts", err)
	}
	return receipts, nil
}

// DeleteReceipt removes the receipt and its index entries. Deleting an
// unknown ID is not an error.
func (s *Store) DeleteReceipt(ctx context.Context, id string) error {
	if err := checkContext(ctx, "deleting receipt"); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptsBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}
		var receipt models.Receipt
		if err := json.Unmarshal(data, &receipt); err != nil {
			return fmt.Errorf("unmarshaling receipt: %w", err)
		}
		if err := unindexReceipt(tx, &receipt); err != nil {
			return err
		}
		return bucket.Delete([]byte(id))
	})
	return storageError("deleting receipt", err)
}

func indexReceipt(tx *bbolt.Tx, receipt *models.Receipt) error {
	id := []byte(receipt.ID)
	if err := tx.Bucket([]byte(receiptsByUserBucket)).Put(userIndexKey(receipt), id); err != nil {
		return fmt.Errorf("indexing receipt by user: %w", err)
	}
	if err := tx.Bucket([]byte(receiptsByCreatedBucket)).Put(createdIndexKey(receipt), id); err != nil {
		return fmt.Errorf("indexing receipt by creation time: %w", err)
	}
	return nil
}

func unindexReceipt(tx *bbolt.Tx, receipt *models.Receipt) error {
	if err := tx.Bucket([]byte(receiptsByUserBucket)).Delete(userIndexKey(receipt)); err != nil {
		return fmt.Errorf("unindexing receipt by user: %w", err)
	}
	if err := tx.Bucket([]byte(receiptsByCreatedBucket)).Delete(createdIndexKey(receipt)); err != nil {
		return fmt.Errorf("unindexing receipt by creation time: %w", err)
	}
	return nil
}

// userIndexKey is email, NUL, createdAt, id. Keys for one owner are
// contiguous and ordered by creation time.
func userIndexKey(receipt *models.Receipt) []byte {
	key := userIndexPrefix(receipt.UserEmail)
	key = appendCreatedAt(key, receipt.CreatedAt)
	return append(key, receipt.ID...)
}

func userIndexPrefix(email string) []byte {
	key := make([]byte, 0, len(email)+1+8+36)
	key = append(key, email...)
	return append(key, 0)
}

// createdIndexKey is createdAt followed by id.
func createdIndexKey(receipt *models.Receipt) []byte {
	key := make([]byte, 0, 8+len(receipt.ID))
	key = appendCreatedAt(key, receipt.CreatedAt)
	return append(key, receipt.ID...)
}

// appendCreatedAt writes ms big-endian with the sign bit flipped, so byte
// order matches numeric order for timestamps before 1970 too.
func appendCreatedAt(key []byte, ms int64) []byte {
	return binary.BigEndian.AppendUint64(key, uint64(ms)^(1<<63))
}
