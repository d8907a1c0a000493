package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "fuel_transactions"

// ErrNotFound is returned when a transaction does not exist
var ErrNotFound = errors.New("transaction not found")

// DB defines the interface for database operations
type DB interface {
	// SaveTransaction inserts or replaces a transaction
	SaveTransaction(ctx context.Context, t *Transaction) error

	// GetTransaction retrieves a transaction by ID
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// ListTransactions returns transactions newest first, optionally filtered by status
	ListTransactions(ctx context.Context, status Status) ([]*Transaction, error)

	// DeleteTransaction removes a transaction
	DeleteTransaction(ctx context.Context, id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveTransaction saves a transaction to the database
func (b *BoltDB) SaveTransaction(_ context.Context, t *Transaction) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshaling transaction: %w", err)
		}
		return bucket.Put([]byte(t.ID), data)
	})
}

// GetTransaction retrieves a transaction by ID
func (b *BoltDB) GetTransaction(_ context.Context, id string) (*Transaction, error) {
	var t *Transaction
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions returns all transactions, newest first
func (b *BoltDB) ListTransactions(_ context.Context, status Status) ([]*Transaction, error) {
	transactions := make([]*Transaction, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var t Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshaling transaction: %w", err)
			}
			if status != "" && t.Status != status {
				return nil
			}
			transactions = append(transactions, &t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(transactions, func(a, b *Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return transactions, nil
}

// DeleteTransaction removes a transaction from the database
func (b *BoltDB) DeleteTransaction(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
