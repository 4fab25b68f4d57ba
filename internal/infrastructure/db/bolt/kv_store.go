package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/documentai/docai/internal/core/domain"
)

// KVStore reads and writes the session bucket.
type KVStore struct {
	db *bbolt.DB
}

func NewKVStore(db *bbolt.DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(sessionBucket).Get([]byte(key))
		if v == nil {
			return domain.ErrKeyNotFound
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (s *KVStore) Set(_ context.Context, key, value string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt put %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Remove(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bolt delete %s: %w", key, err)
	}
	return nil
}

// Ping fails once the database has been closed.
func (s *KVStore) Ping(context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}
