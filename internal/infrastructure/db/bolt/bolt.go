// Package bolt persists session keys in a local bbolt file, the client-side
// equivalent of browser local storage.
package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const defaultTimeout = time.Second

var sessionBucket = []byte("session")

// Config captures where the database lives.
type Config struct {
	Path    string
	Timeout time.Duration
}

// Open opens (creating if needed) the database file and its bucket. Timeout
// bounds how long Open waits for another process holding the file lock.
func Open(cfg Config) (*bbolt.DB, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("bolt mkdir: %w", err)
		}
	}

	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("bolt open %s: %w", cfg.Path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt bucket: %w", err)
	}
	return db, nil
}
