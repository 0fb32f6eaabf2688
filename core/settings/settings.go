// Package settings is a process-wide key/value store shared by every
// terminal.
package settings

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("settings")

// Keys used by the shell.
const (
	KeyHistory   = "history"
	KeyLastLogin = "last_login"
)

// ErrClosed is returned when the store is used after Close.
var ErrClosed = errors.New("settings: store closed")

// Store persists JSON encoded values in a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening settings %q", path)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating settings bucket")
	}

	return &Store{db: db}, nil
}

// Get decodes the value stored under key into v. It returns false if the key
// isn't set.
func (s *Store) Get(key string, v interface{}) (bool, error) {
	if s.db == nil {
		return false, ErrClosed
	}

	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		// Bytes are only valid for the life of the transaction.
		if data := tx.Bucket(bucketName).Get([]byte(key)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	}); err != nil {
		return false, err
	}

	if raw == nil {
		return false, nil
	}
	return true, errors.Wrapf(json.Unmarshal(raw, v), "decoding setting %q", key)
}

// Put stores v under key.
func (s *Store) Put(key string, v interface{}) error {
	if s.db == nil {
		return ErrClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding setting %q", key)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), data)
	})
}

// Delete removes key, missing keys are ignored.
func (s *Store) Delete(key string) error {
	if s.db == nil {
		return ErrClosed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// Keys lists the stored keys in byte order.
func (s *Store) Keys() ([]string, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
