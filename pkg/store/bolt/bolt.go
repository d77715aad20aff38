package bolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/igolaizola/aoreader/pkg/store"
)

var (
	metaBucket         = []byte("meta")
	signalsBucket      = []byte("signals")
	fingerprintsBucket = []byte("fingerprints")
	cursorKey          = []byte("cursor")
)

// keyLayout has a fixed width so keys sort chronologically.
const keyLayout = "2006-01-02T15:04:05.000000000Z07:00"

func New(path string) (*Store, error) {
	// The data file is created if it doesn't exist.
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: couldn't open bolt db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, signalsBucket, fingerprintsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: couldn't create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

type Store struct {
	db *bolt.DB
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Cursor() (string, error) {
	var id string
	if err := s.db.View(func(tx *bolt.Tx) error {
		id = string(tx.Bucket(metaBucket).Get(cursorKey))
		return nil
	}); err != nil {
		return "", fmt.Errorf("bolt: couldn't get cursor: %w", err)
	}
	return id, nil
}

func (s *Store) SetCursor(id string) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(cursorKey, []byte(id))
	}); err != nil {
		return fmt.Errorf("bolt: couldn't put cursor %s: %w", id, err)
	}
	return nil
}

func (s *Store) Seen(fingerprint string) (bool, error) {
	var ok bool
	if err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(fingerprintsBucket).Get([]byte(fingerprint)) != nil
		return nil
	}); err != nil {
		return false, fmt.Errorf("bolt: couldn't query %s: %w", fingerprint, err)
	}
	return ok, nil
}

// Save stores the record keyed by time so it can be listed by range and
// indexes its fingerprint.
func (s *Store) Save(r *store.Record) error {
	key := recordKey(r)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		byt, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("couldn't encode: %w", err)
		}
		if err := tx.Bucket(signalsBucket).Put(key, byt); err != nil {
			return err
		}
		return tx.Bucket(fingerprintsBucket).Put([]byte(r.Fingerprint), key)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't put %s: %w", key, err)
	}
	return nil
}

func (s *Store) List(from time.Time, to time.Time) ([]*store.Record, error) {
	var records []*store.Record
	if err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(signalsBucket).Cursor()

		// Time range
		min := []byte(from.UTC().Format(keyLayout))
		max := []byte(to.UTC().Format(keyLayout) + "~")

		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			var r store.Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("couldn't decode: %w", err)
			}
			if r.Time.Before(from) || r.Time.After(to) {
				continue
			}
			records = append(records, &r)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("bolt: couldn't query: %w", err)
	}
	return records, nil
}

func recordKey(r *store.Record) []byte {
	return []byte(r.Time.UTC().Format(keyLayout) + "|" + r.Fingerprint)
}
