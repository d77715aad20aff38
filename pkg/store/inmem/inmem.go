package inmem

import (
	"sort"
	"sync"
	"time"

	"github.com/igolaizola/aoreader/pkg/store"
)

type Store struct {
	lock    sync.Mutex
	cursor  string
	records map[string]*store.Record
}

func New() *Store {
	return &Store{records: make(map[string]*store.Record)}
}

func (s *Store) Cursor() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cursor, nil
}

func (s *Store) SetCursor(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cursor = id
	return nil
}

func (s *Store) Seen(fingerprint string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.records[fingerprint]
	return ok, nil
}

func (s *Store) Save(r *store.Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.records[r.Fingerprint] = r
	return nil
}

func (s *Store) List(from time.Time, to time.Time) ([]*store.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	var records []*store.Record
	for _, r := range s.records {
		if r.Time.Before(from) || r.Time.After(to) {
			continue
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Time.Before(records[j].Time)
	})
	return records, nil
}
