package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/igolaizola/aoreader/pkg/signal"
	"github.com/igolaizola/aoreader/pkg/store"
	"github.com/igolaizola/aoreader/pkg/store/bolt"
	"github.com/igolaizola/aoreader/pkg/store/inmem"
	"github.com/shopspring/decimal"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) store.Store{
		"inmem": func(t *testing.T) store.Store {
			return inmem.New()
		},
		"bolt": func(t *testing.T) store.Store {
			s, err := bolt.New(filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
	for name, newStore := range stores {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			testStore(t, newStore(t))
		})
	}
}

func testStore(t *testing.T, s store.Store) {
	cursor, err := s.Cursor()
	if err != nil {
		t.Fatal(err)
	}
	if cursor != "" {
		t.Errorf("want empty cursor, got %q", cursor)
	}
	if err := s.SetCursor("1234567890123456789"); err != nil {
		t.Fatal(err)
	}
	if cursor, _ = s.Cursor(); cursor != "1234567890123456789" {
		t.Errorf("want stored cursor, got %q", cursor)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var fingerprints []string
	for i := 0; i < 3; i++ {
		sig := &signal.Signal{
			Base:    "BTC",
			Symbol:  "BTCUSDT",
			Side:    signal.Buy,
			Trigger: decimal.NewFromInt(int64(40000 + i)),
			Targets: []decimal.Decimal{decimal.NewFromInt(50000)},
			DCA:     []decimal.Decimal{},
		}
		r := &store.Record{
			Fingerprint: sig.Hash(),
			MessageID:   "1",
			Time:        start.Add(time.Duration(i) * time.Hour).Add(500 * time.Millisecond * time.Duration(i)),
			Signal:      sig,
		}
		fingerprints = append(fingerprints, r.Fingerprint)
		if err := s.Save(r); err != nil {
			t.Fatal(err)
		}
	}

	for _, fp := range fingerprints {
		ok, err := s.Seen(fp)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("fingerprint %s not seen", fp)
		}
	}
	if ok, _ := s.Seen("unknown"); ok {
		t.Errorf("unknown fingerprint seen")
	}

	records, err := s.List(start.Add(30*time.Minute), start.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	if records[0].Fingerprint != fingerprints[1] || records[1].Fingerprint != fingerprints[2] {
		t.Errorf("records not ordered by time")
	}
	if !records[1].Signal.Trigger.Equal(decimal.NewFromInt(40002)) {
		t.Errorf("unexpected trigger %s", records[1].Signal.Trigger)
	}
}
