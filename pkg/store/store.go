package store

import (
	"time"

	"github.com/igolaizola/aoreader/pkg/signal"
)

// Record is a signal that has already been handed off.
type Record struct {
	Fingerprint string         `json:"fingerprint"`
	MessageID   string         `json:"message_id"`
	Time        time.Time      `json:"time"`
	Signal      *signal.Signal `json:"signal"`
}

type Store interface {
	// Cursor returns the id of the last processed message, empty if none.
	Cursor() (string, error)
	SetCursor(id string) error
	// Seen reports whether a signal with the fingerprint was already saved.
	Seen(fingerprint string) (bool, error)
	Save(r *Record) error
	// List returns records saved between from and to, oldest first.
	List(from time.Time, to time.Time) ([]*Record, error)
}
