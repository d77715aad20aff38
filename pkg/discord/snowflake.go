package discord

import (
	"strconv"
	"strings"
	"time"
)

// Epoch is the first millisecond of 2015, the origin of snowflake ids.
const Epoch int64 = 1420070400000

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp returns the creation time of the message. It is decoded from
// the snowflake id and falls back to the timestamp field. Timestamps
// without zone are read as UTC.
func Timestamp(m Message) (time.Time, bool) {
	if id, err := strconv.ParseUint(m.ID, 10, 64); err == nil && id != 0 {
		return time.UnixMilli(int64(id>>22) + Epoch), true
	}
	ts := strings.TrimSpace(m.Timestamp)
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Less reports whether snowflake a is older than snowflake b. Ids that
// can't be parsed sort first.
func Less(a, b string) bool {
	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return true
	case errB != nil:
		return false
	}
	return x < y
}
