package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/igolaizola/aoreader/pkg/retry"
)

type fakeTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (t *fakeTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time {
	return t.c
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fakeTimer) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(log.Println, Config{
		BaseURL:   srv.URL,
		Token:     "secret",
		ChannelID: "42",
	})
	if err != nil {
		t.Fatal(err)
	}
	timer := &fakeTimer{}
	c.policy.Timer = timer
	return c, timer
}

func TestFetchAfter(t *testing.T) {
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/42/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bot secret" {
			t.Errorf("unexpected authorization header: %s", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("unexpected limit: %s", got)
		}
		if got := r.URL.Query().Get("after"); got != "100" {
			t.Errorf("unexpected after: %s", got)
		}
		fmt.Fprint(w, `[{"id":"102","content":"hi","embeds":[{"title":"t","fields":[{"name":"n","value":"v"}],"footer":{"text":"f"}}],"timestamp":"2024-01-01T00:00:00Z"},{"id":"101","content":"","embeds":[]}]`)
	})

	got, err := c.FetchAfter(context.Background(), "100", 50)
	if err != nil {
		t.Fatal(err)
	}
	want := []Message{
		{
			ID:      "102",
			Content: "hi",
			Embeds: []Embed{{
				Title:  "t",
				Fields: []Field{{Name: "n", Value: "v"}},
				Footer: &Footer{Text: "f"},
			}},
			Timestamp: "2024-01-01T00:00:00Z",
		},
		{ID: "101", Embeds: []Embed{}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got: %+v, want: %+v", got, want)
	}
	if len(timer.waits) != 0 {
		t.Errorf("unexpected waits: %v", timer.waits)
	}
}

func TestFetchAfterRateLimit(t *testing.T) {
	var calls int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"message":"You are being rate limited.","retry_after":0.5,"global":false}`)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{}`)
		default:
			fmt.Fprint(w, `[{"id":"7"}]`)
		}
	})

	got, err := c.FetchAfter(context.Background(), "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "7" {
		t.Errorf("unexpected messages: %+v", got)
	}
	want := []time.Duration{1500 * time.Millisecond, 6 * time.Second}
	if !reflect.DeepEqual(timer.waits, want) {
		t.Errorf("got waits: %v, want: %v", timer.waits, want)
	}
}

func TestFetchAfterExhausted(t *testing.T) {
	var calls int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `[{"id": broken`)
	})

	got, err := c.FetchAfter(context.Background(), "1", 10)
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("want exhausted error, got %v", err)
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Errorf("want transport error, got %T", err)
	}
	if got != nil {
		t.Errorf("want no messages, got %+v", got)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("want 3 attempts, got %d", n)
	}
	want := []time.Duration{3 * time.Second, 3 * time.Second}
	if !reflect.DeepEqual(timer.waits, want) {
		t.Errorf("got waits: %v, want: %v", timer.waits, want)
	}
}

func TestFetchAfterStatusError(t *testing.T) {
	var calls int32
	c, timer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Missing Access","code":50001}`)
	})

	_, err := c.FetchAfter(context.Background(), "", 10)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("want status error, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("want status 403, got %d", statusErr.StatusCode)
	}
	if errors.Is(err, retry.ErrExhausted) {
		t.Errorf("status error must not be reported as exhausted")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("want 1 attempt, got %d", n)
	}
	if len(timer.waits) != 0 {
		t.Errorf("unexpected waits: %v", timer.waits)
	}
}

func TestLatestID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "message", body: `[{"id":"999"}]`, want: "999"},
		{name: "empty channel", body: `[]`, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("limit"); got != "1" {
					t.Errorf("unexpected limit: %s", got)
				}
				if r.URL.Query().Has("after") {
					t.Errorf("unexpected after parameter")
				}
				fmt.Fprint(w, tt.body)
			})
			got, err := c.LatestID(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got: %q, want: %q", got, tt.want)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(log.Println, Config{ChannelID: "1"}); err == nil {
		t.Error("want error for missing token")
	}
	if _, err := New(log.Println, Config{Token: "x"}); err == nil {
		t.Error("want error for missing channel")
	}
}
