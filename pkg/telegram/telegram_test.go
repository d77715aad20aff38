package telegram

import (
	"errors"
	"testing"
)

func TestPrint(t *testing.T) {
	b := &Bot{messages: make(chan string, 2)}
	b.Print("hello", errors.New("boom"))
	b.Print("second")
	// Queue is full, must not block
	b.Print("dropped")

	want := []string{"hello boom", "second"}
	for _, w := range want {
		if got := <-b.messages; got != w {
			t.Errorf("got: %q, want: %q", got, w)
		}
	}
	select {
	case got := <-b.messages:
		t.Errorf("unexpected message %q", got)
	default:
	}
}
