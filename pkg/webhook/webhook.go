// Package webhook hands parsed signals off to an external trade processor
// over HTTP. The fingerprint travels both in the body and in the
// Idempotency-Key header so the receiver can discard repeated deliveries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/igolaizola/aoreader/pkg/signal"
)

type payload struct {
	Fingerprint string         `json:"fingerprint"`
	Signal      *signal.Signal `json:"signal"`
}

type Handler struct {
	client *http.Client
	url    string
}

func New(url string, timeout time.Duration) *Handler {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Handler{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

func (h *Handler) Handle(ctx context.Context, sig *signal.Signal, fingerprint string) error {
	byt, err := json.Marshal(&payload{Fingerprint: fingerprint, Signal: sig})
	if err != nil {
		return fmt.Errorf("webhook: couldn't encode signal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(byt))
	if err != nil {
		return fmt.Errorf("webhook: couldn't create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", fingerprint)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: couldn't post signal %s: %w", fingerprint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, body)
	}
	return nil
}
