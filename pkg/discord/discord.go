package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/igolaizola/aoreader/pkg/retry"
	"golang.org/x/time/rate"
)

const (
	DefaultURL = "https://discord.com/api/v10"

	maxAttempts      = 3
	rateLimitDefault = 5 * time.Second
	rateLimitPadding = 1 * time.Second
	transportWait    = 3 * time.Second
)

// RateLimitError is returned when the server answers with 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("discord: rate limited, retry after %s", e.RetryAfter)
}

// StatusError is returned for unsuccessful responses that aren't retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord: unexpected status %d: %s", e.StatusCode, e.Body)
}

// TransportError wraps connectivity, timeout and body decoding failures.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("discord: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL   string
	Token     string
	ChannelID string
	// RequestsPerSecond limits outgoing requests, zero means unlimited.
	RequestsPerSecond float64
	Timeout           time.Duration
	Debug             bool
}

type Client struct {
	client  *http.Client
	baseURL string
	token   string
	channel string
	limiter *rate.Limiter
	policy  retry.Policy
	log     func(v ...interface{})
	debug   bool
}

func New(log func(v ...interface{}), cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: missing token")
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("discord: missing channel id")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		channel: cfg.ChannelID,
		limiter: rate.NewLimiter(limit, 1),
		policy:  Policy(),
		log:     log,
		debug:   cfg.Debug,
	}, nil
}

// Policy returns the retry policy used for channel reads.
func Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Wait:        wait,
	}
}

func wait(err error) (time.Duration, bool) {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter + rateLimitPadding, true
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportWait, true
	}
	return 0, false
}

// FetchAfter returns up to limit messages posted after the given message id.
// An empty id returns the most recent messages. When every attempt fails
// with a retryable error the returned error wraps retry.ErrExhausted.
func (c *Client) FetchAfter(ctx context.Context, after string, limit int) ([]Message, error) {
	u := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, url.PathEscape(c.channel))
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if after != "" {
		q.Set("after", after)
	}
	u = u + "?" + q.Encode()

	var msgs []Message
	err := retry.Do(ctx, c.policy, func() error {
		var err error
		msgs, err = c.get(ctx, u)
		return err
	}, func(attempt int, err error, d time.Duration) {
		c.log(fmt.Sprintf("discord: attempt %d failed, retrying in %s: %v", attempt, d, err))
	})
	if err != nil {
		return nil, fmt.Errorf("discord: couldn't fetch messages after %q: %w", after, err)
	}
	return msgs, nil
}

// LatestID returns the id of the most recent message in the channel or an
// empty string if the channel is empty.
func (c *Client) LatestID(ctx context.Context) (string, error) {
	msgs, err := c.FetchAfter(ctx, "", 1)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", nil
	}
	return msgs[0].ID, nil
}

func (c *Client) get(ctx context.Context, u string) ([]Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("discord: couldn't create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "aoreader/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if c.debug {
		c.log("discord:", resp.StatusCode, string(body))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: retryAfter(body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var msgs []Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("couldn't decode messages: %w", err)}
	}
	return msgs, nil
}

func retryAfter(body []byte) time.Duration {
	var v struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &v); err != nil || v.RetryAfter == nil || *v.RetryAfter < 0 {
		return rateLimitDefault
	}
	return time.Duration(*v.RetryAfter * float64(time.Second))
}
