package aoreader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/igolaizola/aoreader/pkg/discord"
	"github.com/igolaizola/aoreader/pkg/logger"
	"github.com/igolaizola/aoreader/pkg/metrics"
	"github.com/igolaizola/aoreader/pkg/retry"
	"github.com/igolaizola/aoreader/pkg/signal"
	"github.com/igolaizola/aoreader/pkg/store"
	"github.com/igolaizola/aoreader/pkg/store/bolt"
	"github.com/igolaizola/aoreader/pkg/telegram"
	"github.com/igolaizola/aoreader/pkg/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var version = "v261018a"

// Fetcher reads batches of messages from the signal channel.
type Fetcher interface {
	FetchAfter(ctx context.Context, after string, limit int) ([]discord.Message, error)
	LatestID(ctx context.Context) (string, error)
}

// Handler receives every new signal together with its fingerprint.
type Handler interface {
	Handle(ctx context.Context, sig *signal.Signal, fingerprint string) error
}

type HandlerFunc func(ctx context.Context, sig *signal.Signal, fingerprint string) error

func (f HandlerFunc) Handle(ctx context.Context, sig *signal.Signal, fingerprint string) error {
	return f(ctx, sig, fingerprint)
}

type Config struct {
	DBPath            string
	DiscordURL        string
	DiscordToken      string
	DiscordChannel    string
	RequestsPerSecond float64
	Quote             string
	Limit             int
	Interval          time.Duration
	MaxAge            time.Duration
	TelegramToken     string
	TelegramChat      int64
	Webhook           string
	MetricsAddr       string
	Debug             bool
}

type Bot struct {
	runs     []func(context.Context) error
	closers  []func() error
	cancel   context.CancelFunc
	log      func(v ...interface{})
	fetcher  Fetcher
	store    store.Store
	handlers []Handler
	metrics  *metrics.Metrics
	quote    string
	limit    int
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	lock     sync.Mutex
	last     *store.Record
}

func NewBot(cfg Config, l zerolog.Logger) (*Bot, error) {
	log := logger.Print(l)

	var tgbot *telegram.Bot
	if cfg.TelegramToken != "" {
		var err error
		tgbot, err = telegram.New(cfg.TelegramToken, cfg.TelegramChat)
		if err != nil {
			return nil, fmt.Errorf("aoreader: couldn't create telegram bot: %w", err)
		}
		log = logger.Tee(log, tgbot.Print)
	}

	client, err := discord.New(log, discord.Config{
		BaseURL:           cfg.DiscordURL,
		Token:             cfg.DiscordToken,
		ChannelID:         cfg.DiscordChannel,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Debug:             cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("aoreader: couldn't create discord client: %w", err)
	}

	db, err := bolt.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("aoreader: couldn't create db: %w", err)
	}

	registry := prometheus.NewRegistry()
	var handlers []Handler
	if cfg.Webhook != "" {
		handlers = append(handlers, webhook.New(cfg.Webhook, 0))
	}

	b := newBot(log, client, db, metrics.New(registry), handlers, cfg)
	b.closers = append(b.closers, db.Close)
	if tgbot != nil {
		b.runs = append(b.runs, tgbot.Run)
		tgbot.HandleCommand("status", func(_ string) {
			b.log(b.status())
		})
		tgbot.HandleCommand("shutdown", func(_ string) {
			b.log("shutting down")
			b.shutdown()
		})
	}
	if cfg.MetricsAddr != "" {
		b.runs = append(b.runs, serveMetrics(cfg.MetricsAddr, registry))
	}
	return b, nil
}

func newBot(log func(v ...interface{}), f Fetcher, st store.Store, m *metrics.Metrics, handlers []Handler, cfg Config) *Bot {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 50
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Bot{
		cancel:   func() {},
		log:      log,
		fetcher:  f,
		store:    st,
		handlers: handlers,
		metrics:  m,
		quote:    strings.ToUpper(cfg.Quote),
		limit:    limit,
		interval: interval,
		maxAge:   cfg.MaxAge,
		now:      time.Now,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.lock.Lock()
	b.cancel = cancel
	b.lock.Unlock()
	defer cancel()

	var wg sync.WaitGroup
	for _, run := range b.runs {
		run := run
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				b.log(err)
			}
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
		for _, c := range b.closers {
			if err := c(); err != nil {
				b.log(err)
			}
		}
	}()

	b.log(fmt.Sprintf("🤖 aoreader running\n- version: %s\n- quote: %s", version, b.quote))
	defer b.log("🛑 aoreader stopped")

	tick, update := ticker(b.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		}
		tick = update
		if _, err := b.Poll(ctx); err != nil && ctx.Err() == nil {
			b.log(err)
		}
	}
}

// Poll runs a single polling round and returns the number of signals handed
// off. On first use the cursor is placed at the latest channel message so
// older announcements aren't replayed.
func (b *Bot) Poll(ctx context.Context) (int, error) {
	cursor, err := b.store.Cursor()
	if err != nil {
		return 0, fmt.Errorf("aoreader: couldn't get cursor: %w", err)
	}
	if cursor == "" {
		return 0, b.resume(ctx)
	}

	msgs, err := b.fetcher.FetchAfter(ctx, cursor, b.limit)
	switch {
	case errors.Is(err, retry.ErrExhausted):
		b.metrics.FetchErrors.WithLabelValues("exhausted").Inc()
		b.log(fmt.Sprintf("⚠️ couldn't read channel, will retry on next poll: %v", err))
		return 0, nil
	case err != nil:
		b.metrics.FetchErrors.WithLabelValues("fatal").Inc()
		return 0, fmt.Errorf("aoreader: couldn't fetch messages: %w", err)
	}

	sort.Slice(msgs, func(i, j int) bool {
		return discord.Less(msgs[i].ID, msgs[j].ID)
	})
	var n int
	for _, m := range msgs {
		ok, err := b.process(ctx, m)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
		if err := b.store.SetCursor(m.ID); err != nil {
			return n, fmt.Errorf("aoreader: couldn't set cursor: %w", err)
		}
	}
	return n, nil
}

func (b *Bot) resume(ctx context.Context) error {
	latest, err := b.fetcher.LatestID(ctx)
	if err != nil {
		return fmt.Errorf("aoreader: couldn't get latest message: %w", err)
	}
	// An empty channel is read from the beginning
	if latest == "" {
		latest = "0"
	}
	if err := b.store.SetCursor(latest); err != nil {
		return fmt.Errorf("aoreader: couldn't set cursor: %w", err)
	}
	b.log(fmt.Sprintf("⏩ reading messages after %s", latest))
	return nil
}

func (b *Bot) process(ctx context.Context, m discord.Message) (bool, error) {
	b.metrics.Messages.Inc()
	if ts, ok := discord.Timestamp(m); ok && b.maxAge > 0 && b.now().Sub(ts) > b.maxAge {
		b.metrics.Rejected.WithLabelValues("stale").Inc()
		return false, nil
	}

	sig, err := signal.Parse(discord.Text(m), b.quote)
	switch {
	case errors.Is(err, signal.ErrNotSignal):
		b.metrics.Rejected.WithLabelValues("not_signal").Inc()
		return false, nil
	case errors.Is(err, signal.ErrQuote):
		b.metrics.Rejected.WithLabelValues("quote").Inc()
		b.log(fmt.Sprintf("message %s ignored: %v", m.ID, err))
		return false, nil
	case err != nil:
		b.metrics.Rejected.WithLabelValues("invalid").Inc()
		b.log(fmt.Sprintf("⚠️ message %s ignored: %v", m.ID, err))
		return false, nil
	}

	fp := sig.Hash()
	seen, err := b.store.Seen(fp)
	if err != nil {
		return false, fmt.Errorf("aoreader: couldn't check fingerprint: %w", err)
	}
	if seen {
		b.metrics.Duplicates.Inc()
		b.log(fmt.Sprintf("♻️ %s %s already processed (%s)", sig.Symbol, sig.Side, fp))
		return false, nil
	}

	// The record is saved before the handoff so a signal is never processed twice
	r := &store.Record{
		Fingerprint: fp,
		MessageID:   m.ID,
		Time:        b.now().UTC(),
		Signal:      sig,
	}
	if err := b.store.Save(r); err != nil {
		return false, fmt.Errorf("aoreader: couldn't save signal %s: %w", fp, err)
	}
	b.lock.Lock()
	b.last = r
	b.lock.Unlock()

	b.log(describe(sig, fp))
	for _, h := range b.handlers {
		if err := h.Handle(ctx, sig, fp); err != nil {
			b.metrics.HandoffErrs.Inc()
			b.log(fmt.Errorf("aoreader: couldn't hand off %s: %w", fp, err))
		}
	}
	b.metrics.Signals.Inc()
	return true, nil
}

func (b *Bot) status() string {
	sb := &strings.Builder{}
	cursor, err := b.store.Cursor()
	if err != nil {
		cursor = err.Error()
	}
	fmt.Fprintf(sb, "cursor: %s\n", cursor)

	now := b.now().UTC()
	records, err := b.store.List(now.Add(-24*time.Hour), now)
	if err != nil {
		fmt.Fprintf(sb, "signals: %v\n", err)
	} else {
		fmt.Fprintf(sb, "signals (24h): %d\n", len(records))
	}

	b.lock.Lock()
	last := b.last
	b.lock.Unlock()
	if last == nil {
		sb.WriteString("last: none")
	} else {
		fmt.Fprintf(sb, "last: %s %s %s ago", last.Signal.Symbol, last.Signal.Side, now.Sub(last.Time).Round(time.Second))
	}
	return sb.String()
}

func (b *Bot) shutdown() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.cancel()
}

func describe(sig *signal.Signal, fp string) string {
	emoji := "🟢"
	if sig.Side == signal.Sell {
		emoji = "🔴"
	}
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%s %s %s\n", emoji, sig.Symbol, sig.Side)
	fmt.Fprintf(sb, "entry: %s\n", sig.Trigger)
	fmt.Fprintf(sb, "targets: %s\n", join(sig.Targets))
	if len(sig.DCA) > 0 {
		fmt.Fprintf(sb, "dca: %s\n", join(sig.DCA))
	}
	if sig.StopLoss.Valid {
		fmt.Fprintf(sb, "stop loss: %s\n", sig.StopLoss.Decimal)
	}
	fmt.Fprintf(sb, "fingerprint: %s", fp)
	return sb.String()
}

func join(prices []decimal.Decimal) string {
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func serveMetrics(addr string, registry *prometheus.Registry) func(context.Context) error {
	return func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("aoreader: metrics server failed: %w", err)
		}
		return nil
	}
}

func ticker(wait time.Duration) (<-chan time.Time, <-chan time.Time) {
	// Don't wait ticker time on first run
	closedTick := make(chan time.Time)
	close(closedTick)
	tick := (<-chan time.Time)(closedTick)
	ticker := time.NewTicker(wait)
	return tick, ticker.C
}
