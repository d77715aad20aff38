package signal

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Signal is a new trade announced in the signal channel.
type Signal struct {
	Base     string              `json:"base"`
	Symbol   string              `json:"symbol"`
	Side     Side                `json:"side"`
	Trigger  decimal.Decimal     `json:"trigger"`
	Targets  []decimal.Decimal   `json:"tp_prices"`
	DCA      []decimal.Decimal   `json:"dca_prices"`
	StopLoss decimal.NullDecimal `json:"sl_price"`
	Raw      string              `json:"raw"`
}

var (
	// ErrNotSignal is returned for text that doesn't announce a new trade.
	ErrNotSignal = errors.New("signal: not a new signal")
	// ErrInvalid is returned for announcements missing mandatory fields.
	ErrInvalid = errors.New("signal: invalid signal")
	// ErrQuote is returned for signals quoted in another currency.
	ErrQuote = errors.New("signal: unsupported quote")
)

const (
	rawLength = 500
	num       = `([0-9][0-9,]*(?:\.[0-9]+)?)`
)

var (
	newSignal = regexp.MustCompile(`(?i)NEW SIGNAL|NEW TRADE SIGNAL|(?:LONG|SHORT)\s+SIGNAL|Trade\s+Signal`)
	cancelled = regexp.MustCompile(`(?i)TRADE CANCELLED|TRADE CLOSED`)
	closed    = regexp.MustCompile(`(?i)⏳\s*closed`)
	market    = regexp.MustCompile(`(?i)(LONG|SHORT)\s+SIGNAL\s*[-–—]\s*([A-Z0-9]+)\s*/\s*([A-Z0-9]+)`)
	entry     = regexp.MustCompile(`(?i)Entry[:\s]*\$?` + num)
	target    = regexp.MustCompile(`(?i)TP(\d+)[:\s]*\$?` + num)
	dca       = regexp.MustCompile(`(?i)DCA\s*#?\s*1?(?:\s*:\s*|\s+)\$?` + num)
	stopLoss  = regexp.MustCompile(`(?i)Stop\s*Loss[:\s]*\$?` + num)
)

// Parse extracts a new trade signal from text. Signals quoted in a currency
// other than quote are rejected. A nil signal is always returned together
// with an error wrapping ErrNotSignal, ErrInvalid or ErrQuote.
func Parse(text, quote string) (*Signal, error) {
	if !newSignal.MatchString(text) {
		return nil, ErrNotSignal
	}
	if cancelled.MatchString(text) || closed.MatchString(text) {
		return nil, fmt.Errorf("%w: trade cancelled or closed", ErrNotSignal)
	}

	m := market.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("%w: side and market not found", ErrInvalid)
	}
	sideWord := strings.ToUpper(m[1])
	base := strings.ToUpper(m[2])
	quote = strings.ToUpper(quote)
	if found := strings.ToUpper(m[3]); found != quote {
		return nil, fmt.Errorf("%w: %s", ErrQuote, found)
	}
	side := Buy
	if sideWord == "SHORT" {
		side = Sell
	}

	trigger, ok := first(entry, text)
	if !ok || !trigger.IsPositive() {
		return nil, fmt.Errorf("%w: entry price not found", ErrInvalid)
	}

	targets := profitTargets(text)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: profit targets not found", ErrInvalid)
	}

	sig := &Signal{
		Base:    base,
		Symbol:  base + quote,
		Side:    side,
		Trigger: trigger,
		Targets: targets,
		DCA:     []decimal.Decimal{},
		Raw:     truncate(text, rawLength),
	}
	if price, ok := first(dca, text); ok && price.IsPositive() {
		sig.DCA = append(sig.DCA, price)
	}
	if price, ok := first(stopLoss, text); ok && price.IsPositive() {
		sig.StopLoss = decimal.NewNullDecimal(price)
	}
	return sig, nil
}

// profitTargets returns the TP prices ordered by rank. Every rank with a positive
// price is kept, missing ranks are skipped and repeated ranks keep the last
// price.
func profitTargets(text string) []decimal.Decimal {
	prices := map[int]decimal.Decimal{}
	for _, m := range target.FindAllStringSubmatch(text, -1) {
		rank, err := strconv.Atoi(m[1])
		if err != nil || rank < 1 {
			continue
		}
		price, ok := parsePrice(m[2])
		if !ok {
			continue
		}
		prices[rank] = price
	}
	ranks := make([]int, 0, len(prices))
	for rank := range prices {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)

	var tps []decimal.Decimal
	for _, rank := range ranks {
		if price := prices[rank]; price.IsPositive() {
			tps = append(tps, price)
		}
	}
	return tps
}

func first(re *regexp.Regexp, text string) (decimal.Decimal, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return decimal.Decimal{}, false
	}
	return parsePrice(m[1])
}

func parsePrice(s string) (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
