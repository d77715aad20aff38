package signal

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "with dca", msg: withDCA, want: "353a89e0c261f35f72e8dd19436caf0e"},
		{name: "without dca", msg: withoutDCA, want: "56bb4a6818dbe172a069442c5a1d0d13"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			sig, err := Parse(tt.msg, "USDT")
			if err != nil {
				t.Fatal(err)
			}
			if got := sig.Hash(); got != tt.want {
				t.Errorf("got: %s, want: %s", got, tt.want)
			}
		})
	}
}

func TestHashIgnoresStopLossAndRaw(t *testing.T) {
	sig, err := Parse(withDCA, "USDT")
	if err != nil {
		t.Fatal(err)
	}
	want := sig.Hash()

	other := *sig
	other.StopLoss = decimal.NewNullDecimal(toDecimal("0.02"))
	other.Raw = "something else"
	if got := other.Hash(); got != want {
		t.Errorf("stop loss or raw changed the hash: %s != %s", got, want)
	}
	other.StopLoss = decimal.NullDecimal{}
	if got := other.Hash(); got != want {
		t.Errorf("missing stop loss changed the hash: %s != %s", got, want)
	}

	other.Trigger = toDecimal("0.0175")
	if got := other.Hash(); got == want {
		t.Errorf("trigger didn't change the hash")
	}
}

func TestHashEquivalentPrices(t *testing.T) {
	a := &Signal{Symbol: "BTCUSDT", Side: Buy, Trigger: toDecimal("42500.00"), Targets: []decimal.Decimal{toDecimal("43000")}}
	b := &Signal{Symbol: "BTCUSDT", Side: Buy, Trigger: toDecimal("42500"), Targets: []decimal.Decimal{toDecimal("43000.000")}, DCA: []decimal.Decimal{}}
	if a.Hash() != b.Hash() {
		t.Errorf("equal prices with different scale produced different hashes")
	}
	if len(a.Hash()) != 32 {
		t.Errorf("want 32 hex characters, got %d", len(a.Hash()))
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.0"},
		{"0.01740", "0.0174"},
		{"42500.00", "42500.0"},
		{"123.456", "123.456"},
		{"0.0001", "0.0001"},
		{"0.00001", "1e-05"},
		{"0.000012345", "1.2345e-05"},
		{"10000000000000000", "1e+16"},
		{"1234567890123456", "1234567890123456.0"},
		{"-2.5", "-2.5"},
	}
	for _, tt := range tests {
		if got := formatPrice(toDecimal(tt.in)); got != tt.want {
			t.Errorf("formatPrice(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
