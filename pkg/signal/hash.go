package signal

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Hash returns the fingerprint of the trade defining fields of the signal:
// symbol, side, trigger, targets and DCA. Stop loss and raw text are not
// part of it.
//
// Prices are rendered as shortest round-trip floats ("42500.0", "0.0174",
// "1e-05") so fingerprints stay compatible with the ones already recorded
// by the previous bot deployment.
func (s *Signal) Hash() string {
	core := strings.Join([]string{
		s.Symbol,
		string(s.Side),
		formatPrice(s.Trigger),
		formatList(s.Targets),
		formatList(s.DCA),
	}, "|")
	sum := md5.Sum([]byte(core))
	return hex.EncodeToString(sum[:])
}

func formatList(prices []decimal.Decimal) string {
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = formatPrice(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatPrice uses fixed notation for exponents in [-4, 16) and scientific
// notation otherwise. Fixed notation always carries a fractional part.
func formatPrice(d decimal.Decimal) string {
	f, _ := d.Float64()
	s := strconv.FormatFloat(f, 'e', -1, 64)

	var sign string
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	mantissa, exponent, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(exponent)
	digits := strings.Replace(mantissa, ".", "", 1)

	if exp < -4 || exp >= 16 {
		m := digits[:1]
		if len(digits) > 1 {
			m += "." + digits[1:]
		}
		expSign := "+"
		if exp < 0 {
			expSign, exp = "-", -exp
		}
		e := strconv.Itoa(exp)
		if len(e) < 2 {
			e = "0" + e
		}
		return sign + m + "e" + expSign + e
	}

	if exp < 0 {
		return sign + "0." + strings.Repeat("0", -exp-1) + digits
	}
	if len(digits) <= exp+1 {
		return sign + digits + strings.Repeat("0", exp+1-len(digits)) + ".0"
	}
	return sign + digits[:exp+1] + "." + digits[exp+1:]
}
