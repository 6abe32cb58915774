package symbols

import (
	"fmt"
	"strings"
)

// Split breaks a unified symbol such as "BTC/USDT" into base and quote.
// A settlement suffix ("BTC/USDT:USDT") is ignored.
func Split(unified string) (base, quote string, err error) {
	sym := strings.ToUpper(strings.TrimSpace(unified))
	if i := strings.Index(sym, ":"); i >= 0 {
		sym = sym[:i]
	}
	parts := strings.Split(sym, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("symbol %q is not in BASE/QUOTE form", unified)
	}
	return parts[0], parts[1], nil
}

// Join builds the unified symbol for a base/quote pair.
func Join(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// ToExchange converts a unified symbol to the exchange's native identifier.
// Currently supported exchanges: binance, bybit, kucoin (futures).
func ToExchange(exchange, unified string) (string, error) {
	base, quote, err := Split(unified)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(exchange) {
	case "binance", "bybit":
		return base + quote, nil
	case "kucoin":
		if base == "BTC" {
			base = "XBT"
		}
		return base + quote + "M", nil
	default:
		return "", fmt.Errorf("no symbol mapping for exchange %q", exchange)
	}
}

// ToUnified converts a native base/quote pair reported by the exchange into
// the unified symbol.
func ToUnified(exchange, base, quote string) string {
	if strings.EqualFold(exchange, "kucoin") && strings.EqualFold(base, "XBT") {
		base = "BTC"
	}
	return Join(base, quote)
}
