package symbols

import "testing"

func TestToExchange(t *testing.T) {
	tests := []struct {
		exchange string
		in       string
		want     string
	}{
		{"binance", "BTC/USDT", "BTCUSDT"},
		{"bybit", "eth/usdt", "ETHUSDT"},
		{"kucoin", "BTC/USDT", "XBTUSDTM"},
		{"kucoin", "ETH/USDT:USDT", "ETHUSDTM"},
	}
	for _, tt := range tests {
		got, err := ToExchange(tt.exchange, tt.in)
		if err != nil {
			t.Fatalf("ToExchange(%s,%s) error: %v", tt.exchange, tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ToExchange(%s,%s)=%s want %s", tt.exchange, tt.in, got, tt.want)
		}
	}
}

func TestToExchangeRejects(t *testing.T) {
	for _, in := range []string{"BTCUSDT", "/USDT", "BTC/", ""} {
		if _, err := ToExchange("binance", in); err == nil {
			t.Errorf("ToExchange(binance,%q) expected error", in)
		}
	}
	if _, err := ToExchange("unknown", "BTC/USDT"); err == nil {
		t.Errorf("expected error for unknown exchange")
	}
}

func TestToUnified(t *testing.T) {
	if got := ToUnified("kucoin", "XBT", "USDT"); got != "BTC/USDT" {
		t.Errorf("ToUnified kucoin = %s", got)
	}
	if got := ToUnified("binance", "eth", "btc"); got != "ETH/BTC" {
		t.Errorf("ToUnified binance = %s", got)
	}
}

func TestNormalizeKucoinSymbol(t *testing.T) {
	if got := NormalizeKucoinSymbol("XBT-USDTM"); got != "BTCUSDT" {
		t.Errorf("NormalizeKucoinSymbol = %s", got)
	}
}
