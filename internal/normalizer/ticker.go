package normalizer

import "exchangelink/models"

// NormalizeTicker maps a raw ticker. Last falls back to close; the symbol in
// the payload wins over fallbackSymbol.
func NormalizeTicker(exchange, fallbackSymbol string, raw Raw) models.Ticker {
	symbol := toString(raw["symbol"])
	if symbol == "" {
		symbol = fallbackSymbol
	}
	ts, _ := toInt64(raw["timestamp"])

	return models.Ticker{
		Exchange:       exchange,
		Symbol:         symbol,
		Timestamp:      ts,
		Last:           required(first(raw, "last", "close")),
		Bid:            optional(raw["bid"]),
		Ask:            optional(raw["ask"]),
		BidVolume:      optional(raw["bidVolume"]),
		AskVolume:      optional(raw["askVolume"]),
		Open24h:        optional(raw["open"]),
		High24h:        optional(raw["high"]),
		Low24h:         optional(raw["low"]),
		Volume24h:      optional(raw["baseVolume"]),
		QuoteVolume24h: optional(raw["quoteVolume"]),
		Change24h:      optional(raw["change"]),
		Percentage24h:  optional(raw["percentage"]),
		VWAP:           optional(raw["vwap"]),
	}
}
