package normalizer

import "exchangelink/models"

// NormalizeOrderBook maps a raw book. Levels are kept in exchange order and
// are never re-sorted. A level is either [price, amount, ...] or
// {"price": .., "amount": ..}. A level with a missing or non-finite price or
// amount is kept with 0 in that column.
func NormalizeOrderBook(exchange, fallbackSymbol string, raw Raw) models.OrderBook {
	symbol := toString(raw["symbol"])
	if symbol == "" {
		symbol = fallbackSymbol
	}
	return models.OrderBook{
		Exchange:  exchange,
		Symbol:    symbol,
		Bids:      normalizeLevels(raw["bids"]),
		Asks:      normalizeLevels(raw["asks"]),
		Timestamp: optionalInt(raw["timestamp"]),
		Nonce:     optionalInt(raw["nonce"]),
	}
}

func normalizeLevels(v any) []models.PriceLevel {
	levels := make([]models.PriceLevel, 0)
	list, ok := v.([]any)
	if !ok {
		return levels
	}
	for _, item := range list {
		var priceRaw, amountRaw any
		switch lvl := item.(type) {
		case []any:
			if len(lvl) < 2 {
				continue
			}
			priceRaw, amountRaw = lvl[0], lvl[1]
		case []string:
			if len(lvl) < 2 {
				continue
			}
			priceRaw, amountRaw = lvl[0], lvl[1]
		case map[string]any:
			priceRaw, amountRaw = lvl["price"], first(lvl, "amount", "size", "quantity")
		default:
			continue
		}
		levels = append(levels, models.PriceLevel{Price: required(priceRaw), Amount: required(amountRaw)})
	}
	return levels
}
