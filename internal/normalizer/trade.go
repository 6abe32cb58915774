package normalizer

import (
	"strings"

	"exchangelink/models"
)

// NormalizeTrade maps a single raw trade. Sides other than buy/sell are
// reported as an empty string.
func NormalizeTrade(exchange, fallbackSymbol string, raw Raw) models.Trade {
	symbol := toString(raw["symbol"])
	if symbol == "" {
		symbol = fallbackSymbol
	}
	ts, _ := toInt64(raw["timestamp"])

	side := strings.ToLower(toString(raw["side"]))
	if side != "buy" && side != "sell" {
		side = ""
	}

	price := required(raw["price"])
	amount := required(raw["amount"])
	cost := optional(raw["cost"])
	if cost == nil {
		cost = derivedCost(raw["price"], raw["amount"])
	}

	return models.Trade{
		Exchange:     exchange,
		Symbol:       symbol,
		ID:           toString(raw["id"]),
		Timestamp:    ts,
		Side:         side,
		Price:        price,
		Amount:       amount,
		Cost:         cost,
		TakerOrMaker: toString(raw["takerOrMaker"]),
	}
}

// derivedCost is price*amount, or nil when either side is missing or the
// product leaves float64 range.
func derivedCost(priceRaw, amountRaw any) *float64 {
	p, ok := toDecimal(priceRaw)
	if !ok {
		return nil
	}
	a, ok := toDecimal(amountRaw)
	if !ok {
		return nil
	}
	return optional(p.Mul(a))
}

// NormalizeTrades maps a list of raw trades preserving order.
func NormalizeTrades(exchange, fallbackSymbol string, raw []Raw) []models.Trade {
	out := make([]models.Trade, 0, len(raw))
	for _, t := range raw {
		out = append(out, NormalizeTrade(exchange, fallbackSymbol, t))
	}
	return out
}
