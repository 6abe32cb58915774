package normalizer

import (
	"strings"

	"exchangelink/models"
)

// NormalizeMarket maps a raw market description. Active and spot default to
// true when the exchange omits them; the other type flags default to false.
func NormalizeMarket(exchange string, raw Raw) models.MarketSummary {
	base := strings.ToUpper(toString(raw["base"]))
	quote := strings.ToUpper(toString(raw["quote"]))
	symbol := toString(raw["symbol"])
	if symbol == "" && base != "" && quote != "" {
		symbol = base + "/" + quote
	}

	marketType := toString(raw["type"])
	if marketType == "" {
		marketType = "spot"
	}

	precision := toMap(raw["precision"])
	limits := toMap(raw["limits"])

	info := toMap(raw["info"])
	if info != nil {
		copied := make(map[string]any, len(info))
		for k, v := range info {
			copied[k] = v
		}
		info = copied
	}

	return models.MarketSummary{
		Exchange: exchange,
		Symbol:   symbol,
		Base:     base,
		Quote:    quote,
		Type:     marketType,
		Active:   toBool(raw["active"], true),
		Margin:   toBool(raw["margin"], false),
		Swap:     toBool(raw["swap"], false),
		Future:   toBool(raw["future"], false),
		Spot:     toBool(raw["spot"], true),
		Precision: models.MarketPrecision{
			Amount: optional(precision["amount"]),
			Price:  optional(precision["price"]),
		},
		Limits: models.MarketLimits{
			Amount: minMax(limits["amount"]),
			Price:  minMax(limits["price"]),
			Cost:   minMax(limits["cost"]),
		},
		Info: info,
	}
}

// NormalizeMarkets maps a list of raw markets preserving order.
func NormalizeMarkets(exchange string, raw []Raw) []models.MarketSummary {
	out := make([]models.MarketSummary, 0, len(raw))
	for _, m := range raw {
		out = append(out, NormalizeMarket(exchange, m))
	}
	return out
}

func minMax(v any) models.MinMax {
	m := toMap(v)
	return models.MinMax{Min: optional(m["min"]), Max: optional(m["max"])}
}
