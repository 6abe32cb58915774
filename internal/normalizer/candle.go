package normalizer

import "exchangelink/models"

// NormalizeCandles maps [timestamp, open, high, low, close, volume] rows.
// Rows with fewer than six columns or without a timestamp are skipped.
func NormalizeCandles(exchange, symbol, timeframe string, raw [][]any) []models.Candle {
	out := make([]models.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		ts, ok := toInt64(row[0])
		if !ok {
			continue
		}
		out = append(out, models.Candle{
			Exchange:  exchange,
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: ts,
			Open:      required(row[1]),
			High:      required(row[2]),
			Low:       required(row[3]),
			Close:     required(row[4]),
			Volume:    required(row[5]),
		})
	}
	return out
}
