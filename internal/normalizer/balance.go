package normalizer

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"exchangelink/models"
)

var balanceMetaKeys = map[string]struct{}{
	"info": {}, "timestamp": {}, "datetime": {}, "free": {}, "used": {}, "total": {},
}

// NormalizeBalances maps a raw balance into one record per currency, sorted
// by currency. Two layouts are accepted: {"total": {C: n}, "free": {..},
// "used": {..}} and {C: {"free": .., "used": .., "total": ..}}.
//
// A currency appears only when its total is present. A missing used is
// derived as max(0, total-free); a missing free as max(0, total-used), or 0
// when neither is known.
func NormalizeBalances(exchange string, raw Raw, timestamp int64) []models.Balance {
	type parts struct{ free, used, total any }
	byCurrency := map[string]*parts{}
	get := func(c string) *parts {
		p, ok := byCurrency[c]
		if !ok {
			p = &parts{}
			byCurrency[c] = p
		}
		return p
	}

	for c, v := range toMap(raw["total"]) {
		get(c).total = v
	}
	for c, v := range toMap(raw["free"]) {
		get(c).free = v
	}
	for c, v := range toMap(raw["used"]) {
		get(c).used = v
	}
	for c, v := range raw {
		if _, meta := balanceMetaKeys[c]; meta {
			continue
		}
		m := toMap(v)
		if m == nil {
			continue
		}
		p := get(c)
		if p.total == nil {
			p.total = m["total"]
		}
		if p.free == nil {
			p.free = m["free"]
		}
		if p.used == nil {
			p.used = m["used"]
		}
	}

	currencies := make([]string, 0, len(byCurrency))
	for c := range byCurrency {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	out := make([]models.Balance, 0, len(currencies))
	for _, c := range currencies {
		p := byCurrency[c]
		total, ok := toDecimal(p.total)
		if !ok {
			continue
		}
		free, freeOK := toDecimal(p.free)
		used, usedOK := toDecimal(p.used)

		switch {
		case freeOK && !usedOK:
			used = decimal.Max(decimal.Zero, total.Sub(free))
		case !freeOK && usedOK:
			free = decimal.Max(decimal.Zero, total.Sub(used))
		case !freeOK && !usedOK:
			free, used = decimal.Zero, decimal.Zero
		}

		out = append(out, models.Balance{
			Exchange:  exchange,
			Currency:  c,
			Free:      finite(free),
			Used:      finite(used),
			Total:     finite(total),
			Timestamp: timestamp,
		})
	}
	return out
}

func finite(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
