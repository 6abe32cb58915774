package exchange

import (
	"encoding/json"

	"exchangelink/internal/errs"
	"exchangelink/internal/normalizer"
)

// remarshal decodes an SDK response into out through its JSON form, so the
// adapters only depend on the wire field names.
func remarshal(exchange string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errs.Format("%s: encoding response: %v", exchange, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errs.Format("%s: decoding response: %v", exchange, err)
	}
	return nil
}

func rawOf(exchange string, in any) (normalizer.Raw, error) {
	var out normalizer.Raw
	if err := remarshal(exchange, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func rawListOf(exchange string, in any) ([]normalizer.Raw, error) {
	var out []normalizer.Raw
	if err := remarshal(exchange, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// balanceSheet collects per-currency amounts into the total/free/used maps
// layout.
type balanceSheet struct {
	total map[string]any
	free  map[string]any
	used  map[string]any
}

func newBalanceSheet() *balanceSheet {
	return &balanceSheet{total: map[string]any{}, free: map[string]any{}, used: map[string]any{}}
}

func (b *balanceSheet) set(currency string, total, free, used any) {
	if currency == "" || total == nil || total == "" {
		return
	}
	b.total[currency] = total
	if free != nil && free != "" {
		b.free[currency] = free
	}
	if used != nil && used != "" {
		b.used[currency] = used
	}
}

func (b *balanceSheet) raw() normalizer.Raw {
	return normalizer.Raw{"total": b.total, "free": b.free, "used": b.used}
}
