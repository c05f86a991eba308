package schema

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencySymbols maps currency symbols and names to ISO 4217 codes. Scanned
// in order, longest symbols first, so "us$" wins over the bare "$" it contains
// and resolution is the same on every run. A bare "$" resolves to the
// conventional code; anything unrecognized is an error rather than a default.
var currencySymbols = []struct {
	sym  string
	code string
}{
	{"us$", "USD"},
	{"chf", "CHF"},
	{"r$", "BRL"},
	{"c$", "CAD"},
	{"a$", "AUD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₩", "KRW"},
	{"₦", "NGN"},
}

// normalizeMoney decomposes a raw monetary value into amount + ISO 4217 code.
// Accepted shapes: a string like "$1,234.50" / "1234.50 USD" / "EUR 99", a bare
// number (currency from the hint), or an object {"amount": ..., "currency": ...}.
func normalizeMoney(raw any, spec FieldSpec, _ Options) (any, error) {
	switch v := raw.(type) {
	case string:
		return parseMoneyString(v, spec)
	case float64:
		if spec.CurrencyHint == "" {
			return nil, fieldErrf(spec, "bare amount %v with no resolvable currency", v)
		}
		return Money{Amount: decimal.NewFromFloat(v), Currency: strings.ToUpper(spec.CurrencyHint)}, nil
	case map[string]any:
		return parseMoneyObject(v, spec)
	default:
		return nil, fieldErrf(spec, "expected money, got %T", raw)
	}
}

func parseMoneyObject(m map[string]any, spec FieldSpec) (any, error) {
	amtRaw, ok := m["amount"]
	if !ok {
		return nil, fieldErrf(spec, "money object missing amount")
	}
	var amount decimal.Decimal
	switch a := amtRaw.(type) {
	case float64:
		amount = decimal.NewFromFloat(a)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(a))
		if err != nil {
			return nil, fieldErrf(spec, "invalid money amount %q", a)
		}
		amount = d
	default:
		return nil, fieldErrf(spec, "invalid money amount type %T", amtRaw)
	}

	cur, _ := m["currency"].(string)
	cur = strings.ToUpper(strings.TrimSpace(cur))
	if cur == "" {
		cur = strings.ToUpper(spec.CurrencyHint)
	}
	if len(cur) != 3 {
		return nil, fieldErrf(spec, "unresolved currency for amount %s", amount)
	}
	return Money{Amount: amount, Currency: cur}, nil
}

func parseMoneyString(s string, spec FieldSpec) (any, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fieldErrf(spec, "empty money value")
	}

	currency := ""

	// Explicit ISO code token, leading or trailing ("USD 12" / "12.50 EUR").
	fields := strings.Fields(s)
	if len(fields) > 1 {
		if code, ok := isoCode(fields[0]); ok {
			currency = code
			s = strings.Join(fields[1:], " ")
		} else if code, ok := isoCode(fields[len(fields)-1]); ok {
			currency = code
			s = strings.Join(fields[:len(fields)-1], " ")
		}
	}

	// Symbol prefix or suffix ("$1,234.50" / "99€").
	if currency == "" {
		ls := strings.ToLower(s)
		for _, e := range currencySymbols {
			if strings.HasPrefix(ls, e.sym) {
				currency = e.code
				s = s[len(e.sym):]
				break
			}
			if strings.HasSuffix(ls, e.sym) {
				currency = e.code
				s = s[:len(s)-len(e.sym)]
				break
			}
		}
	}

	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(spec.CurrencyHint))
	}
	if len(currency) != 3 {
		return nil, fieldErrf(spec, "unresolved currency in %q", orig)
	}

	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fieldErrf(spec, "invalid money amount in %q", orig)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// isoCode reports whether tok looks like a 3-letter ISO 4217 code.
func isoCode(tok string) (string, bool) {
	tok = strings.TrimSpace(tok)
	if len(tok) != 3 {
		return "", false
	}
	for _, r := range tok {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return "", false
		}
	}
	return strings.ToUpper(tok), true
}
