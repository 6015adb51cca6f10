package transform

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount parses a raw monetary value and standardizes it to two
// decimal places, rounding half away from zero. Accepts nil, numeric types,
// decimal.Decimal, or strings with either "," or "." as decimal separator.
// Invalid input yields zero; callers must not treat zero as "present".
func NormalizeAmount(raw any) decimal.Decimal {
	return NormalizeAmountDefault(raw, decimal.Zero)
}

// NormalizeAmountDefault is NormalizeAmount with a caller-specified fallback
// for nil/invalid input.
func NormalizeAmountDefault(raw any, def decimal.Decimal) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return def.Round(2)
	case decimal.Decimal:
		return v.Round(2)
	case float64:
		return decimal.NewFromFloat(v).Round(2)
	case float32:
		return decimal.NewFromFloat32(v).Round(2)
	case int:
		return decimal.NewFromInt(int64(v)).Round(2)
	case int64:
		return decimal.NewFromInt(v).Round(2)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return def.Round(2)
		}
		// Locale-tolerant: a lone comma acts as the decimal separator.
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return def.Round(2)
		}
		return d.Round(2)
	default:
		return def.Round(2)
	}
}
