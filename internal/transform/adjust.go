package transform

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kainotomo/invoice-bridge/internal/models"
)

// Adjuster rescales line items whose sum disagrees with the reconciled
// subtotal. ShiftFactor controls the misplaced-decimal heuristic: a line
// total exceeding target*ShiftFactor is treated as an OCR decimal-shift
// artifact and every rate is divided by 100 before proportional scaling.
type Adjuster struct {
	Tolerance   decimal.Decimal
	ShiftFactor decimal.Decimal
}

// NewAdjuster returns an adjuster with the given tolerance and shift factor.
func NewAdjuster(tolerance, shiftFactor float64) *Adjuster {
	return &Adjuster{
		Tolerance:   decimal.NewFromFloat(tolerance),
		ShiftFactor: decimal.NewFromFloat(shiftFactor),
	}
}

// Adjust reconciles line items against the target subtotal. Within tolerance
// it is a no-op. Otherwise it applies, in order: the decimal-shift heuristic,
// proportional rescaling of every rate, and absorption of the remaining
// residual into the largest line. Post-adjustment the item amounts sum to
// target exactly, not merely within tolerance.
func (a *Adjuster) Adjust(items []models.LineItem, target decimal.Decimal, contextID string) []models.LineItem {
	if len(items) == 0 || !target.IsPositive() {
		return items
	}

	lineTotal := sumLineTotal(items)
	if lineTotal.Sub(target).Abs().LessThanOrEqual(a.Tolerance) {
		return items
	}

	if lineTotal.GreaterThan(target.Mul(a.ShiftFactor)) {
		hundred := decimal.NewFromInt(100)
		for i := range items {
			items[i].Rate = items[i].Rate.Div(hundred)
			items[i].Amount = items[i].Quantity.Mul(items[i].Rate).Round(2)
		}
		lineTotal = sumLineTotal(items)
		log.Warn().
			Str("invoice", contextID).
			Str("target", target.StringFixed(2)).
			Msg("applied decimal-shift correction to line items")
	}

	if lineTotal.Sub(target).Abs().GreaterThan(a.Tolerance) && !lineTotal.IsZero() {
		ratio := target.Div(lineTotal)
		for i := range items {
			items[i].Rate = items[i].Rate.Mul(ratio)
			items[i].Amount = items[i].Quantity.Mul(items[i].Rate).Round(2)
		}
		log.Debug().
			Str("invoice", contextID).
			Str("ratio", ratio.String()).
			Msg("rescaled line items to match reconciled subtotal")
	}

	// Absorb the penny-level residual into the largest line so the sum is
	// exact. Rate is rederived to keep qty*rate consistent with amount.
	residual := target.Sub(sumAmounts(items))
	if !residual.IsZero() {
		idx := largestAmountIndex(items)
		items[idx].Amount = items[idx].Amount.Add(residual)
		if !items[idx].Quantity.IsZero() {
			items[idx].Rate = items[idx].Amount.Div(items[idx].Quantity)
		}
	}

	return items
}

func sumLineTotal(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Quantity.Mul(it.Rate).Round(2))
	}
	return total
}

func sumAmounts(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

func largestAmountIndex(items []models.LineItem) int {
	idx := 0
	for i, it := range items {
		if it.Amount.Abs().GreaterThan(items[idx].Amount.Abs()) {
			idx = i
		}
	}
	return idx
}
