package transform

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kainotomo/invoice-bridge/internal/models"
)

// FieldConfidence carries the provider's confidence score for each of the
// four related totals.
type FieldConfidence struct {
	Subtotal   float64
	Tax        float64
	Discount   float64
	GrandTotal float64
}

// recomputePreference breaks confidence ties: when two candidate fields share
// the lowest confidence, the earlier entry is the one recomputed. The most
// derived field (grand total) goes first, the most primary (subtotal) last.
var recomputePreference = []models.TotalsField{
	models.FieldGrandTotal,
	models.FieldDiscount,
	models.FieldTax,
	models.FieldSubtotal,
}

// Reconciler establishes the accounting identity
// subtotal + tax - discount == grand_total within Tolerance, recomputing the
// least trusted field when the extracted values disagree.
type Reconciler struct {
	Tolerance decimal.Decimal
}

// NewReconciler returns a reconciler with the given tolerance in currency
// units.
func NewReconciler(tolerance float64) *Reconciler {
	return &Reconciler{Tolerance: decimal.NewFromFloat(tolerance)}
}

// Reconcile resolves inconsistency among the four totals. When the grand
// total is present but off beyond tolerance, the lowest-confidence extracted
// field is recomputed from the other three; fields that were never extracted
// stay at zero and are not candidates. When the grand total is absent, the
// expected value is adopted. The returned totals satisfy the identity.
func (r *Reconciler) Reconcile(subtotal, tax, discount, grandTotal decimal.Decimal, conf FieldConfidence) models.ReconciledTotals {
	subtotal = subtotal.Round(2)
	tax = tax.Round(2)
	discount = discount.Round(2)
	grandTotal = grandTotal.Round(2)

	out := models.ReconciledTotals{
		Subtotal:   subtotal,
		Tax:        tax,
		Discount:   discount,
		GrandTotal: grandTotal,
		Recomputed: models.FieldNone,
	}

	expected := subtotal.Add(tax).Sub(discount)

	switch {
	case grandTotal.IsPositive() && expected.Sub(grandTotal).Abs().GreaterThan(r.Tolerance):
		var field models.TotalsField
		if subtotal.IsZero() && tax.IsZero() {
			// Nothing to derive the grand total from; trust it and back
			// out the subtotal so the identity still holds.
			field = models.FieldSubtotal
		} else {
			field = r.lowestConfidenceField(conf, candidateFields(subtotal, tax, discount))
		}

		switch field {
		case models.FieldGrandTotal:
			out.GrandTotal = expected
		case models.FieldDiscount:
			out.Discount = subtotal.Add(tax).Sub(grandTotal)
		case models.FieldTax:
			out.Tax = grandTotal.Sub(subtotal).Add(discount)
		case models.FieldSubtotal:
			out.Subtotal = grandTotal.Sub(tax).Add(discount)
		}
		out.Recomputed = field
		log.Debug().
			Str("field", string(field)).
			Str("expected", expected.StringFixed(2)).
			Str("extracted_total", grandTotal.StringFixed(2)).
			Msg("totals inconsistent, recomputed least trusted field")

	case !grandTotal.IsPositive() && expected.IsPositive():
		out.GrandTotal = expected
		out.Recomputed = models.FieldGrandTotal
	}

	return out
}

// candidateFields lists the totals eligible for recomputation: the grand
// total always, the other three only when actually extracted (nonzero).
func candidateFields(subtotal, tax, discount decimal.Decimal) map[models.TotalsField]bool {
	c := map[models.TotalsField]bool{models.FieldGrandTotal: true}
	if !subtotal.IsZero() {
		c[models.FieldSubtotal] = true
	}
	if !tax.IsZero() {
		c[models.FieldTax] = true
	}
	if !discount.IsZero() {
		c[models.FieldDiscount] = true
	}
	return c
}

// lowestConfidenceField picks the candidate to recompute: lowest confidence
// wins, ties broken by the fixed recomputePreference order.
func (r *Reconciler) lowestConfidenceField(conf FieldConfidence, candidates map[models.TotalsField]bool) models.TotalsField {
	scores := map[models.TotalsField]float64{
		models.FieldSubtotal:   conf.Subtotal,
		models.FieldTax:        conf.Tax,
		models.FieldDiscount:   conf.Discount,
		models.FieldGrandTotal: conf.GrandTotal,
	}

	chosen := models.FieldNone
	lowest := 0.0
	for _, f := range recomputePreference {
		if !candidates[f] {
			continue
		}
		if chosen == models.FieldNone || scores[f] < lowest {
			chosen = f
			lowest = scores[f]
		}
	}
	return chosen
}
