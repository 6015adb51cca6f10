package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kainotomo/invoice-bridge/internal/models"
)

func reconcileIdentityHolds(t *testing.T, out models.ReconciledTotals) {
	t.Helper()
	expected := out.Subtotal.Add(out.Tax).Sub(out.Discount)
	assert.True(t, expected.Sub(out.GrandTotal).Abs().LessThanOrEqual(d("0.05")),
		"identity violated: %s + %s - %s != %s",
		out.Subtotal, out.Tax, out.Discount, out.GrandTotal)
}

func TestReconcileConsistentTotalsUntouched(t *testing.T) {
	r := NewReconciler(0.05)

	out := r.Reconcile(d("100"), d("19"), d("0"), d("119"), FieldConfidence{
		Subtotal: 0.9, Tax: 0.9, GrandTotal: 0.9,
	})

	assert.Equal(t, models.FieldNone, out.Recomputed)
	assert.Equal(t, "119.00", out.GrandTotal.StringFixed(2))
	reconcileIdentityHolds(t, out)
}

func TestReconcileWithinToleranceUntouched(t *testing.T) {
	r := NewReconciler(0.05)

	// Off by 3 cents, inside the tolerance.
	out := r.Reconcile(d("100"), d("19"), d("0"), d("119.03"), FieldConfidence{
		Subtotal: 0.9, Tax: 0.9, GrandTotal: 0.9,
	})

	assert.Equal(t, models.FieldNone, out.Recomputed)
	assert.Equal(t, "119.03", out.GrandTotal.StringFixed(2))
}

func TestReconcileRecomputesLowestConfidenceField(t *testing.T) {
	r := NewReconciler(0.05)

	// Subtotal and tax are well read, the grand total is a poor guess. The
	// absent discount must not become a recompute candidate even though its
	// confidence is zero.
	out := r.Reconcile(d("100"), d("20"), d("0"), d("125"), FieldConfidence{
		Subtotal: 0.9, Tax: 0.9, Discount: 0, GrandTotal: 0.3,
	})

	assert.Equal(t, models.FieldGrandTotal, out.Recomputed)
	assert.Equal(t, "120.00", out.GrandTotal.StringFixed(2))
	assert.Equal(t, "100.00", out.Subtotal.StringFixed(2))
	assert.Equal(t, "20.00", out.Tax.StringFixed(2))
	reconcileIdentityHolds(t, out)
}

func TestReconcileRecomputesTaxWhenLeastTrusted(t *testing.T) {
	r := NewReconciler(0.05)

	out := r.Reconcile(d("100"), d("25"), d("0"), d("119"), FieldConfidence{
		Subtotal: 0.9, Tax: 0.2, GrandTotal: 0.9,
	})

	assert.Equal(t, models.FieldTax, out.Recomputed)
	assert.Equal(t, "19.00", out.Tax.StringFixed(2))
	reconcileIdentityHolds(t, out)
}

func TestReconcileRecomputesDiscountWhenExtracted(t *testing.T) {
	r := NewReconciler(0.05)

	out := r.Reconcile(d("100"), d("20"), d("3"), d("110"), FieldConfidence{
		Subtotal: 0.9, Tax: 0.9, Discount: 0.2, GrandTotal: 0.9,
	})

	assert.Equal(t, models.FieldDiscount, out.Recomputed)
	assert.Equal(t, "10.00", out.Discount.StringFixed(2))
	reconcileIdentityHolds(t, out)
}

func TestReconcileTieBreakPrefersGrandTotal(t *testing.T) {
	r := NewReconciler(0.05)

	out := r.Reconcile(d("100"), d("20"), d("0"), d("110"), FieldConfidence{
		Subtotal: 0.5, Tax: 0.5, GrandTotal: 0.5,
	})

	assert.Equal(t, models.FieldGrandTotal, out.Recomputed)
	assert.Equal(t, "120.00", out.GrandTotal.StringFixed(2))
	reconcileIdentityHolds(t, out)
}

func TestReconcileMissingGrandTotalAdoptsExpected(t *testing.T) {
	r := NewReconciler(0.05)

	out := r.Reconcile(d("100"), d("19"), d("0"), d("0"), FieldConfidence{
		Subtotal: 0.9, Tax: 0.9,
	})

	assert.Equal(t, models.FieldGrandTotal, out.Recomputed)
	assert.Equal(t, "119.00", out.GrandTotal.StringFixed(2))
	reconcileIdentityHolds(t, out)
}

func TestReconcileOnlyGrandTotalBacksOutSubtotal(t *testing.T) {
	r := NewReconciler(0.05)

	// Nothing but the grand total was read; it must be trusted, never zeroed.
	out := r.Reconcile(d("0"), d("0"), d("0"), d("85"), FieldConfidence{
		GrandTotal: 0.8,
	})

	assert.Equal(t, models.FieldSubtotal, out.Recomputed)
	assert.Equal(t, "85.00", out.Subtotal.StringFixed(2))
	assert.Equal(t, "85.00", out.GrandTotal.StringFixed(2))
	reconcileIdentityHolds(t, out)
}

func TestReconcileAllZero(t *testing.T) {
	r := NewReconciler(0.05)

	out := r.Reconcile(d("0"), d("0"), d("0"), d("0"), FieldConfidence{})

	assert.Equal(t, models.FieldNone, out.Recomputed)
	assert.True(t, out.GrandTotal.IsZero())
}
