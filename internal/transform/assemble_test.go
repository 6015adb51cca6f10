package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kainotomo/invoice-bridge/internal/config"
	"github.com/kainotomo/invoice-bridge/internal/models"
)

func testTotals(subtotal, tax, discount, grand string) models.ReconciledTotals {
	return models.ReconciledTotals{
		Subtotal:   d(subtotal),
		Tax:        d(tax),
		Discount:   d(discount),
		GrandTotal: d(grand),
	}
}

func TestAssembleOrderAndContents(t *testing.T) {
	a := &Assembler{Settings: config.DefaultSettings()}

	items := []models.LineItem{
		line("SKU-1", "2", "10"),
		line("SKU-2", "1", "30"),
	}
	set := a.Assemble(Vendor{Name: "ACME GmbH", TaxID: "DE123"}, items, testTotals("50", "9.50", "0", "59.50"), InvoiceMeta{
		BillNo:   "INV-2024-001",
		BillDate: "2024-03-15",
		Currency: "EUR",
	})

	require.Len(t, set, 4)

	// Supplier first, then items, invoice last.
	assert.Equal(t, models.DoctypeSupplier, set[0].DocType())
	assert.Equal(t, models.DoctypeItem, set[1].DocType())
	assert.Equal(t, models.DoctypeItem, set[2].DocType())
	assert.Equal(t, models.DoctypePurchaseInvoice, set[3].DocType())

	supplier := set[0].(*models.Supplier)
	assert.Equal(t, "ACME GmbH", supplier.SupplierName)
	assert.Equal(t, "DE123", supplier.TaxID)
	assert.Equal(t, config.DefaultSupplierGroup, supplier.SupplierGroup)

	invoice := set[3].(*models.PurchaseInvoice)
	assert.Equal(t, "Invoice INV-2024-001", invoice.InvoiceTitle)
	assert.Equal(t, "INV-2024-001", invoice.BillNo)
	assert.Equal(t, "2024-03-15", invoice.BillDate)
	assert.Equal(t, "2024-03-15", invoice.PostingDate)
	assert.Equal(t, 1, invoice.SetPostingTime)
	assert.Equal(t, "EUR", invoice.Currency)
	assert.Len(t, invoice.Items, 2)
}

func TestAssembleDeduplicatesItemCodes(t *testing.T) {
	a := &Assembler{Settings: config.DefaultSettings()}

	items := []models.LineItem{
		line("SKU-1", "1", "10"),
		line("SKU-1", "2", "10"),
	}
	set := a.Assemble(Vendor{Name: "ACME"}, items, testTotals("30", "0", "0", "30"), InvoiceMeta{BillNo: "X"})

	// One supplier, one item master for the shared code, one invoice.
	require.Len(t, set, 3)
	invoice := set[2].(*models.PurchaseInvoice)
	assert.Len(t, invoice.Items, 2, "the invoice keeps both lines")
}

func TestAssembleSingleTaxLine(t *testing.T) {
	a := &Assembler{Settings: config.DefaultSettings()}

	set := a.Assemble(Vendor{Name: "ACME"},
		[]models.LineItem{line("SKU-1", "1", "100")},
		testTotals("100", "19", "0", "119"),
		InvoiceMeta{BillNo: "X"})

	invoice := set[len(set)-1].(*models.PurchaseInvoice)
	require.Len(t, invoice.Taxes, 1)
	tax := invoice.Taxes[0]
	assert.Equal(t, "Actual", tax.ChargeType)
	assert.Equal(t, config.DefaultVATAccount, tax.AccountHead)
	assert.Equal(t, "19.00", tax.TaxAmount.StringFixed(2))
	assert.Equal(t, "Add", tax.AddDeductTax)
	assert.Equal(t, "Total", tax.Category)
	assert.Equal(t, "VAT 19%", tax.Description)
}

func TestAssembleMixedTaxRates(t *testing.T) {
	a := &Assembler{Settings: config.DefaultSettings()}

	reduced := line("BOOK", "1", "100")
	reduced.TaxRate = d("7")
	standard := line("TOOL", "1", "200")
	standard.TaxRate = d("19")

	set := a.Assemble(Vendor{Name: "ACME"},
		[]models.LineItem{reduced, standard},
		testTotals("300", "45", "0", "345"),
		InvoiceMeta{BillNo: "X"})

	invoice := set[len(set)-1].(*models.PurchaseInvoice)
	require.Len(t, invoice.Taxes, 2)
	assert.Equal(t, "7.00", invoice.Taxes[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "38.00", invoice.Taxes[1].TaxAmount.StringFixed(2))
}

func TestAssembleNoTaxesWhenZero(t *testing.T) {
	a := &Assembler{Settings: config.DefaultSettings()}

	set := a.Assemble(Vendor{Name: "ACME"},
		[]models.LineItem{line("SKU-1", "1", "100")},
		testTotals("100", "0", "0", "100"),
		InvoiceMeta{BillNo: "X"})

	invoice := set[len(set)-1].(*models.PurchaseInvoice)
	assert.Empty(t, invoice.Taxes)
}

func TestAssembleDocumentDiscount(t *testing.T) {
	a := &Assembler{Settings: config.DefaultSettings()}

	set := a.Assemble(Vendor{Name: "ACME"},
		[]models.LineItem{line("SKU-1", "1", "100")},
		testTotals("100", "19", "10", "109"),
		InvoiceMeta{BillNo: "X"})

	invoice := set[len(set)-1].(*models.PurchaseInvoice)
	assert.Equal(t, "Grand Total", invoice.ApplyDiscountOn)
	assert.Equal(t, "10.00", invoice.DiscountAmount.StringFixed(2))
}

func TestAssembleDefaults(t *testing.T) {
	settings := config.DefaultSettings()
	settings.DefaultCountry = "Cyprus"
	a := &Assembler{Settings: settings}

	set := a.Assemble(Vendor{Name: "ACME"},
		[]models.LineItem{line("SKU-1", "1", "100")},
		testTotals("100", "0", "0", "100"),
		InvoiceMeta{BillNo: "X"})

	supplier := set[0].(*models.Supplier)
	assert.Equal(t, "Cyprus", supplier.Country)

	invoice := set[len(set)-1].(*models.PurchaseInvoice)
	assert.Equal(t, config.DefaultCurrency, invoice.Currency)
}
