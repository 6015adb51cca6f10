package transform

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kainotomo/invoice-bridge/internal/config"
	"github.com/kainotomo/invoice-bridge/internal/models"
)

// Vendor holds the normalized supplier identity extracted from the invoice.
type Vendor struct {
	Name    string
	TaxID   string
	Street  string
	City    string
	Pincode string
	Country string
}

// InvoiceMeta carries invoice-level fields that are neither amounts nor
// line items.
type InvoiceMeta struct {
	BillNo      string
	BillDate    string
	Currency    string
	PaymentTerm string
}

// Assembler builds the ordered document set for one invoice.
type Assembler struct {
	Settings config.Settings
}

// Assemble produces one Supplier, one Item per distinct line-item code, and
// one Purchase Invoice, ordered by creation priority so references resolve.
// The skip-if-exists checks happen at creation time, not here; the set is a
// pure value built from the normalized data.
func (a *Assembler) Assemble(vendor Vendor, items []models.LineItem, totals models.ReconciledTotals, meta InvoiceMeta) models.DocumentSet {
	set := models.DocumentSet{}

	country := vendor.Country
	if country == "" {
		country = a.Settings.DefaultCountry
	}
	set = append(set, &models.Supplier{
		SupplierName:  vendor.Name,
		SupplierGroup: a.Settings.SupplierGroup,
		SupplierType:  "Company",
		Country:       country,
		AddressLine1:  vendor.Street,
		City:          vendor.City,
		Pincode:       vendor.Pincode,
		TaxID:         vendor.TaxID,
	})

	seen := map[string]bool{}
	for i, it := range items {
		if seen[it.ItemCode] {
			continue
		}
		seen[it.ItemCode] = true
		set = append(set, &models.Item{
			ItemCode:       it.ItemCode,
			ItemName:       itemName(it.Description, i),
			Description:    it.Description,
			ItemGroup:      a.Settings.ItemGroup,
			StockUOM:       "Nos",
			IsStockItem:    0,
			IsPurchaseItem: 1,
		})
	}

	currency := meta.Currency
	if currency == "" {
		currency = a.Settings.DefaultCurrency
	}

	invoice := &models.PurchaseInvoice{
		InvoiceTitle:   fmt.Sprintf("Invoice %s", meta.BillNo),
		Supplier:       vendor.Name,
		BillNo:         meta.BillNo,
		BillDate:       meta.BillDate,
		PostingDate:    meta.BillDate,
		SetPostingTime: 1,
		Currency:       currency,
		ConversionRate: decimal.NewFromInt(1),
		Items:          items,
		PaymentTerms:   meta.PaymentTerm,
		Taxes:          a.buildTaxes(items, totals),
	}

	if totals.Discount.IsPositive() {
		invoice.ApplyDiscountOn = "Grand Total"
		invoice.DiscountAmount = totals.Discount
	}

	set = append(set, invoice)
	set.SortByPriority()
	return set
}

// buildTaxes emits the tax lines. With at most one distinct item tax rate the
// reconciled tax total goes on a single "Actual" line. With mixed rates, one
// line per rate is computed over the subset of items sharing that rate.
func (a *Assembler) buildTaxes(items []models.LineItem, totals models.ReconciledTotals) []models.TaxCharge {
	if !totals.Tax.IsPositive() {
		return nil
	}

	rates := distinctTaxRates(items)
	if len(rates) <= 1 {
		rate := decimal.Zero
		if len(rates) == 1 {
			rate = rates[0]
		}
		return []models.TaxCharge{{
			ChargeType:   "Actual",
			AccountHead:  a.Settings.VATAccount,
			Description:  taxDescription(rate, totals),
			TaxAmount:    totals.Tax,
			AddDeductTax: "Add",
			Category:     "Total",
		}}
	}

	var taxes []models.TaxCharge
	hundred := decimal.NewFromInt(100)
	for _, rate := range rates {
		base := decimal.Zero
		for _, it := range items {
			if it.TaxRate.Equal(rate) {
				base = base.Add(it.Amount)
			}
		}
		taxes = append(taxes, models.TaxCharge{
			ChargeType:   "Actual",
			AccountHead:  a.Settings.VATAccount,
			Description:  fmt.Sprintf("VAT %s%%", rate.String()),
			Rate:         rate,
			TaxAmount:    base.Mul(rate).Div(hundred).Round(2),
			AddDeductTax: "Add",
			Category:     "Total",
		})
	}
	return taxes
}

// taxDescription derives a readable label, inferring the rate from the
// reconciled totals when no item carried one.
func taxDescription(rate decimal.Decimal, totals models.ReconciledTotals) string {
	if rate.IsZero() && totals.Subtotal.IsPositive() {
		rate = totals.Tax.Div(totals.Subtotal).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return fmt.Sprintf("VAT %s%%", rate.String())
}

func distinctTaxRates(items []models.LineItem) []decimal.Decimal {
	var rates []decimal.Decimal
	for _, it := range items {
		if it.TaxRate.IsZero() {
			continue
		}
		found := false
		for _, r := range rates {
			if r.Equal(it.TaxRate) {
				found = true
				break
			}
		}
		if !found {
			rates = append(rates, it.TaxRate)
		}
	}
	return rates
}

// itemName is the short display name: first line of the description,
// truncated to the target system's 140-char limit.
func itemName(description string, index int) string {
	if description == "" {
		return fmt.Sprintf("Item %d", index+1)
	}
	name := strings.SplitN(description, "\n", 2)[0]
	if len(name) > 140 {
		name = name[:140]
	}
	return name
}
