package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Doctype names in the target accounting system.
const (
	DoctypeSupplier        = "Supplier"
	DoctypeItem            = "Item"
	DoctypePurchaseInvoice = "Purchase Invoice"
)

// creationPriority orders document creation so references resolve:
// a Purchase Invoice needs its Supplier and Items to exist first.
var creationPriority = map[string]int{
	DoctypeSupplier:        1,
	DoctypeItem:            2,
	DoctypePurchaseInvoice: 3,
}

// AccountingDocument is one document destined for the target system.
// NaturalKey returns the business identifier used for the idempotent
// skip-if-exists check (supplier name, item code, bill number).
type AccountingDocument interface {
	DocType() string
	NaturalKey() (field, value string)
	Title() string
}

// DocumentSet is the ordered set of documents produced by one run.
type DocumentSet []AccountingDocument

// SortByPriority orders the set by doctype creation priority.
func (s DocumentSet) SortByPriority() {
	sort.SliceStable(s, func(i, j int) bool {
		return creationPriority[s[i].DocType()] < creationPriority[s[j].DocType()]
	})
}

// Supplier is the vendor master record.
type Supplier struct {
	SupplierName  string `json:"supplier_name"`
	SupplierGroup string `json:"supplier_group"`
	SupplierType  string `json:"supplier_type"`
	Country       string `json:"country,omitempty"`
	AddressLine1  string `json:"address_line1,omitempty"`
	City          string `json:"city,omitempty"`
	Pincode       string `json:"pincode,omitempty"`
	TaxID         string `json:"tax_id,omitempty"`
}

func (s *Supplier) DocType() string { return DoctypeSupplier }
func (s *Supplier) NaturalKey() (string, string) {
	return "supplier_name", s.SupplierName
}
func (s *Supplier) Title() string { return s.SupplierName }

// Item is the product/service master record for one distinct line item.
type Item struct {
	ItemCode       string `json:"item_code"`
	ItemName       string `json:"item_name"`
	Description    string `json:"description,omitempty"`
	ItemGroup      string `json:"item_group"`
	StockUOM       string `json:"stock_uom"`
	IsStockItem    int    `json:"is_stock_item"`
	IsPurchaseItem int    `json:"is_purchase_item"`
}

func (i *Item) DocType() string { return DoctypeItem }
func (i *Item) NaturalKey() (string, string) {
	return "item_code", i.ItemCode
}
func (i *Item) Title() string { return i.ItemCode }

// LineItem is a normalized invoice line. Quantity is always non-negative;
// credit/debit semantics travel on Amount's sign and the IsCredit flag.
type LineItem struct {
	ItemCode    string          `json:"item_code"`
	Quantity    decimal.Decimal `json:"qty"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	UOM         string          `json:"uom"`
	TaxRate     decimal.Decimal `json:"-"`
	IsCredit    bool            `json:"-"`
}

// TaxCharge is one tax line on a purchase invoice.
type TaxCharge struct {
	ChargeType  string          `json:"charge_type"`
	AccountHead string          `json:"account_head"`
	Description string          `json:"description"`
	Rate        decimal.Decimal `json:"rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	AddDeductTax string         `json:"add_deduct_tax,omitempty"`
	Category     string         `json:"category,omitempty"`
}

// PurchaseInvoice is the invoice document referencing supplier and items.
type PurchaseInvoice struct {
	InvoiceTitle    string          `json:"title"`
	Supplier        string          `json:"supplier"`
	BillNo          string          `json:"bill_no"`
	BillDate        string          `json:"bill_date"`
	PostingDate     string          `json:"posting_date"`
	SetPostingTime  int             `json:"set_posting_time"`
	Currency        string          `json:"currency"`
	ConversionRate  decimal.Decimal `json:"conversion_rate"`
	Items           []LineItem      `json:"items"`
	Taxes           []TaxCharge     `json:"taxes,omitempty"`
	PaymentTerms    string          `json:"payment_terms_template,omitempty"`
	ApplyDiscountOn string          `json:"apply_discount_on,omitempty"`
	DiscountAmount  decimal.Decimal `json:"discount_amount,omitempty"`
}

func (p *PurchaseInvoice) DocType() string { return DoctypePurchaseInvoice }
func (p *PurchaseInvoice) NaturalKey() (string, string) {
	return "bill_no", p.BillNo
}
func (p *PurchaseInvoice) Title() string { return p.InvoiceTitle }

// TotalsField names one of the four related invoice totals.
type TotalsField string

const (
	FieldSubtotal   TotalsField = "subtotal"
	FieldTax        TotalsField = "tax"
	FieldDiscount   TotalsField = "discount"
	FieldGrandTotal TotalsField = "grand_total"
	FieldNone       TotalsField = "none"
)

// ReconciledTotals is the output of confidence-weighted reconciliation.
// Recomputed names the field that was rewritten from the other three
// (those three were the trusted ones); FieldNone when the accounting
// identity subtotal + tax - discount == grand_total already held.
type ReconciledTotals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Recomputed TotalsField     `json:"trusted_field"`
}
