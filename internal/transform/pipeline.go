package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kainotomo/invoice-bridge/internal/config"
	"github.com/kainotomo/invoice-bridge/internal/erpnext"
	"github.com/kainotomo/invoice-bridge/internal/models"
)

// Run statuses. Error is terminal; a failed run is only retried by an
// explicit re-trigger from the caller.
const (
	StatusPending   = "Pending"
	StatusRetrieved = "Retrieved"
	StatusSuccess   = "Success"
	StatusError     = "Error"
)

// qualityWeight is the score increment per present key field. The score is
// observability only; it never gates a run.
const qualityWeight = 20

// TransformationError marks a failure inside the transformation stages. The
// orchestrator catches it at the run boundary and discards the partial
// document set.
type TransformationError struct {
	Err error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation failed: %v", e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// Pipeline sequences line-item building, reconciliation, adjustment and
// assembly for one extraction run, then creates the documents idempotently.
type Pipeline struct {
	Store    erpnext.Store
	Settings config.Settings
}

// NewPipeline wires a pipeline against the host store with the given
// settings.
func NewPipeline(store erpnext.Store, settings config.Settings) *Pipeline {
	return &Pipeline{Store: store, Settings: settings}
}

// TransformResult is the outcome of the pure transformation phase.
type TransformResult struct {
	Documents models.DocumentSet
	Totals    models.ReconciledTotals
	Quality   int
	BillNo    string
}

// CreateResult reports what document creation actually did.
type CreateResult struct {
	CreatedTitles []string
	InvoiceName   string
	Skipped       int
}

// Transform builds the balanced document set from an extracted document.
// It is all-or-nothing: any failure discards the partial set.
func (p *Pipeline) Transform(doc *models.ExtractedDocument) (result *TransformResult, err error) {
	// Arithmetic on malformed payloads can panic (division by zero and
	// the like); the run boundary converts that into a terminal error.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &TransformationError{Err: fmt.Errorf("%v", r)}
		}
	}()

	billNo := strings.TrimSpace(doc.InvoiceID.ValueString)
	vendorName := strings.TrimSpace(strings.ReplaceAll(doc.VendorName.ValueString, "\n", " "))
	if vendorName == "" {
		return nil, &TransformationError{Err: fmt.Errorf("vendor name not found in extracted document")}
	}

	quality := 0
	if billNo != "" {
		quality += qualityWeight
	}
	quality += qualityWeight // vendor name, validated above

	rawItems := p.collectItems(doc, billNo)
	if len(rawItems) > 0 {
		quality += qualityWeight
	}

	invoiceDate := ""
	if doc.InvoiceDate.ValueDate != "" {
		quality += qualityWeight
	}
	invoiceDate = FixDate(doc.InvoiceDate.ValueDate, billNo)

	subtotal := NormalizeAmount(doc.SubTotal.CurrencyAmount())
	tax := NormalizeAmount(doc.TotalTax.CurrencyAmount())
	discount := NormalizeAmount(doc.TotalDiscount.CurrencyAmount())
	grandTotal := NormalizeAmount(doc.InvoiceTotal.CurrencyAmount())
	if grandTotal.IsPositive() {
		quality += qualityWeight
	}

	reconciler := NewReconciler(p.Settings.Tolerance)
	totals := reconciler.Reconcile(subtotal, tax, discount, grandTotal, FieldConfidence{
		Subtotal:   doc.SubTotal.Confidence,
		Tax:        doc.TotalTax.Confidence,
		Discount:   doc.TotalDiscount.Confidence,
		GrandTotal: doc.InvoiceTotal.Confidence,
	})

	items := make([]models.LineItem, 0, len(rawItems))
	for i, raw := range rawItems {
		items = append(items, BuildLineItem(raw, i, p.Settings))
	}
	if p.Settings.OneItemInvoice {
		items = CombineItems(items, p.Settings)
	}

	adjuster := NewAdjuster(p.Settings.Tolerance, p.Settings.DecimalShiftFactor)
	items = adjuster.Adjust(items, totals.Subtotal, billNo)

	var address models.AddressValue
	if doc.VendorAddress.ValueAddress != nil {
		address = *doc.VendorAddress.ValueAddress
	}
	vendor := Vendor{
		Name:    vendorName,
		TaxID:   strings.TrimSpace(doc.VendorTaxID.ValueString),
		Street:  address.StreetAddress,
		City:    address.City,
		Pincode: address.PostalCode,
		Country: address.CountryRegion,
	}

	assembler := &Assembler{Settings: p.Settings}
	set := assembler.Assemble(vendor, items, totals, InvoiceMeta{
		BillNo:      billNo,
		BillDate:    invoiceDate,
		Currency:    doc.InvoiceTotal.CurrencyCode(),
		PaymentTerm: strings.TrimSpace(doc.PaymentTerm.ValueString),
	})

	if quality < 80 {
		log.Warn().
			Str("invoice", billNo).
			Int("score", quality).
			Msg("low-quality document extraction")
	}

	return &TransformResult{
		Documents: set,
		Totals:    totals,
		Quality:   quality,
		BillNo:    billNo,
	}, nil
}

// CreateDocuments upserts the set into the host store in priority order.
// Existing documents (matched by natural key) are skipped untouched, so
// re-running the same extraction never creates duplicates.
func (p *Pipeline) CreateDocuments(ctx context.Context, set models.DocumentSet) (*CreateResult, error) {
	res := &CreateResult{}
	for _, doc := range set {
		field, value := doc.NaturalKey()
		if value != "" {
			exists, err := p.Store.Exists(ctx, doc.DocType(), field, value)
			if err != nil {
				return res, fmt.Errorf("existence check failed for %s %q: %w", doc.DocType(), value, err)
			}
			if exists {
				res.Skipped++
				log.Debug().
					Str("doctype", doc.DocType()).
					Str(field, value).
					Msg("document already exists, skipping")
				continue
			}
		}

		name, err := p.Store.Create(ctx, doc.DocType(), doc)
		if err != nil {
			return res, fmt.Errorf("failed to create %s %q: %w", doc.DocType(), doc.Title(), err)
		}
		if doc.DocType() == models.DoctypePurchaseInvoice {
			res.CreatedTitles = append(res.CreatedTitles, doc.Title())
			res.InvoiceName = name
		}
	}
	return res, nil
}

// collectItems extracts the raw line entries, logging a warning when item
// currencies disagree with the invoice currency.
func (p *Pipeline) collectItems(doc *models.ExtractedDocument, billNo string) []RawItem {
	invoiceCurrency := doc.InvoiceTotal.CurrencyCode()
	var raws []RawItem
	for _, entry := range doc.Items.ValueArray {
		item := RawItem{
			Description: entry.Field("Description").ValueString,
			ProductCode: strings.TrimSpace(entry.Field("ProductCode").ValueString),
			Quantity:    decimal.NewFromFloat(entry.Field("Quantity").ValueNumber),
			UnitPrice:   NormalizeAmount(entry.Field("UnitPrice").CurrencyAmount()),
			Amount:      NormalizeAmount(entry.Field("Amount").CurrencyAmount()),
			TaxRate:     parseTaxRate(entry.Field("TaxRate").ValueString),
			Currency:    entry.Field("Amount").CurrencyCode(),
		}
		if item.Currency != "" && invoiceCurrency != "" && item.Currency != invoiceCurrency {
			log.Warn().
				Str("invoice", billNo).
				Str("invoice_currency", invoiceCurrency).
				Str("item_currency", item.Currency).
				Msg("item currency differs from invoice currency")
		}
		raws = append(raws, item)
	}
	return raws
}

// parseTaxRate reads a percentage like "19%" or "19", zero when unreadable.
func parseTaxRate(raw string) decimal.Decimal {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return decimal.Zero
	}
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return rate
}
