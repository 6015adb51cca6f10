package models

import "encoding/json"

// ExtractedField is a single confidence-scored field guess returned by the
// extraction provider. Exactly one of the Value* members is populated,
// depending on the field kind. Fields are immutable once received.
type ExtractedField struct {
	ValueString   string          `json:"valueString,omitempty"`
	ValueDate     string          `json:"valueDate,omitempty"`
	ValueNumber   float64         `json:"valueNumber,omitempty"`
	ValueCurrency *CurrencyValue  `json:"valueCurrency,omitempty"`
	ValueAddress  *AddressValue   `json:"valueAddress,omitempty"`
	ValueArray    []ExtractedItem `json:"valueArray,omitempty"`
	Confidence    float64         `json:"confidence,omitempty"`
}

// CurrencyValue is a monetary amount with its currency code.
type CurrencyValue struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode,omitempty"`
}

// AddressValue holds the structured vendor address parts.
type AddressValue struct {
	StreetAddress string `json:"streetAddress,omitempty"`
	City          string `json:"city,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	CountryRegion string `json:"countryRegion,omitempty"`
}

// ExtractedItem is one entry of an Items array. The provider nests the item
// fields under valueObject.
type ExtractedItem struct {
	ValueObject map[string]ExtractedField `json:"valueObject"`
	Confidence  float64                   `json:"confidence,omitempty"`
}

// Field returns the named sub-field of the item, or a zero field when absent.
func (it ExtractedItem) Field(name string) ExtractedField {
	return it.ValueObject[name]
}

// ExtractedDocument aggregates the named fields of one extracted invoice.
type ExtractedDocument struct {
	InvoiceID     ExtractedField `json:"InvoiceId"`
	VendorName    ExtractedField `json:"VendorName"`
	VendorAddress ExtractedField `json:"VendorAddress"`
	VendorTaxID   ExtractedField `json:"VendorTaxId"`
	InvoiceDate   ExtractedField `json:"InvoiceDate"`
	InvoiceTotal  ExtractedField `json:"InvoiceTotal"`
	SubTotal      ExtractedField `json:"SubTotal"`
	TotalTax      ExtractedField `json:"TotalTax"`
	TotalDiscount ExtractedField `json:"TotalDiscount"`
	PaymentTerm   ExtractedField `json:"PaymentTerm"`
	Items         ExtractedField `json:"Items"`
}

// ParseExtractedDocument decodes the provider's extracted_doc payload.
func ParseExtractedDocument(raw []byte) (*ExtractedDocument, error) {
	var doc ExtractedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CurrencyAmount returns the monetary amount of the field, 0 when absent.
func (f ExtractedField) CurrencyAmount() float64 {
	if f.ValueCurrency == nil {
		return 0
	}
	return f.ValueCurrency.Amount
}

// CurrencyCode returns the currency code of the field, "" when absent.
func (f ExtractedField) CurrencyCode() string {
	if f.ValueCurrency == nil {
		return ""
	}
	return f.ValueCurrency.CurrencyCode
}
