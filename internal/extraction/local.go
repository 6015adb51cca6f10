package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/kainotomo/invoice-bridge/internal/models"
	"github.com/kainotomo/invoice-bridge/internal/transform"
)

// Template is one local extraction rule set. A template applies when every
// keyword appears in the document text; each field regex then captures one
// value from the text.
type Template struct {
	// Issuer names the vendor the template belongs to. It doubles as the
	// extracted vendor name when the fields carry no issuer pattern.
	Issuer   string            `yaml:"issuer"`
	Keywords []string          `yaml:"keywords"`
	Fields   map[string]string `yaml:"fields"`
	// Currency applies to every amount the template extracts.
	Currency string `yaml:"currency"`

	compiled map[string]*regexp.Regexp
}

// LocalExtractor matches documents against rule templates loaded from a
// directory. It is the "manual" extraction mode, for recurring vendors whose
// invoices do not justify provider credits.
type LocalExtractor struct {
	templates []*Template
}

// LoadTemplates reads every .yaml/.yml file in dir as a rule template.
// Invalid templates are skipped with a warning rather than failing the load,
// so one broken file does not take local extraction down.
func LoadTemplates(dir string) (*LocalExtractor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, inputErr("failed to read templates directory", err)
	}

	ex := &LocalExtractor{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		tpl, err := loadTemplate(path)
		if err != nil {
			log.Warn().Err(err).Str("template", entry.Name()).Msg("skipping invalid template")
			continue
		}
		ex.templates = append(ex.templates, tpl)
	}

	log.Info().Int("count", len(ex.templates)).Str("dir", dir).Msg("loaded extraction templates")
	return ex, nil
}

func loadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if tpl.Issuer == "" {
		return nil, fmt.Errorf("template has no issuer")
	}
	if len(tpl.Keywords) == 0 {
		return nil, fmt.Errorf("template %q has no keywords", tpl.Issuer)
	}

	tpl.compiled = make(map[string]*regexp.Regexp, len(tpl.Fields))
	for name, pattern := range tpl.Fields {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("field %q pattern has no capture group", name)
		}
		tpl.compiled[name] = re
	}
	return &tpl, nil
}

// matches reports whether every keyword appears in the text.
func (t *Template) matches(text string) bool {
	for _, kw := range t.Keywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

// apply runs the field regexes against the text, returning first-group
// captures keyed by field name.
func (t *Template) apply(text string) map[string]string {
	values := map[string]string{"issuer": t.Issuer}
	for name, re := range t.compiled {
		if m := re.FindStringSubmatch(text); m != nil {
			values[name] = strings.TrimSpace(m[1])
		}
	}
	return values
}

// Extract reads the file at path, finds the first template whose keywords all
// match and returns the captured values mapped into the provider's document
// shape. Returns nil without error when no template matches; the caller
// decides whether that is fatal.
func (e *LocalExtractor) Extract(path string) (*models.ExtractedDocument, error) {
	text, err := readDocumentText(path)
	if err != nil {
		return nil, err
	}

	for _, tpl := range e.templates {
		if !tpl.matches(text) {
			continue
		}
		values := tpl.apply(text)
		log.Info().
			Str("issuer", tpl.Issuer).
			Int("fields", len(values)).
			Msg("local template matched")
		return buildDocument(values, tpl.Currency), nil
	}
	return nil, nil
}

// readDocumentText loads the raw text of the source file. PDFs go through the
// text-layer extractor; anything else is read as plain text.
func readDocumentText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return ExtractPDFText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", inputErr("failed to read source file", err)
	}
	return string(data), nil
}

// buildDocument maps template captures into the extracted-document shape.
// Template matches are deterministic, so every field carries confidence 1.
func buildDocument(values map[string]string, currency string) *models.ExtractedDocument {
	doc := &models.ExtractedDocument{
		VendorName: stringField(values["issuer"]),
	}
	if v, ok := values["invoice_number"]; ok {
		doc.InvoiceID = stringField(v)
	}
	if v, ok := values["date"]; ok {
		doc.InvoiceDate = models.ExtractedField{ValueDate: v, Confidence: 1}
	}
	if v, ok := values["vendor_tax_id"]; ok {
		doc.VendorTaxID = stringField(v)
	}
	if v, ok := values["payment_term"]; ok {
		doc.PaymentTerm = stringField(v)
	}
	if v, ok := values["amount"]; ok {
		doc.InvoiceTotal = currencyField(v, currency)
	}
	if v, ok := values["subtotal"]; ok {
		doc.SubTotal = currencyField(v, currency)
	}
	if v, ok := values["tax_amount"]; ok {
		doc.TotalTax = currencyField(v, currency)
	}
	if v, ok := values["discount"]; ok {
		doc.TotalDiscount = currencyField(v, currency)
	}
	return doc
}

func stringField(v string) models.ExtractedField {
	return models.ExtractedField{ValueString: v, Confidence: 1}
}

func currencyField(v, currency string) models.ExtractedField {
	amount := transform.NormalizeAmount(v)
	return models.ExtractedField{
		ValueCurrency: &models.CurrencyValue{
			Amount:       amount.InexactFloat64(),
			CurrencyCode: currency,
		},
		Confidence: 1,
	}
}
