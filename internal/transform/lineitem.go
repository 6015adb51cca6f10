package transform

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kainotomo/invoice-bridge/internal/config"
	"github.com/kainotomo/invoice-bridge/internal/models"
)

const creditPrefix = "CREDIT: "

// RawItem is one extracted line-item entry after amount/number parsing,
// before normalization.
type RawItem struct {
	Description string
	ProductCode string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	TaxRate     decimal.Decimal
	Currency    string
}

// itemCode derives the code for a line. A provided product code wins;
// otherwise the code is an md5-based digest of the description so that
// re-runs over the same extraction produce the same code.
func itemCode(raw RawItem, index int) string {
	if code := strings.TrimSpace(raw.ProductCode); code != "" {
		return code
	}
	desc := strings.TrimSpace(raw.Description)
	if desc == "" {
		return fmt.Sprintf("INV-%d", index+1)
	}
	sum := md5.Sum([]byte(desc))
	return "INV-" + hex.EncodeToString(sum[:])[:8]
}

// BuildLineItem converts one extracted entry into a normalized invoice line.
// Quantity defaults to 1 when zero or missing. Rate and amount are inferred
// from whichever of unit price/quantity/amount are present, trusting the
// extracted amount when unit_price*quantity disagrees with it beyond the
// configured tolerance.
func BuildLineItem(raw RawItem, index int, set config.Settings) models.LineItem {
	tol := decimal.NewFromFloat(set.Tolerance)

	qty := raw.Quantity.Abs()
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}

	amount := raw.Amount.Round(2)
	unitPrice := raw.UnitPrice.Round(2)
	isCredit := amount.IsNegative()

	sign := decimal.NewFromInt(1)
	if isCredit {
		sign = decimal.NewFromInt(-1)
	}

	item := models.LineItem{
		ItemCode:    itemCode(raw, index),
		Quantity:    qty,
		Description: creditDescription(raw.Description, isCredit),
		UOM:         "Nos",
		TaxRate:     raw.TaxRate,
		IsCredit:    isCredit,
	}

	switch {
	case !unitPrice.IsZero() && !amount.IsZero():
		calculated := unitPrice.Mul(qty).Round(2)
		if calculated.Sub(amount).Abs().GreaterThan(tol) {
			// Effective rate embeds any line-level discount or markup.
			item.Rate = amount.Div(qty)
			item.Amount = amount
		} else {
			item.Rate = unitPrice.Mul(sign)
			item.Amount = amount
		}
	case !unitPrice.IsZero():
		item.Rate = unitPrice.Mul(sign)
		item.Amount = unitPrice.Mul(qty).Round(2).Mul(sign)
	case !amount.IsZero():
		item.Rate = amount.Div(qty)
		item.Amount = amount
	default:
		item.Rate = decimal.Zero
		item.Amount = decimal.Zero
		log.Warn().
			Str("item_code", item.ItemCode).
			Int("index", index).
			Msg("no pricing information for line item")
	}

	return item
}

// CombineItems collapses all line items into one synthetic line whose rate is
// the summed total and whose quantity is fixed at 1. Used when the target
// system should not carry per-line items.
func CombineItems(items []models.LineItem, set config.Settings) []models.LineItem {
	if len(items) == 0 {
		return items
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}

	code := set.SettingsItem
	if code == "" {
		code = "INVOICE-ITEM"
	}

	return []models.LineItem{{
		ItemCode:    code,
		Quantity:    decimal.NewFromInt(1),
		Rate:        total,
		Amount:      total,
		Description: items[0].Description,
		UOM:         "Nos",
		IsCredit:    total.IsNegative(),
	}}
}

func creditDescription(desc string, isCredit bool) string {
	if isCredit && !strings.HasPrefix(desc, creditPrefix) {
		return creditPrefix + desc
	}
	return desc
}
