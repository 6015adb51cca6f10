package transform

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kainotomo/invoice-bridge/internal/config"
	"github.com/kainotomo/invoice-bridge/internal/models"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBuildLineItemPricingInference(t *testing.T) {
	set := config.DefaultSettings()

	t.Run("unit price and amount agree", func(t *testing.T) {
		item := BuildLineItem(RawItem{
			Description: "Widget",
			Quantity:    d("2"),
			UnitPrice:   d("10"),
			Amount:      d("20"),
		}, 0, set)
		assert.Equal(t, "10.00", item.Rate.StringFixed(2))
		assert.Equal(t, "20.00", item.Amount.StringFixed(2))
	})

	t.Run("amount wins over inconsistent unit price", func(t *testing.T) {
		item := BuildLineItem(RawItem{
			Description: "Discounted widget",
			Quantity:    d("2"),
			UnitPrice:   d("10"),
			Amount:      d("15"),
		}, 0, set)
		assert.Equal(t, "7.50", item.Rate.StringFixed(2))
		assert.Equal(t, "15.00", item.Amount.StringFixed(2))
	})

	t.Run("unit price only", func(t *testing.T) {
		item := BuildLineItem(RawItem{
			Description: "Widget",
			Quantity:    d("3"),
			UnitPrice:   d("5"),
		}, 0, set)
		assert.Equal(t, "15.00", item.Amount.StringFixed(2))
	})

	t.Run("amount only defaults quantity to one", func(t *testing.T) {
		item := BuildLineItem(RawItem{
			Description: "Flat fee",
			Amount:      d("50"),
		}, 0, set)
		assert.Equal(t, "1", item.Quantity.String())
		assert.Equal(t, "50.00", item.Rate.StringFixed(2))
	})

	t.Run("no pricing yields zeros", func(t *testing.T) {
		item := BuildLineItem(RawItem{Description: "Mystery"}, 0, set)
		assert.True(t, item.Rate.IsZero())
		assert.True(t, item.Amount.IsZero())
	})
}

func TestBuildLineItemCredit(t *testing.T) {
	set := config.DefaultSettings()

	item := BuildLineItem(RawItem{
		Description: "Returned goods",
		Quantity:    d("1"),
		Amount:      d("-25"),
	}, 0, set)

	assert.True(t, item.IsCredit)
	assert.True(t, strings.HasPrefix(item.Description, "CREDIT: "))
	assert.Equal(t, "-25.00", item.Amount.StringFixed(2))
	assert.Equal(t, "-25.00", item.Rate.StringFixed(2))
	assert.True(t, item.Quantity.IsPositive(), "quantity must stay positive for credits")
}

func TestItemCode(t *testing.T) {
	set := config.DefaultSettings()

	t.Run("product code wins", func(t *testing.T) {
		item := BuildLineItem(RawItem{ProductCode: "SKU-42", Description: "Widget", Amount: d("1")}, 0, set)
		assert.Equal(t, "SKU-42", item.ItemCode)
	})

	t.Run("description digest is deterministic", func(t *testing.T) {
		a := BuildLineItem(RawItem{Description: "Widget", Amount: d("1")}, 0, set)
		b := BuildLineItem(RawItem{Description: "Widget", Amount: d("2")}, 5, set)
		assert.Equal(t, a.ItemCode, b.ItemCode)
		assert.Len(t, a.ItemCode, len("INV-")+8)
		assert.True(t, strings.HasPrefix(a.ItemCode, "INV-"))
	})

	t.Run("different descriptions get different codes", func(t *testing.T) {
		a := BuildLineItem(RawItem{Description: "Widget", Amount: d("1")}, 0, set)
		b := BuildLineItem(RawItem{Description: "Gadget", Amount: d("1")}, 0, set)
		assert.NotEqual(t, a.ItemCode, b.ItemCode)
	})

	t.Run("positional fallback without description", func(t *testing.T) {
		item := BuildLineItem(RawItem{Amount: d("1")}, 2, set)
		assert.Equal(t, "INV-3", item.ItemCode)
	})
}

func TestCombineItems(t *testing.T) {
	set := config.DefaultSettings()

	items := []models.LineItem{
		BuildLineItem(RawItem{Description: "Widget", Amount: d("10")}, 0, set),
		BuildLineItem(RawItem{Description: "Gadget", Amount: d("20")}, 1, set),
	}

	combined := CombineItems(items, set)
	require.Len(t, combined, 1)
	assert.Equal(t, "INVOICE-ITEM", combined[0].ItemCode)
	assert.Equal(t, "1", combined[0].Quantity.String())
	assert.Equal(t, "30.00", combined[0].Rate.StringFixed(2))
	assert.Equal(t, "30.00", combined[0].Amount.StringFixed(2))

	set.SettingsItem = "GENERIC-EXPENSE"
	combined = CombineItems(items, set)
	assert.Equal(t, "GENERIC-EXPENSE", combined[0].ItemCode)
}
