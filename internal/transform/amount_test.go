package transform

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"nil", nil, "0.00"},
		{"float", 10.345, "10.35"},
		{"float half rounds away from zero", 2.675, "2.68"},
		{"negative half rounds away from zero", -2.675, "-2.68"},
		{"int", 42, "42.00"},
		{"plain string", "99.9", "99.90"},
		{"comma decimal separator", "15,30", "15.30"},
		{"thousands separator", "1,234.56", "1234.56"},
		{"garbage string", "n/a", "0.00"},
		{"empty string", "", "0.00"},
		{"unsupported type", struct{}{}, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAmount(tt.raw)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestNormalizeAmountDefault(t *testing.T) {
	def := decimal.NewFromFloat(7.5)
	assert.Equal(t, "7.50", NormalizeAmountDefault(nil, def).StringFixed(2))
	assert.Equal(t, "7.50", NormalizeAmountDefault("bogus", def).StringFixed(2))
	assert.Equal(t, "3.00", NormalizeAmountDefault(3.0, def).StringFixed(2))
}

func TestNormalizeAmountIdempotent(t *testing.T) {
	once := NormalizeAmount(10.346)
	twice := NormalizeAmount(once)
	assert.True(t, once.Equal(twice), "normalizing an already-normalized amount must not change it")
}
