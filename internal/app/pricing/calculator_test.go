package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/askarbek-dev/kitchenline/internal/domain"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name           string
		taxRatePercent float64
		items          []domain.OrderItem
		wantSubtotal   string
		wantTax        string
		wantTotal      string
	}{
		{
			name:           "quantity multiplies price",
			taxRatePercent: 12,
			items: []domain.OrderItem{
				{Price: decimal.NewFromInt(5), Quantity: 2},
				{Price: decimal.NewFromInt(8), Quantity: 1},
			},
			wantSubtotal: "18",
			wantTax:      "2.16",
			wantTotal:    "20.16",
		},
		{
			name:           "tax rounds to cents",
			taxRatePercent: 12,
			items: []domain.OrderItem{
				{Price: decimal.RequireFromString("3.33"), Quantity: 1},
			},
			wantSubtotal: "3.33",
			wantTax:      "0.4", // 0.3996 rounded
			wantTotal:    "3.73",
		},
		{
			name:           "zero tax rate",
			taxRatePercent: 0,
			items: []domain.OrderItem{
				{Price: decimal.NewFromInt(10), Quantity: 3},
			},
			wantSubtotal: "30",
			wantTax:      "0",
			wantTotal:    "30",
		},
		{
			name:           "no items",
			taxRatePercent: 12,
			items:          nil,
			wantSubtotal:   "0",
			wantTax:        "0",
			wantTotal:      "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCalculator(tt.taxRatePercent).Compute(tt.items)

			if !got.Subtotal.Equal(decimal.RequireFromString(tt.wantSubtotal)) {
				t.Errorf("subtotal = %s, want %s", got.Subtotal, tt.wantSubtotal)
			}
			if !got.Tax.Equal(decimal.RequireFromString(tt.wantTax)) {
				t.Errorf("tax = %s, want %s", got.Tax, tt.wantTax)
			}
			if !got.Total.Equal(decimal.RequireFromString(tt.wantTotal)) {
				t.Errorf("total = %s, want %s", got.Total, tt.wantTotal)
			}
		})
	}
}
