package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/askarbek-dev/kitchenline/internal/domain"
)

// Calculator is the default pricing collaborator: subtotal from line item
// snapshots, a flat percentage tax, total rounded to cents.
type Calculator struct {
	taxRate decimal.Decimal
}

func NewCalculator(taxRatePercent float64) *Calculator {
	return &Calculator{
		taxRate: decimal.NewFromFloat(taxRatePercent).Div(decimal.NewFromInt(100)),
	}
}

func (c *Calculator) Compute(items []domain.OrderItem) domain.Pricing {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tax := subtotal.Mul(c.taxRate).Round(2)

	return domain.Pricing{
		Subtotal: subtotal.Round(2),
		Tax:      tax,
		Total:    subtotal.Add(tax).Round(2),
	}
}
