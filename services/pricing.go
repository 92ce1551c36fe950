package services

import (
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/shopspring/decimal"
)

var (
	// Orders strictly above the threshold ship free.
	FreeShippingThreshold = decimal.NewFromInt(499)
	FlatShippingFee       = decimal.NewFromInt(49)
)

// ShippingFor returns the shipping charge for a non-empty subtotal.
func ShippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingFee
}

// PriceCart fills subtotal, shipping and total for the lines of a cart view.
func PriceCart(view *models.CartView) {
	subtotal := decimal.Zero
	for i := range view.Items {
		line := &view.Items[i]
		line.LineTotal = line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(line.LineTotal)
	}

	view.Subtotal = subtotal
	view.Shipping = decimal.Zero
	if len(view.Items) > 0 {
		view.Shipping = ShippingFor(subtotal)
	}
	view.Total = view.Subtotal.Add(view.Shipping)
}

// MinorUnits converts an amount to the gateway's smallest currency unit,
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
