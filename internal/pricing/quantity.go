package pricing

import (
	"fmt"

	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

// QuantityCheck is the outcome of validating a requested line quantity.
// AdjustedQuantity suggests the largest acceptable value when one exists.
type QuantityCheck struct {
	IsValid          bool
	Message          string
	AdjustedQuantity *int
}

// ValidateQuantity checks quantity against the product limits. Stock is only
// enforced when backorders are disabled; maxQuantity always applies.
func ValidateQuantity(quantity int, product types.Product, allowBackorder bool) QuantityCheck {
	if quantity <= 0 {
		return QuantityCheck{Message: "Quantity must be greater than 0"}
	}

	if product.MaxQuantity != nil && *product.MaxQuantity > 0 && quantity > *product.MaxQuantity {
		limit := *product.MaxQuantity
		return QuantityCheck{
			Message:          fmt.Sprintf("Maximum quantity allowed is %d", limit),
			AdjustedQuantity: &limit,
		}
	}

	if product.StockLevel != nil && quantity > *product.StockLevel && !allowBackorder {
		stock := *product.StockLevel
		return QuantityCheck{
			Message:          fmt.Sprintf("Only %d items available in stock", stock),
			AdjustedQuantity: &stock,
		}
	}

	return QuantityCheck{IsValid: true}
}

// IsSameCartItem reports whether two lines share product, unit price and notes,
// which is when an add merges into the existing line.
func IsSameCartItem(a, b types.CartItem) bool {
	return a.Product.ID == b.Product.ID &&
		a.UnitPrice.Equal(b.UnitPrice) &&
		a.Notes == b.Notes
}
