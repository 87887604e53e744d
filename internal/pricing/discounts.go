package pricing

import (
	"time"

	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
)

// GlobalDiscountResult is the outcome of evaluating cart-level discounts.
type GlobalDiscountResult struct {
	TotalDiscount decimal.Decimal
	Applicable    []types.CartDiscount
}

// IsDiscountActive reports whether now falls inside the discount validity window.
// Missing bounds are open.
func IsDiscountActive(discount types.CartDiscount, now time.Time) bool {
	if discount.ValidFrom != nil && now.Before(*discount.ValidFrom) {
		return false
	}
	if discount.ValidUntil != nil && now.After(*discount.ValidUntil) {
		return false
	}
	return true
}

// MeetsMinimum reports whether subtotal satisfies the discount minimum amount.
func MeetsMinimum(discount types.CartDiscount, subtotal decimal.Decimal) bool {
	return discount.MinimumAmount == nil || !subtotal.LessThan(*discount.MinimumAmount)
}

// CalculateGlobalDiscounts evaluates every discount against the same subtotal.
// Amounts are additive, not applied to a shrinking base.
func CalculateGlobalDiscounts(subtotal decimal.Decimal, discounts []types.CartDiscount, now time.Time) GlobalDiscountResult {
	total := decimal.Zero
	applicable := make([]types.CartDiscount, 0, len(discounts))

	for _, discount := range discounts {
		if !MeetsMinimum(discount, subtotal) || !IsDiscountActive(discount, now) {
			continue
		}

		amount := discountAmount(discount, subtotal)
		if amount.IsPositive() {
			total = total.Add(amount)
			applicable = append(applicable, discount)
		}
	}

	return GlobalDiscountResult{
		TotalDiscount: money.Round(total),
		Applicable:    applicable,
	}
}

func discountAmount(discount types.CartDiscount, subtotal decimal.Decimal) decimal.Decimal {
	switch discount.Type {
	case enums.DiscountTypePercentage:
		return money.Min(money.Round(money.Percent(subtotal, discount.Value)), subtotal)
	case enums.DiscountTypeFixedAmount:
		return money.Min(discount.Value, subtotal)
	default:
		// buy_x_get_y is resolved per item, never here.
		return decimal.Zero
	}
}
