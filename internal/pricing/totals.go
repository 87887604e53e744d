package pricing

import (
	"time"

	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
)

// EmptyTotals is the snapshot of a cart with no lines.
func EmptyTotals() types.CartTotals {
	return types.CartTotals{
		Subtotal:              decimal.Zero,
		TotalDiscount:         decimal.Zero,
		SubtotalAfterDiscount: decimal.Zero,
		TotalTax:              decimal.Zero,
		GrandTotal:            decimal.Zero,
	}
}

// ItemDiscounts sums the item-level discount amounts.
func ItemDiscounts(items []types.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.DiscountAmount)
	}
	return money.Round(sum)
}

// CalculateTotals folds items and cart-level discounts into one snapshot.
// Item tax is taken as computed per line; global discounts never reduce it.
func CalculateTotals(items []types.CartItem, discounts []types.CartDiscount, taxIncluded bool, now time.Time) types.CartTotals {
	if len(items) == 0 {
		return EmptyTotals()
	}

	lineSum := decimal.Zero
	taxSum := decimal.Zero
	itemCount := 0
	for _, item := range items {
		lineSum = lineSum.Add(item.LineTotal)
		taxSum = taxSum.Add(item.TaxAmount)
		itemCount += item.Quantity
	}

	subtotal := money.Round(lineSum)
	itemDiscounts := ItemDiscounts(items)
	afterItemDiscounts := money.Round(subtotal.Sub(itemDiscounts))

	global := CalculateGlobalDiscounts(afterItemDiscounts, discounts, now)

	totalDiscount := money.Round(itemDiscounts.Add(global.TotalDiscount))
	afterDiscount := money.Round(subtotal.Sub(totalDiscount))
	totalTax := money.Round(taxSum)

	grandTotal := afterDiscount
	if !taxIncluded {
		grandTotal = money.Round(afterDiscount.Add(totalTax))
	}

	return types.CartTotals{
		Subtotal:              subtotal,
		TotalDiscount:         totalDiscount,
		SubtotalAfterDiscount: afterDiscount,
		TotalTax:              totalTax,
		GrandTotal:            grandTotal,
		ItemCount:             itemCount,
		UniqueItemCount:       len(items),
	}
}
