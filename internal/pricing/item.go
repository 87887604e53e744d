// Package pricing derives line, discount, total and payment figures for a
// cart. Every function is pure; callers supply the clock where time matters.
package pricing

import (
	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// CalculateItemDiscount returns the discount for a line. The discount never
// exceeds the line it applies to.
func CalculateItemDiscount(lineTotal decimal.Decimal, discountType enums.DiscountType, value decimal.Decimal) decimal.Decimal {
	switch discountType {
	case enums.DiscountTypePercentage:
		return money.Min(money.Round(money.Percent(lineTotal, value)), lineTotal)
	case enums.DiscountTypeFixedAmount:
		return money.Min(value, lineTotal)
	default:
		return decimal.Zero
	}
}

// CalculateItemTax returns the tax on taxableAmount. With taxIncluded the tax
// already embedded in the price is extracted instead of added on top.
func CalculateItemTax(taxableAmount, taxRate decimal.Decimal, taxIncluded bool) decimal.Decimal {
	if taxIncluded {
		net := taxableAmount.Div(one.Add(taxRate))
		return money.Round(taxableAmount.Sub(net))
	}
	return money.Round(taxableAmount.Mul(taxRate))
}

// CalculateItem derives every amount of item from its quantity, unit price,
// discount and tax rate.
func CalculateItem(item types.CartItem, taxIncluded bool) types.ItemAmounts {
	lineTotal := money.Round(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))

	discountAmount := decimal.Zero
	if item.HasDiscount() {
		discountAmount = CalculateItemDiscount(lineTotal, item.DiscountType, item.DiscountValue)
	}

	afterDiscount := money.Round(lineTotal.Sub(discountAmount))

	taxable := decimal.Zero
	if item.Product.Taxable {
		taxable = afterDiscount
	}

	tax := decimal.Zero
	if taxable.IsPositive() {
		tax = CalculateItemTax(taxable, item.TaxRate, taxIncluded)
	}

	return types.ItemAmounts{
		LineTotal:              lineTotal,
		DiscountAmount:         discountAmount,
		LineTotalAfterDiscount: afterDiscount,
		TaxableAmount:          taxable,
		TaxAmount:              tax,
	}
}

// Recalculate replaces the derived amounts of item in place.
func Recalculate(item *types.CartItem, taxIncluded bool) {
	item.ItemAmounts = CalculateItem(*item, taxIncluded)
}
