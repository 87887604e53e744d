package pricing

import (
	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
)

// PaymentValidation is a snapshot of tendered amounts against a grand total.
type PaymentValidation struct {
	IsValid   bool            `json:"isValid"`
	TotalPaid decimal.Decimal `json:"totalPaid"`
	Change    decimal.Decimal `json:"change"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// CalculateChange returns the change owed to the customer, never negative.
func CalculateChange(totalPaid, grandTotal decimal.Decimal) decimal.Decimal {
	return money.Max(decimal.Zero, money.Round(totalPaid.Sub(grandTotal)))
}

// ValidatePaymentAmounts checks whether amounts settle grandTotal.
func ValidatePaymentAmounts(amounts []decimal.Decimal, grandTotal decimal.Decimal) PaymentValidation {
	totalPaid := money.Round(money.Sum(amounts...))
	return PaymentValidation{
		IsValid:   totalPaid.GreaterThanOrEqual(grandTotal),
		TotalPaid: totalPaid,
		Change:    CalculateChange(totalPaid, grandTotal),
		Shortfall: money.Max(decimal.Zero, money.Round(grandTotal.Sub(totalPaid))),
	}
}

// PaymentAmounts extracts the tendered amounts of methods in order.
func PaymentAmounts(methods []types.PaymentMethod) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(methods))
	for _, method := range methods {
		amounts = append(amounts, method.Amount)
	}
	return amounts
}
