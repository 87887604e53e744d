package cart

import (
	"time"

	"github.com/angelmondragon/intellisales-pos/internal/pricing"
	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
)

// Defaults seeds every freshly allocated cart.
type Defaults struct {
	TaxRate        decimal.Decimal
	AllowBackorder bool
}

// StandardDefaults is an 8% tax rate with backorders disabled.
func StandardDefaults() Defaults {
	return Defaults{TaxRate: money.MustParse("0.08")}
}

// DefaultSettings returns the settings of a fresh cart.
func DefaultSettings(allowBackorder bool) types.CartSettings {
	return types.CartSettings{
		AutoCalculateTax:  true,
		AllowBackorder:    allowBackorder,
		RoundingPrecision: money.DefaultPrecision,
		TaxIncluded:       false,
	}
}

// NewEmptyCart allocates an empty, clean cart. Blank store or cashier ids are
// left unset.
func NewEmptyCart(cartID string, now time.Time, storeID, cashierID string, defaults Defaults) *types.CartState {
	return &types.CartState{
		Items:            []types.CartItem{},
		AppliedDiscounts: []types.CartDiscount{},
		DefaultTaxRate:   defaults.TaxRate,
		PaymentMethods:   []types.PaymentMethod{},
		Totals:           pricing.EmptyTotals(),
		CartID:           cartID,
		StoreID:          optionalString(storeID),
		CashierID:        optionalString(cashierID),
		CreatedAt:        now,
		UpdatedAt:        now,
		Settings:         DefaultSettings(defaults.AllowBackorder),
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
