package cart

import (
	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/intellisales-pos/internal/cart"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

// cartResponse is returned by every read of the cart and every mutation.
type cartResponse struct {
	Cart    *types.CartState    `json:"cart"`
	Summary cartsvc.Summary     `json:"summary"`
	Notice  *cartsvc.SyncNotice `json:"notice,omitempty"`
}

func newCartResponse(state *types.CartState, notice *cartsvc.SyncNotice, symbol string) cartResponse {
	return cartResponse{
		Cart:    state,
		Summary: cartsvc.Summarize(state, symbol),
		Notice:  notice,
	}
}

type paymentResponse struct {
	cartsvc.PaymentBreakdown
	Remaining          decimal.Decimal `json:"remaining"`
	FormattedRemaining string          `json:"formattedRemaining"`
}

type itemsResponse struct {
	Items      []types.CartItem `json:"items"`
	Total      int              `json:"total"`
	Categories []string         `json:"categories"`
}

type validationResponse struct {
	cartsvc.CheckoutValidation
	Discounts cartsvc.DiscountSummary `json:"discounts"`
	Savings   decimal.Decimal         `json:"savings"`
}
