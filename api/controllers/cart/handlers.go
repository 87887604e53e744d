package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/intellisales-pos/api/middleware"
	"github.com/angelmondragon/intellisales-pos/api/responses"
	"github.com/angelmondragon/intellisales-pos/api/validators"
	cartsvc "github.com/angelmondragon/intellisales-pos/internal/cart"
	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

const (
	maxSearchLength = 128
	defaultItemPage = 50
	maxItemPage     = 500
)

// Sessions resolves the cart session of a register. *registers.Registry
// satisfies it.
type Sessions interface {
	Session(ctx context.Context, registerID string) (*cartsvc.Session, error)
}

// Deps carries what every cart handler needs.
type Deps struct {
	Sessions       Sessions
	CurrencySymbol string
	Logger         *logger.Logger
}

func (d Deps) symbol() string {
	if d.CurrencySymbol == "" {
		return "$"
	}
	return d.CurrencySymbol
}

// CartFetch returns the register's cart with its summary.
func CartFetch(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		responses.WriteSuccess(w, newCartResponse(session.Snapshot(), session.Notice(), deps.symbol()))
	})
}

// CartClear empties the cart but keeps its id.
func CartClear(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		return session.ClearCart(r.Context())
	})
}

// CartNew starts a new sale. The body is optional; the cashier defaults to
// the X-Cashier-Id header.
func CartNew(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload newCartRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				return nil, err
			}
		}
		cashierID := strings.TrimSpace(payload.CashierID)
		if cashierID == "" {
			cashierID = middleware.CashierIDFromContext(r.Context())
		}
		return session.CreateNewCart(r.Context(), strings.TrimSpace(payload.StoreID), cashierID)
	})
}

func ItemAdd(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		input, err := payload.toInput()
		if err != nil {
			return nil, err
		}
		return session.AddItem(r.Context(), input)
	})
}

func ItemUpdate(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		update, err := payload.toUpdate()
		if err != nil {
			return nil, err
		}
		return session.UpdateItem(r.Context(), chi.URLParam(r, "itemID"), update)
	})
}

func ItemRemove(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		return session.RemoveItem(r.Context(), chi.URLParam(r, "itemID"))
	})
}

// ItemsList filters the cart lines by search term and category.
func ItemsList(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		limit, err := validators.ParseQueryInt(r, "limit", defaultItemPage, 1, maxItemPage)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}

		state := session.Snapshot()
		items := cartsvc.SearchItems(state, validators.ParseQueryString(r, "q", maxSearchLength))
		if category := validators.ParseQueryString(r, "category", maxSearchLength); category != "" {
			filtered := items[:0]
			for _, item := range items {
				if strings.EqualFold(item.Product.Category, category) {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}

		total := len(items)
		if total > limit {
			items = items[:limit]
		}
		responses.WriteSuccess(w, itemsResponse{Items: items, Total: total, Categories: cartsvc.Categories(state)})
	})
}

func DiscountApply(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		discount, err := payload.toDiscount()
		if err != nil {
			return nil, err
		}
		return session.ApplyDiscount(r.Context(), discount)
	})
}

func DiscountRemove(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		return session.RemoveDiscount(r.Context(), chi.URLParam(r, "discountID"))
	})
}

func CustomerSet(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload customerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return session.SetCustomer(r.Context(), payload.toCustomer())
	})
}

// CustomerRemove detaches the customer from the sale.
func CustomerRemove(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		return session.SetCustomer(r.Context(), nil)
	})
}

func PaymentAdd(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		method, err := payload.toPaymentMethod()
		if err != nil {
			return nil, err
		}
		return session.AddPaymentMethod(r.Context(), method)
	})
}

func PaymentRemove(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		return session.RemovePaymentMethod(r.Context(), chi.URLParam(r, "paymentID"))
	})
}

func TaxConfigSet(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload taxConfigRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		if payload.Rate.IsNegative() {
			return nil, fieldError("rate", "must not be negative")
		}
		return session.SetTaxConfig(r.Context(), payload.toTaxConfig())
	})
}

func SettingsUpdate(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload settingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		if payload.RoundingPrecision != nil && *payload.RoundingPrecision < 0 {
			return nil, fieldError("roundingPrecision", "must be at least 0")
		}
		return session.UpdateSettings(r.Context(), payload.toUpdate())
	})
}

// HoldSet parks the sale; an empty reason releases it.
func HoldSet(deps Deps) http.HandlerFunc {
	return mutation(deps, func(r *http.Request, session *cartsvc.Session) (*types.CartState, error) {
		var payload holdRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return session.SetHold(r.Context(), validators.SanitizeString(payload.Reason, 256))
	})
}

// PaymentFetch reports how the tenders cover the grand total.
func PaymentFetch(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		state := session.Snapshot()
		remaining := cartsvc.RemainingBalance(state)
		responses.WriteSuccess(w, paymentResponse{
			PaymentBreakdown:   cartsvc.BuildPaymentBreakdown(state, deps.symbol()),
			Remaining:          remaining,
			FormattedRemaining: money.Format(remaining, deps.symbol()),
		})
	})
}

func ReceiptFetch(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		responses.WriteSuccess(w, cartsvc.BuildReceipt(session.Snapshot(), deps.symbol()))
	})
}

func ValidationFetch(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		state := session.Snapshot()
		responses.WriteSuccess(w, validationResponse{
			CheckoutValidation: cartsvc.ValidateCheckout(state),
			Discounts:          cartsvc.SummarizeDiscounts(state),
			Savings:            cartsvc.TotalSavings(state),
		})
	})
}

func StatsFetch(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		responses.WriteSuccess(w, cartsvc.ComputeStats(session.Snapshot()))
	})
}

// Refresh merges the stored cart into the session, newest wins.
func Refresh(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		state, err := session.Refresh(r.Context())
		// the local cart is still served when the stored copy is unusable
		body := newCartResponse(state, session.Notice(), deps.symbol())
		responses.WriteSuccessWithWarning(r.Context(), deps.Logger, w, body, err)
	})
}

func NoticeDismiss(deps Deps) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		session.DismissNotice()
		responses.WriteSuccess(w, newCartResponse(session.Snapshot(), nil, deps.symbol()))
	})
}

func withSession(deps Deps, next func(http.ResponseWriter, *http.Request, *cartsvc.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Sessions == nil {
			responses.WriteError(r.Context(), deps.Logger, w, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions unavailable"))
			return
		}
		registerID := middleware.RegisterIDFromContext(r.Context())
		if registerID == "" {
			registerID = chi.URLParam(r, "registerID")
		}
		session, err := deps.Sessions.Session(r.Context(), registerID)
		if err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}
		next(w, r, session)
	}
}

// mutation runs a transition and saves it before responding. A failed save
// still returns the new, dirty cart with the error as a warning.
func mutation(deps Deps, apply func(*http.Request, *cartsvc.Session) (*types.CartState, error)) http.HandlerFunc {
	return withSession(deps, func(w http.ResponseWriter, r *http.Request, session *cartsvc.Session) {
		if _, err := apply(r, session); err != nil {
			responses.WriteError(r.Context(), deps.Logger, w, err)
			return
		}
		saveErr := session.Save(r.Context())
		body := newCartResponse(session.Snapshot(), session.Notice(), deps.symbol())
		responses.WriteSuccessWithWarning(r.Context(), deps.Logger, w, body, saveErr)
	})
}
