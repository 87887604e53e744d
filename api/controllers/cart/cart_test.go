package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/intellisales-pos/api/middleware"
	cartsvc "github.com/angelmondragon/intellisales-pos/internal/cart"
	"github.com/angelmondragon/intellisales-pos/internal/registers"
	"github.com/angelmondragon/intellisales-pos/internal/storage"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

const coffeeBody = `{"product":{"id":"coffee","name":"Drip Coffee","price":"4.50","category":"Beverages","taxable":true,"taxRate":"0.08"}}`

type failingSetStore struct {
	*storage.Memory
}

func (failingSetStore) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Warning *types.APIError `json:"warning"`
	Error   *types.APIError `json:"error"`
}

func newTestRouter(t *testing.T, store storage.Store) http.Handler {
	t.Helper()
	registry, err := registers.New(registers.Options{
		Namespace: "pos",
		Store:     store,
		Defaults:  cartsvc.StandardDefaults(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	deps := Deps{Sessions: registry, CurrencySymbol: "$"}
	r := chi.NewRouter()
	r.Route("/registers/{registerID}/cart", func(r chi.Router) {
		r.Use(middleware.RegisterContext(nil))
		r.Get("/", CartFetch(deps))
		r.Delete("/", CartClear(deps))
		r.Post("/new", CartNew(deps))
		r.Get("/items", ItemsList(deps))
		r.Post("/items", ItemAdd(deps))
		r.Patch("/items/{itemID}", ItemUpdate(deps))
		r.Delete("/items/{itemID}", ItemRemove(deps))
		r.Post("/discounts", DiscountApply(deps))
		r.Delete("/discounts/{discountID}", DiscountRemove(deps))
		r.Put("/customer", CustomerSet(deps))
		r.Post("/payments", PaymentAdd(deps))
		r.Get("/payment", PaymentFetch(deps))
		r.Put("/hold", HoldSet(deps))
		r.Get("/receipt", ReceiptFetch(deps))
		r.Get("/validation", ValidationFetch(deps))
		r.Post("/refresh", Refresh(deps))
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (%s)", err, resp.Body.String())
	}
	return resp, env
}

func decodeCart(t *testing.T, env envelope) cartResponse {
	t.Helper()
	var out cartResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	require.NotNil(t, out.Cart)
	return out
}

func TestItemAddDefaultsQuantityAndSaves(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	h := newTestRouter(t, store)

	resp, env := do(t, h, http.MethodPost, "/registers/front-1/cart/items", coffeeBody)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeCart(t, env)
	require.Len(t, body.Cart.Items, 1)
	assert.Equal(t, 1, body.Cart.Items[0].Quantity)
	assert.False(t, body.Cart.IsDirty)
	assert.Equal(t, "$4.86", body.Summary.GrandTotal)
	assert.Nil(t, env.Warning)

	_, ok, err := store.Get(context.Background(), "pos:front-1:intellisales_cart")
	require.NoError(t, err)
	assert.True(t, ok)

	_, env = do(t, h, http.MethodGet, "/registers/front-1/cart/", "")
	assert.Len(t, decodeCart(t, env).Cart.Items, 1)
}

func TestItemAddRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, storage.NewMemory())
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"zero quantity", `{"product":{"id":"coffee","name":"Drip Coffee","price":"4.50"},"quantity":0}`, http.StatusUnprocessableEntity, "INVALID_QUANTITY"},
		{"negative price", `{"product":{"id":"coffee","name":"Drip Coffee","price":"-1"}}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing name", `{"product":{"id":"coffee","price":"1"}}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", `{"product":{"id":"coffee","name":"x","price":"1"},"colour":"red"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, env := do(t, h, http.MethodPost, "/registers/front-1/cart/items", tc.body)
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestItemUpdateAndRemove(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, storage.NewMemory())
	_, env := do(t, h, http.MethodPost, "/registers/front-1/cart/items", coffeeBody)
	itemID := decodeCart(t, env).Cart.Items[0].ID

	resp, env := do(t, h, http.MethodPatch, "/registers/front-1/cart/items/"+itemID,
		`{"quantity":3,"discountType":"percentage","discountValue":"10"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeCart(t, env)
	assert.Equal(t, 3, body.Cart.Items[0].Quantity)
	assert.Equal(t, "1.35", body.Cart.Totals.TotalDiscount.StringFixed(2))

	resp, env = do(t, h, http.MethodPatch, "/registers/front-1/cart/items/"+itemID, `{"discountType":"buy_x_get_y","discountValue":"1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	resp, env = do(t, h, http.MethodPatch, "/registers/front-1/cart/items/missing", `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "ITEM_NOT_FOUND", env.Error.Code)

	resp, env = do(t, h, http.MethodDelete, "/registers/front-1/cart/items/"+itemID, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decodeCart(t, env).Cart.Items)
}

func TestDiscountsAndPayments(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, storage.NewMemory())
	do(t, h, http.MethodPost, "/registers/front-1/cart/items", `{"product":{"id":"tea","name":"Tea","price":"10.00"},"quantity":2}`)

	discount := `{"id":"five","type":"fixed_amount","value":"5","name":"Five off"}`
	resp, env := do(t, h, http.MethodPost, "/registers/front-1/cart/discounts", discount)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "$15.00", decodeCart(t, env).Summary.GrandTotal)

	resp, env = do(t, h, http.MethodPost, "/registers/front-1/cart/discounts", discount)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "DUPLICATE_DISCOUNT", env.Error.Code)

	resp, _ = do(t, h, http.MethodDelete, "/registers/front-1/cart/discounts/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp, env = do(t, h, http.MethodPost, "/registers/front-1/cart/payments", `{"type":"cash","amount":"20"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	payments := decodeCart(t, env).Cart.PaymentMethods
	require.Len(t, payments, 1)
	assert.True(t, strings.HasPrefix(payments[0].ID, "pm_"))
	assert.Equal(t, "cash", payments[0].Name)

	resp, _ = do(t, h, http.MethodPost, "/registers/front-1/cart/payments", `{"type":"credit_card","amount":"1","cardLast4":"12a4"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	_, env = do(t, h, http.MethodGet, "/registers/front-1/cart/payment", "")
	var payment paymentResponse
	require.NoError(t, json.Unmarshal(env.Data, &payment))
	assert.True(t, payment.IsComplete)
	assert.Equal(t, "5.00", payment.Change.StringFixed(2))
	assert.Equal(t, "$0.00", payment.FormattedRemaining)

	_, env = do(t, h, http.MethodGet, "/registers/front-1/cart/receipt", "")
	var receipt cartsvc.Receipt
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, "$5.00", receipt.Change)
	require.Len(t, receipt.AppliedDiscounts, 1)
}

func TestSaveFailureReturnsDirtyCartWithWarning(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, failingSetStore{Memory: storage.NewMemory()})
	resp, env := do(t, h, http.MethodPost, "/registers/front-1/cart/items", coffeeBody)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	require.NotNil(t, env.Warning)
	assert.Equal(t, "PERSISTENCE_FAILURE", env.Warning.Code)
	body := decodeCart(t, env)
	assert.True(t, body.Cart.IsDirty)
	assert.Len(t, body.Cart.Items, 1)
}

func TestRegisterIDValidation(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, storage.NewMemory())
	resp, env := do(t, h, http.MethodGet, "/registers/a:b/cart/", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCartNewAndHold(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, storage.NewMemory())
	_, env := do(t, h, http.MethodPost, "/registers/front-1/cart/items", coffeeBody)
	first := decodeCart(t, env).Cart.CartID

	resp, env := do(t, h, http.MethodPut, "/registers/front-1/cart/hold", `{"reason":"  price check "}`)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeCart(t, env)
	assert.Equal(t, "price check", body.Cart.HoldReason)
	assert.True(t, body.Summary.OnHold)

	req := httptest.NewRequest(http.MethodPost, "/registers/front-1/cart/new", nil)
	req.Header.Set("X-Cashier-Id", "cashier-9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fresh envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fresh))
	body = decodeCart(t, fresh)
	assert.NotEqual(t, first, body.Cart.CartID)
	assert.Empty(t, body.Cart.Items)
	require.NotNil(t, body.Cart.CashierID)
	assert.Equal(t, "cashier-9", *body.Cart.CashierID)
}

func TestItemsListAndValidation(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, storage.NewMemory())
	do(t, h, http.MethodPost, "/registers/front-1/cart/items", coffeeBody)
	do(t, h, http.MethodPost, "/registers/front-1/cart/items", `{"product":{"id":"muffin","name":"Muffin","price":"3","category":"Bakery","stockLevel":5},"quantity":2}`)

	_, env := do(t, h, http.MethodGet, "/registers/front-1/cart/items?category=bakery", "")
	var items itemsResponse
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Equal(t, 1, items.Total)
	assert.Equal(t, []string{"Bakery", "Beverages"}, items.Categories)

	_, env = do(t, h, http.MethodGet, "/registers/front-1/cart/items?q=coff&limit=1", "")
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items.Items, 1)
	assert.Equal(t, "coffee", items.Items[0].Product.ID)

	resp, _ := do(t, h, http.MethodGet, "/registers/front-1/cart/items?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	_, env = do(t, h, http.MethodGet, "/registers/front-1/cart/validation", "")
	var validation validationResponse
	require.NoError(t, json.Unmarshal(env.Data, &validation))
	assert.True(t, validation.CanCheckout)
	assert.Empty(t, validation.Issues)
}

func TestRefreshWithoutStoredCart(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, storage.NewMemory())
	resp, env := do(t, h, http.MethodPost, "/registers/front-1/cart/refresh", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, env.Warning)
	assert.Empty(t, decodeCart(t, env).Cart.Items)
}

func TestMissingSessions(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	CartFetch(Deps{}).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
