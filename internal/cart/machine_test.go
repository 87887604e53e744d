package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sequentialIDs struct {
	mu    sync.Mutex
	carts int
	items int
}

func (s *sequentialIDs) NewCartID(time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts++
	return fmt.Sprintf("cart_%d", s.carts)
}

func (s *sequentialIDs) NewItemID(productID string, _ time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items++
	return fmt.Sprintf("%s_%d", productID, s.items)
}

type recordingHooks struct {
	mu         sync.Mutex
	broadcasts []types.CartSyncEvent
	clears     int
	err        error
}

func (h *recordingHooks) Broadcast(_ context.Context, event types.CartSyncEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, event)
	return h.err
}

func (h *recordingHooks) Clear(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clears++
	return h.err
}

func newTestMachine(t *testing.T) (*Machine, *recordingHooks, *types.CartState) {
	t.Helper()
	hooks := &recordingHooks{}
	clock := &stubClock{now: testNow}
	m := NewMachine(Options{Clock: clock.Now, IDs: &sequentialIDs{}, Hooks: hooks})
	return m, hooks, m.NewCart("store-1", "cashier-1")
}

func coffee() types.Product {
	rate := money.MustParse("0.08")
	return types.Product{
		ID:       "coffee",
		Name:     "Drip Coffee",
		Price:    money.MustParse("4.50"),
		Category: "Beverages",
		Taxable:  true,
		TaxRate:  &rate,
	}
}

func intPtr(v int) *int { return &v }

func decPtr(v string) *decimal.Decimal {
	d := money.MustParse(v)
	return &d
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(money.MustParse(want)) {
		t.Fatalf("expected %s, got %s", want, got.String())
	}
}

func TestNewCartIsEmptyAndClean(t *testing.T) {
	t.Parallel()

	_, _, state := newTestMachine(t)

	assert.Equal(t, "cart_1", state.CartID)
	assert.NotNil(t, state.Items)
	assert.Empty(t, state.Items)
	assert.False(t, state.IsDirty)
	assert.Nil(t, state.Error)
	assert.Equal(t, "store-1", *state.StoreID)
	assert.True(t, state.Settings.AutoCalculateTax)
	assert.False(t, state.Settings.TaxIncluded)
	assertMoney(t, "0.08", state.DefaultTaxRate)
	assertMoney(t, "0", state.Totals.GrandTotal)
}

func TestAddItemComputesTotals(t *testing.T) {
	t.Parallel()

	m, _, state := newTestMachine(t)
	require.NoError(t, m.AddItem(context.Background(), state, AddItemInput{Product: coffee(), Quantity: 2}))

	require.Len(t, state.Items, 1)
	item := state.Items[0]
	assert.Equal(t, "coffee_1", item.ID)
	assertMoney(t, "9.00", item.LineTotal)
	assertMoney(t, "0.72", item.TaxAmount)
	assertMoney(t, "9.72", state.Totals.GrandTotal)
	assert.Equal(t, 2, state.Totals.ItemCount)
	assert.True(t, state.IsDirty)
	assert.Nil(t, state.Error)
	assert.Equal(t, testNow, state.UpdatedAt)
}

func TestAddItemMergesMatchingLines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)

	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 1}))
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))
	require.Len(t, state.Items, 1)
	assert.Equal(t, 3, state.Items[0].Quantity)

	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 1, Notes: "oat milk"}))
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 1, UnitPrice: decPtr("3.00")}))
	require.Len(t, state.Items, 3)
	assert.Equal(t, 5, state.Totals.ItemCount)
	assert.Equal(t, 3, state.Totals.UniqueItemCount)
}

func TestAddItemTaxRateFallsBackToDefault(t *testing.T) {
	t.Parallel()

	m, _, state := newTestMachine(t)
	product := coffee()
	product.TaxRate = nil
	state.DefaultTaxRate = money.MustParse("0.10")

	require.NoError(t, m.AddItem(context.Background(), state, AddItemInput{Product: product, Quantity: 1}))
	assertMoney(t, "0.10", state.Items[0].TaxRate)
	assertMoney(t, "0.45", state.Items[0].TaxAmount)
}

func TestAddItemRejectsInvalidQuantity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		product  func() types.Product
		quantity int
		message  string
	}{
		{name: "zero", product: coffee, quantity: 0, message: "Quantity must be greater than 0"},
		{name: "negative", product: coffee, quantity: -1, message: "Quantity must be greater than 0"},
		{name: "max", product: func() types.Product {
			p := coffee()
			p.MaxQuantity = intPtr(2)
			return p
		}, quantity: 3, message: "Maximum quantity allowed is 2"},
		{name: "stock", product: func() types.Product {
			p := coffee()
			p.StockLevel = intPtr(1)
			return p
		}, quantity: 2, message: "Only 1 items available in stock"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, _, state := newTestMachine(t)
			before := state.Totals

			err := m.AddItem(context.Background(), state, AddItemInput{Product: tc.product(), Quantity: tc.quantity})
			if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity) {
				t.Fatalf("expected INVALID_QUANTITY, got %v", err)
			}
			assert.Equal(t, tc.message, state.ErrorMessage())
			assert.Empty(t, state.Items)
			assert.Equal(t, before, state.Totals)
			assert.False(t, state.IsDirty)
		})
	}
}

func TestAddItemBackorderSkipsStock(t *testing.T) {
	t.Parallel()

	m, _, state := newTestMachine(t)
	state.Settings.AllowBackorder = true
	product := coffee()
	product.StockLevel = intPtr(1)

	require.NoError(t, m.AddItem(context.Background(), state, AddItemInput{Product: product, Quantity: 5}))
	assert.Equal(t, 5, state.Items[0].Quantity)
}

func TestAddItemMergeRevalidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	product := coffee()
	product.MaxQuantity = intPtr(3)

	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: product, Quantity: 2}))
	err := m.AddItem(ctx, state, AddItemInput{Product: product, Quantity: 2})

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvalidQuantity, typed.Code())
	assert.Equal(t, map[string]any{"adjustedQuantity": 3}, typed.Details())
	assert.Equal(t, 2, state.Items[0].Quantity)
	assert.Equal(t, "Maximum quantity allowed is 3", state.ErrorMessage())
}

func TestUpdateItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))
	itemID := state.Items[0].ID

	percentage := enums.DiscountTypePercentage
	require.NoError(t, m.UpdateItem(ctx, state, itemID, ItemUpdate{
		DiscountType:  &percentage,
		DiscountValue: decPtr("10"),
	}))

	item := state.Items[0]
	assertMoney(t, "0.90", item.DiscountAmount)
	assertMoney(t, "8.10", item.LineTotalAfterDiscount)
	assertMoney(t, "0.65", item.TaxAmount)
	assertMoney(t, "8.75", state.Totals.GrandTotal)

	notes := "extra hot"
	require.NoError(t, m.UpdateItem(ctx, state, itemID, ItemUpdate{Quantity: intPtr(4), Notes: &notes}))
	assert.Equal(t, 4, state.Items[0].Quantity)
	assert.Equal(t, "extra hot", state.Items[0].Notes)
	assert.Equal(t, enums.DiscountTypePercentage, state.Items[0].DiscountType)
}

func TestUpdateItemPercentageOverHundredNeverGoesNegative(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	product := coffee()
	product.Price = money.MustParse("10")
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: product, Quantity: 1}))

	percentage := enums.DiscountTypePercentage
	require.NoError(t, m.UpdateItem(ctx, state, state.Items[0].ID, ItemUpdate{
		DiscountType:  &percentage,
		DiscountValue: decPtr("150"),
	}))

	item := state.Items[0]
	assertMoney(t, "10", item.DiscountAmount)
	assertMoney(t, "0", item.LineTotalAfterDiscount)
	assertMoney(t, "0", state.Totals.SubtotalAfterDiscount)
	assertMoney(t, "0", state.Totals.GrandTotal)
}

func TestUpdateItemFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))
	itemID := state.Items[0].ID

	err := m.UpdateItem(ctx, state, "missing", ItemUpdate{Quantity: intPtr(1)})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeItemNotFound))
	assert.Equal(t, "Item not found in cart", state.ErrorMessage())

	err = m.UpdateItem(ctx, state, itemID, ItemUpdate{Quantity: intPtr(0)})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity))
	assert.Equal(t, 2, state.Items[0].Quantity)

	bogo := enums.DiscountTypeBuyXGetY
	err = m.UpdateItem(ctx, state, itemID, ItemUpdate{DiscountType: &bogo})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.DiscountType(""), state.Items[0].DiscountType)
}

func TestRemoveItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))

	require.NoError(t, m.RemoveItem(ctx, state, state.Items[0].ID))
	assert.Empty(t, state.Items)
	assertMoney(t, "0", state.Totals.GrandTotal)
}

func TestRemoveMissingItemLeavesTotals(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))
	before := state.Totals

	err := m.RemoveItem(ctx, state, "nope")
	if !pkgerrors.HasCode(err, pkgerrors.CodeItemNotFound) {
		t.Fatalf("expected ITEM_NOT_FOUND, got %v", err)
	}
	assert.Equal(t, before, state.Totals)
	assert.Len(t, state.Items, 1)
	assert.Equal(t, "Item not found in cart", state.ErrorMessage())
}

func TestSuccessfulTransitionClearsError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	_ = m.RemoveItem(ctx, state, "nope")
	require.NotNil(t, state.Error)

	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 1}))
	assert.Nil(t, state.Error)
}

func TestClearCartBroadcasts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, hooks, state := newTestMachine(t)
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))
	require.NoError(t, m.SetCustomer(ctx, state, &types.CartCustomer{ID: "c1"}))
	require.NoError(t, m.AddPaymentMethod(ctx, state, types.PaymentMethod{ID: "p1", Type: enums.PaymentMethodTypeCash, Amount: money.MustParse("10")}))
	cartID := state.CartID

	require.NoError(t, m.ClearCart(ctx, state))
	assert.Empty(t, state.Items)
	assert.Empty(t, state.PaymentMethods)
	assert.Nil(t, state.Customer)
	assert.Equal(t, cartID, state.CartID)
	assertMoney(t, "0", state.Totals.GrandTotal)

	require.Len(t, hooks.broadcasts, 1)
	assert.Equal(t, enums.SyncEventCartCleared, hooks.broadcasts[0].Type)
	assert.Equal(t, cartID, hooks.broadcasts[0].CartID)
}

func TestClearCartIgnoresBroadcastFailure(t *testing.T) {
	t.Parallel()

	m, hooks, state := newTestMachine(t)
	hooks.err = errors.New("offline")

	require.NoError(t, m.ClearCart(context.Background(), state))
	assert.True(t, state.IsDirty)
}

func TestApplyAndRemoveDiscount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))

	five := types.CartDiscount{ID: "five", Type: enums.DiscountTypeFixedAmount, Value: money.MustParse("5"), Name: "Five off"}
	require.NoError(t, m.ApplyDiscount(ctx, state, five))
	assertMoney(t, "5", state.Totals.TotalDiscount)

	err := m.ApplyDiscount(ctx, state, five)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicateDiscount))
	assert.Equal(t, "Discount already applied", state.ErrorMessage())
	assert.Len(t, state.AppliedDiscounts, 1)

	err = m.ApplyDiscount(ctx, state, types.CartDiscount{ID: "x", Type: "mystery"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	err = m.RemoveDiscount(ctx, state, "ghost")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDiscountNotFound))
	assert.Equal(t, "Discount not found", state.ErrorMessage())

	require.NoError(t, m.RemoveDiscount(ctx, state, "five"))
	assert.Empty(t, state.AppliedDiscounts)
	assertMoney(t, "0", state.Totals.TotalDiscount)
	assertMoney(t, "9.72", state.Totals.GrandTotal)
}

func TestSetCustomerCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	customer := &types.CartCustomer{ID: "c1", FirstName: "Ada"}

	require.NoError(t, m.SetCustomer(ctx, state, customer))
	customer.FirstName = "changed"
	assert.Equal(t, "Ada", state.Customer.FirstName)

	require.NoError(t, m.SetCustomer(ctx, state, nil))
	assert.Nil(t, state.Customer)
}

func TestPaymentMethods(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)

	require.NoError(t, m.AddPaymentMethod(ctx, state, types.PaymentMethod{ID: "p1", Type: enums.PaymentMethodTypeCash, Amount: money.MustParse("5")}))
	require.NoError(t, m.AddPaymentMethod(ctx, state, types.PaymentMethod{ID: "p1", Type: enums.PaymentMethodTypeCash, Amount: money.MustParse("6")}))
	require.Len(t, state.PaymentMethods, 1)
	assertMoney(t, "6", state.PaymentMethods[0].Amount)

	err := m.AddPaymentMethod(ctx, state, types.PaymentMethod{ID: "p2", Type: "barter"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	state.IsDirty = false
	require.NoError(t, m.RemovePaymentMethod(ctx, state, "absent"))
	assert.False(t, state.IsDirty)

	require.NoError(t, m.RemovePaymentMethod(ctx, state, "p1"))
	assert.Empty(t, state.PaymentMethods)
	assert.True(t, state.IsDirty)
}

func TestSetTaxConfigRerates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	muffin := types.Product{ID: "muffin", Name: "Muffin", Price: money.MustParse("3.00"), Category: "Bakery", Taxable: true}
	water := types.Product{ID: "water", Name: "Water", Price: money.MustParse("2.00"), Category: "Beverages", Taxable: true}

	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 1}))
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: muffin, Quantity: 1}))
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: water, Quantity: 1}))

	require.NoError(t, m.SetTaxConfig(ctx, state, types.TaxConfig{
		ID:                   "city",
		Rate:                 money.MustParse("0.10"),
		ApplicableCategories: []string{"Beverages"},
		ExemptProducts:       []string{"water"},
	}))

	assertMoney(t, "0.10", state.DefaultTaxRate)
	assertMoney(t, "0.10", state.Items[0].TaxRate)
	assertMoney(t, "0.45", state.Items[0].TaxAmount)
	assertMoney(t, "0", state.Items[1].TaxRate)
	assertMoney(t, "0", state.Items[2].TaxRate)
	assertMoney(t, "0.45", state.Totals.TotalTax)

	err := m.SetTaxConfig(ctx, state, types.TaxConfig{Rate: money.MustParse("-0.01")})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assertMoney(t, "0.10", state.DefaultTaxRate)
}

func TestUpdateSettingsTaxIncluded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)
	product := coffee()
	product.Price = money.MustParse("10.80")
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: product, Quantity: 1}))
	assertMoney(t, "11.66", state.Totals.GrandTotal)

	included := true
	require.NoError(t, m.UpdateSettings(ctx, state, SettingsUpdate{TaxIncluded: &included}))
	assert.True(t, state.Settings.TaxIncluded)
	assertMoney(t, "0.80", state.Items[0].TaxAmount)
	assertMoney(t, "10.80", state.Totals.GrandTotal)

	backorder := true
	require.NoError(t, m.UpdateSettings(ctx, state, SettingsUpdate{AllowBackorder: &backorder}))
	assert.True(t, state.Settings.AllowBackorder)
	assert.True(t, state.Settings.TaxIncluded)

	negative := int32(-1)
	err := m.UpdateSettings(ctx, state, SettingsUpdate{RoundingPrecision: &negative})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, money.DefaultPrecision, state.Settings.RoundingPrecision)
}

func TestSetHold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _, state := newTestMachine(t)

	require.NoError(t, m.SetHold(ctx, state, "customer stepped away"))
	assert.Equal(t, "customer stepped away", state.HoldReason)
	require.NoError(t, m.SetHold(ctx, state, ""))
	assert.Empty(t, state.HoldReason)
}

func TestCreateNewCartClearsStoredEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, hooks, state := newTestMachine(t)
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))

	require.NoError(t, m.CreateNewCart(ctx, state, "store-2", ""))
	assert.Equal(t, "cart_2", state.CartID)
	assert.Empty(t, state.Items)
	assert.Equal(t, "store-2", *state.StoreID)
	assert.Nil(t, state.CashierID)
	assert.False(t, state.IsDirty)
	assert.Equal(t, 1, hooks.clears)
}

func TestMarkSaved(t *testing.T) {
	t.Parallel()

	m, _, state := newTestMachine(t)
	require.NoError(t, m.SetHold(context.Background(), state, "x"))
	m.MarkSaved(state)
	assert.False(t, state.IsDirty)
	m.MarkSaved(nil)
}

func TestTransitionsRequireState(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestMachine(t)
	err := m.AddItem(context.Background(), nil, AddItemInput{Product: coffee(), Quantity: 1})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal))
}
