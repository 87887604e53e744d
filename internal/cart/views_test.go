package cart

import (
	"context"
	"testing"

	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewFixture(t *testing.T) *types.CartState {
	t.Helper()
	ctx := context.Background()
	m, _, state := newTestMachine(t)

	muffin := types.Product{
		ID:          "muffin",
		Name:        "Blueberry Muffin",
		Price:       money.MustParse("3.00"),
		Category:    "Bakery",
		Description: "baked daily",
		StockLevel:  intPtr(5),
	}
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: coffee(), Quantity: 2}))
	require.NoError(t, m.AddItem(ctx, state, AddItemInput{Product: muffin, Quantity: 1}))

	percentage := enums.DiscountTypePercentage
	require.NoError(t, m.UpdateItem(ctx, state, state.Items[0].ID, ItemUpdate{
		DiscountType:  &percentage,
		DiscountValue: decPtr("10"),
	}))
	return state
}

func TestFormatTotals(t *testing.T) {
	t.Parallel()

	state := viewFixture(t)
	formatted := FormatTotals(state.Totals, "$")

	// 9.00 + 3.00, less 0.90, plus 0.65 tax on the coffee only
	assert.Equal(t, FormattedTotals{
		Subtotal:              "$12.00",
		TotalDiscount:         "$0.90",
		SubtotalAfterDiscount: "$11.10",
		TotalTax:              "$0.65",
		GrandTotal:            "$11.75",
		ItemCount:             "3",
		UniqueItemCount:       "2",
	}, formatted)
}

func TestPaymentBreakdown(t *testing.T) {
	t.Parallel()

	state := viewFixture(t)
	state.PaymentMethods = []types.PaymentMethod{
		{ID: "card", Type: enums.PaymentMethodTypeCreditCard, Name: "Visa", Amount: money.MustParse("5.00")},
		{ID: "cash", Type: enums.PaymentMethodTypeCash, Name: "Cash", Amount: money.MustParse("10.00")},
	}

	breakdown := BuildPaymentBreakdown(state, "$")
	require.Len(t, breakdown.Methods, 2)
	assertMoney(t, "42.55", breakdown.Methods[0].Percentage)
	assert.Equal(t, "$5.00", breakdown.Methods[0].FormattedAmount)
	assertMoney(t, "15.00", breakdown.TotalPaid)
	assertMoney(t, "3.25", breakdown.Change)
	assert.True(t, breakdown.IsComplete)

	assertMoney(t, "0", RemainingBalance(state))

	state.PaymentMethods = state.PaymentMethods[:1]
	assertMoney(t, "6.75", RemainingBalance(state))
	assert.False(t, BuildPaymentBreakdown(state, "$").IsComplete)
}

func TestPaymentBreakdownEmptyCart(t *testing.T) {
	t.Parallel()

	_, _, state := newTestMachine(t)
	state.PaymentMethods = []types.PaymentMethod{{ID: "cash", Type: enums.PaymentMethodTypeCash, Amount: money.MustParse("1")}}

	breakdown := BuildPaymentBreakdown(state, "$")
	assertMoney(t, "0", breakdown.Methods[0].Percentage)
	assertMoney(t, "1", breakdown.Change)
}

func TestSavingsAndDiscountSummary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	state := viewFixture(t)
	m, _, _ := newTestMachine(t)
	require.NoError(t, m.ApplyDiscount(ctx, state, types.CartDiscount{
		ID: "two", Type: enums.DiscountTypeFixedAmount, Value: money.MustParse("2"), Name: "Two off",
	}))

	assertMoney(t, "2.90", TotalSavings(state))

	summary := SummarizeDiscounts(state)
	assertMoney(t, "0.90", summary.ItemDiscounts)
	assertMoney(t, "2.00", summary.GlobalDiscounts)
	assertMoney(t, "2.90", summary.TotalDiscounts)
	assert.Equal(t, 2, summary.DiscountCount)
}

func TestValidateCheckout(t *testing.T) {
	t.Parallel()

	_, _, empty := newTestMachine(t)
	v := ValidateCheckout(empty)
	assert.True(t, v.IsValid)
	assert.False(t, v.CanCheckout)

	state := viewFixture(t)
	assert.True(t, ValidateCheckout(state).CanCheckout)

	// the catalog changed after the lines were added
	state.Items[1].Product.StockLevel = intPtr(0)
	state.Items[0].Product.MaxQuantity = intPtr(1)
	v = ValidateCheckout(state)
	assert.False(t, v.CanCheckout)
	assert.Equal(t, []string{
		"Blueberry Muffin: Only 0 available, but 1 requested",
		"Drip Coffee: Maximum quantity is 1, but 2 requested",
	}, v.Issues)
	assert.Len(t, LowStockItems(state), 1)

	state.Settings.AllowBackorder = true
	assert.Len(t, ValidateCheckout(state).Issues, 1)
}

func TestItemFilters(t *testing.T) {
	t.Parallel()

	state := viewFixture(t)
	state.Items = append(state.Items, types.CartItem{ID: "misc", Product: types.Product{ID: "misc", Name: "Gift wrap"}, Quantity: 1})

	grouped := ItemsByCategory(state)
	assert.Len(t, grouped["Beverages"], 1)
	assert.Len(t, grouped["Bakery"], 1)
	assert.Len(t, grouped["Uncategorized"], 1)
	assert.Equal(t, []string{"Bakery", "Beverages", "Uncategorized"}, Categories(state))

	assert.Len(t, TaxableItems(state), 1)
	assert.Len(t, DiscountedItems(state), 1)
	assert.Empty(t, LowStockItems(state))

	assert.Len(t, SearchItems(state, ""), 3)
	assert.Len(t, SearchItems(state, "  BAKED "), 1)
	assert.Len(t, SearchItems(state, "bev"), 1)
	assert.Empty(t, SearchItems(state, "tea"))
}

func TestComputeStats(t *testing.T) {
	t.Parallel()

	_, _, empty := newTestMachine(t)
	assertMoney(t, "0", ComputeStats(empty).AverageItemValue)

	stats := ComputeStats(viewFixture(t))
	assertMoney(t, "6.00", stats.AverageItemValue)
	assertMoney(t, "1.50", stats.AverageQuantity)
	assertMoney(t, "7.50", stats.DiscountPercentage)
	assertMoney(t, "5.86", stats.TaxPercentage)
	assert.Equal(t, 1, stats.ItemsWithDiscounts)
	assert.Equal(t, 2, stats.CategoriesCount)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	state := viewFixture(t)
	state.Customer = &types.CartCustomer{FirstName: "Ada", LastName: "Lovelace"}
	state.HoldReason = "price check"

	summary := Summarize(state, "€")
	assert.False(t, summary.IsEmpty)
	assert.Equal(t, "€11.75", summary.GrandTotal)
	require.NotNil(t, summary.CustomerName)
	assert.Equal(t, "Ada Lovelace", *summary.CustomerName)
	assert.True(t, summary.CanCheckout)
	assert.True(t, summary.OnHold)
	assert.Empty(t, summary.ValidationIssues)
}

func TestBuildReceipt(t *testing.T) {
	t.Parallel()

	state := viewFixture(t)
	state.SaleNumber = "S-1001"
	state.PaymentMethods = []types.PaymentMethod{{ID: "cash", Type: enums.PaymentMethodTypeCash, Name: "Cash", Amount: money.MustParse("20")}}

	receipt := BuildReceipt(state, "$")
	assert.Equal(t, state.CartID, receipt.CartID)
	assert.Equal(t, "S-1001", receipt.SaleNumber)
	assert.Equal(t, "store-1", *receipt.Store.ID)
	require.Len(t, receipt.Items, 2)
	assert.Equal(t, ReceiptLine{
		Name:      "Drip Coffee",
		Quantity:  2,
		UnitPrice: "$4.50",
		LineTotal: "$9.00",
		Discount:  strPtr("$0.90"),
		Tax:       "$0.65",
	}, receipt.Items[0])
	assert.Nil(t, receipt.Items[1].Discount)
	assert.Equal(t, []ReceiptPayment{{Type: "Cash", Amount: "$20.00"}}, receipt.Payments)
	assert.Equal(t, "$8.25", receipt.Change)
	assert.Equal(t, "$11.75", receipt.Totals.GrandTotal)
	assert.Empty(t, receipt.AppliedDiscounts)
}

func strPtr(v string) *string { return &v }
