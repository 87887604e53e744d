package pricing

import (
	"testing"

	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

func intPtr(v int) *int { return &v }

func TestValidateQuantity(t *testing.T) {
	t.Parallel()

	product := types.Product{ID: "p", StockLevel: intPtr(5), MaxQuantity: intPtr(10)}

	cases := []struct {
		name      string
		quantity  int
		product   types.Product
		backorder bool
		valid     bool
		message   string
		adjusted  int
	}{
		{name: "zero", quantity: 0, product: product, message: "Quantity must be greater than 0"},
		{name: "negative", quantity: -2, product: product, message: "Quantity must be greater than 0"},
		{name: "over max", quantity: 11, product: product, backorder: true, message: "Maximum quantity allowed is 10", adjusted: 10},
		{name: "over stock", quantity: 6, product: product, message: "Only 5 items available in stock", adjusted: 5},
		{name: "backorder", quantity: 6, product: product, backorder: true, valid: true},
		{name: "within", quantity: 5, product: product, valid: true},
		{name: "unbounded", quantity: 500, product: types.Product{ID: "x"}, valid: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ValidateQuantity(tc.quantity, tc.product, tc.backorder)
			if got.IsValid != tc.valid {
				t.Fatalf("expected valid=%v, got %+v", tc.valid, got)
			}
			if got.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, got.Message)
			}
			if tc.adjusted != 0 && (got.AdjustedQuantity == nil || *got.AdjustedQuantity != tc.adjusted) {
				t.Fatalf("expected adjusted %d, got %v", tc.adjusted, got.AdjustedQuantity)
			}
		})
	}
}

func TestIsSameCartItem(t *testing.T) {
	t.Parallel()

	a := testItem("4.50", 1, "0.08", true)
	b := testItem("4.50", 3, "0.08", true)
	if !IsSameCartItem(a, b) {
		t.Fatalf("expected matching lines")
	}

	b.Notes = "oat milk"
	if IsSameCartItem(a, b) {
		t.Fatalf("expected notes to distinguish lines")
	}

	b.Notes = ""
	b.UnitPrice = money.MustParse("4.00")
	if IsSameCartItem(a, b) {
		t.Fatalf("expected price to distinguish lines")
	}
}
