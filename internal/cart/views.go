package cart

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/angelmondragon/intellisales-pos/internal/pricing"
	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	"github.com/angelmondragon/intellisales-pos/pkg/money"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
)

// Read-only projections of a cart for display and checkout. None of them
// change the state they are given.

const uncategorized = "Uncategorized"

var hundred = decimal.NewFromInt(100)

type FormattedTotals struct {
	Subtotal              string `json:"subtotal"`
	TotalDiscount         string `json:"totalDiscount"`
	SubtotalAfterDiscount string `json:"subtotalAfterDiscount"`
	TotalTax              string `json:"totalTax"`
	GrandTotal            string `json:"grandTotal"`
	ItemCount             string `json:"itemCount"`
	UniqueItemCount       string `json:"uniqueItemCount"`
}

func FormatTotals(totals types.CartTotals, symbol string) FormattedTotals {
	return FormattedTotals{
		Subtotal:              money.Format(totals.Subtotal, symbol),
		TotalDiscount:         money.Format(totals.TotalDiscount, symbol),
		SubtotalAfterDiscount: money.Format(totals.SubtotalAfterDiscount, symbol),
		TotalTax:              money.Format(totals.TotalTax, symbol),
		GrandTotal:            money.Format(totals.GrandTotal, symbol),
		ItemCount:             fmt.Sprint(totals.ItemCount),
		UniqueItemCount:       fmt.Sprint(totals.UniqueItemCount),
	}
}

// PaymentShare is a tender with its share of the grand total in percent.
type PaymentShare struct {
	types.PaymentMethod
	Percentage      decimal.Decimal `json:"percentage"`
	FormattedAmount string          `json:"formattedAmount"`
}

type PaymentBreakdown struct {
	Methods    []PaymentShare  `json:"methods"`
	TotalPaid  decimal.Decimal `json:"totalPaid"`
	IsComplete bool            `json:"isComplete"`
	Change     decimal.Decimal `json:"change"`
}

func BuildPaymentBreakdown(state *types.CartState, symbol string) PaymentBreakdown {
	grandTotal := state.Totals.GrandTotal
	validation := pricing.ValidatePaymentAmounts(pricing.PaymentAmounts(state.PaymentMethods), grandTotal)

	methods := make([]PaymentShare, 0, len(state.PaymentMethods))
	for _, pm := range state.PaymentMethods {
		share := decimal.Zero
		if grandTotal.IsPositive() {
			share = money.Round(pm.Amount.Div(grandTotal).Mul(hundred))
		}
		methods = append(methods, PaymentShare{
			PaymentMethod:   pm,
			Percentage:      share,
			FormattedAmount: money.Format(pm.Amount, symbol),
		})
	}

	return PaymentBreakdown{
		Methods:    methods,
		TotalPaid:  validation.TotalPaid,
		IsComplete: validation.IsValid,
		Change:     validation.Change,
	}
}

// TotalPaid sums every tender, rounded.
func TotalPaid(state *types.CartState) decimal.Decimal {
	return money.Round(money.Sum(pricing.PaymentAmounts(state.PaymentMethods)...))
}

// RemainingBalance is what is still owed, never negative.
func RemainingBalance(state *types.CartState) decimal.Decimal {
	return money.Max(decimal.Zero, money.Round(state.Totals.GrandTotal.Sub(TotalPaid(state))))
}

// TotalSavings is every discount granted, item-level and cart-level. The
// totals already carry both.
func TotalSavings(state *types.CartState) decimal.Decimal {
	return money.Round(state.Totals.TotalDiscount)
}

type DiscountSummary struct {
	ItemDiscounts   decimal.Decimal `json:"itemDiscounts"`
	GlobalDiscounts decimal.Decimal `json:"globalDiscounts"`
	TotalDiscounts  decimal.Decimal `json:"totalDiscounts"`
	DiscountCount   int             `json:"discountCount"`
}

// SummarizeDiscounts splits the computed discount total into its item-level
// and cart-level parts.
func SummarizeDiscounts(state *types.CartState) DiscountSummary {
	itemDiscounts := money.Round(pricing.ItemDiscounts(state.Items))
	if len(state.Items) == 0 {
		itemDiscounts = decimal.Zero
	}
	total := money.Round(state.Totals.TotalDiscount)
	return DiscountSummary{
		ItemDiscounts:   itemDiscounts,
		GlobalDiscounts: money.Max(decimal.Zero, money.Round(total.Sub(itemDiscounts))),
		TotalDiscounts:  total,
		DiscountCount:   len(state.AppliedDiscounts) + len(DiscountedItems(state)),
	}
}

type CheckoutValidation struct {
	IsValid     bool     `json:"isValid"`
	Issues      []string `json:"issues"`
	CanCheckout bool     `json:"canCheckout"`
}

// ValidateCheckout lists stock and maximum quantity problems. Stock is not
// checked when backorders are allowed.
func ValidateCheckout(state *types.CartState) CheckoutValidation {
	issues := []string{}
	if !state.Settings.AllowBackorder {
		for _, item := range state.Items {
			if stock := item.Product.StockLevel; stock != nil && item.Quantity > *stock {
				issues = append(issues, fmt.Sprintf("%s: Only %d available, but %d requested", item.Product.Name, *stock, item.Quantity))
			}
		}
	}
	for _, item := range state.Items {
		if limit := item.Product.MaxQuantity; limit != nil && *limit > 0 && item.Quantity > *limit {
			issues = append(issues, fmt.Sprintf("%s: Maximum quantity is %d, but %d requested", item.Product.Name, *limit, item.Quantity))
		}
	}
	return CheckoutValidation{
		IsValid:     len(issues) == 0,
		Issues:      issues,
		CanCheckout: len(issues) == 0 && len(state.Items) > 0,
	}
}

// ItemsByCategory groups lines by product category. Lines without one go
// under "Uncategorized".
func ItemsByCategory(state *types.CartState) map[string][]types.CartItem {
	grouped := map[string][]types.CartItem{}
	for _, item := range state.Items {
		category := item.Product.Category
		if category == "" {
			category = uncategorized
		}
		grouped[category] = append(grouped[category], item)
	}
	return grouped
}

// LowStockItems returns lines asking for more than the known stock.
func LowStockItems(state *types.CartState) []types.CartItem {
	return filterItems(state.Items, func(item types.CartItem) bool {
		return item.Product.StockLevel != nil && *item.Product.StockLevel < item.Quantity
	})
}

func TaxableItems(state *types.CartState) []types.CartItem {
	return filterItems(state.Items, func(item types.CartItem) bool { return item.Product.Taxable })
}

func DiscountedItems(state *types.CartState) []types.CartItem {
	return filterItems(state.Items, func(item types.CartItem) bool { return item.DiscountAmount.IsPositive() })
}

// SearchItems matches term case-insensitively against product name, category
// and description. An empty term matches everything.
func SearchItems(state *types.CartState, term string) []types.CartItem {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]types.CartItem{}, state.Items...)
	}
	return filterItems(state.Items, func(item types.CartItem) bool {
		return strings.Contains(strings.ToLower(item.Product.Name), term) ||
			strings.Contains(strings.ToLower(item.Product.Category), term) ||
			strings.Contains(strings.ToLower(item.Product.Description), term)
	})
}

func filterItems(items []types.CartItem, keep func(types.CartItem) bool) []types.CartItem {
	out := []types.CartItem{}
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

type Stats struct {
	AverageItemValue   decimal.Decimal `json:"averageItemValue"`
	AverageQuantity    decimal.Decimal `json:"averageQuantity"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	TaxPercentage      decimal.Decimal `json:"taxPercentage"`
	ItemsWithDiscounts int             `json:"itemsWithDiscounts"`
	CategoriesCount    int             `json:"categoriesCount"`
}

// ComputeStats derives averages per line and discount and tax ratios in
// percent, each rounded to cents.
func ComputeStats(state *types.CartState) Stats {
	totals := state.Totals
	out := Stats{
		AverageItemValue:   decimal.Zero,
		AverageQuantity:    decimal.Zero,
		DiscountPercentage: decimal.Zero,
		TaxPercentage:      decimal.Zero,
		ItemsWithDiscounts: len(DiscountedItems(state)),
	}

	if lines := int64(len(state.Items)); lines > 0 {
		out.AverageItemValue = money.Round(totals.Subtotal.Div(decimal.NewFromInt(lines)))
		out.AverageQuantity = money.Round(decimal.NewFromInt(int64(totals.ItemCount)).Div(decimal.NewFromInt(lines)))
	}
	if totals.Subtotal.IsPositive() {
		out.DiscountPercentage = money.Round(totals.TotalDiscount.Div(totals.Subtotal).Mul(hundred))
	}
	if totals.SubtotalAfterDiscount.IsPositive() {
		out.TaxPercentage = money.Round(totals.TotalTax.Div(totals.SubtotalAfterDiscount).Mul(hundred))
	}

	categories := map[string]struct{}{}
	for _, item := range state.Items {
		categories[item.Product.Category] = struct{}{}
	}
	out.CategoriesCount = len(categories)
	return out
}

type Summary struct {
	IsEmpty          bool     `json:"isEmpty"`
	ItemCount        int      `json:"itemCount"`
	UniqueItemCount  int      `json:"uniqueItemCount"`
	GrandTotal       string   `json:"grandTotal"`
	HasCustomer      bool     `json:"hasCustomer"`
	CustomerName     *string  `json:"customerName"`
	CanCheckout      bool     `json:"canCheckout"`
	ValidationIssues []string `json:"validationIssues"`
	OnHold           bool     `json:"onHold"`
}

func Summarize(state *types.CartState, symbol string) Summary {
	validation := ValidateCheckout(state)
	summary := Summary{
		IsEmpty:          len(state.Items) == 0,
		ItemCount:        state.Totals.ItemCount,
		UniqueItemCount:  state.Totals.UniqueItemCount,
		GrandTotal:       money.Format(state.Totals.GrandTotal, symbol),
		HasCustomer:      state.Customer != nil,
		CanCheckout:      validation.CanCheckout,
		ValidationIssues: validation.Issues,
		OnHold:           state.HoldReason != "",
	}
	if state.Customer != nil {
		name := state.Customer.DisplayName()
		summary.CustomerName = &name
	}
	return summary
}

type ReceiptParty struct {
	ID *string `json:"id"`
}

type ReceiptLine struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice string  `json:"unitPrice"`
	LineTotal string  `json:"lineTotal"`
	Discount  *string `json:"discount"`
	Tax       string  `json:"tax"`
}

type ReceiptPayment struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

type ReceiptDiscount struct {
	Name  string             `json:"name"`
	Type  enums.DiscountType `json:"type"`
	Value decimal.Decimal    `json:"value"`
}

// Receipt is the checkout-ready rendering of a cart.
type Receipt struct {
	CartID           string              `json:"cartId"`
	SaleNumber       string              `json:"saleNumber,omitempty"`
	ReceiptNumber    string              `json:"receiptNumber,omitempty"`
	Timestamp        time.Time           `json:"timestamp"`
	Store            ReceiptParty        `json:"store"`
	Cashier          ReceiptParty        `json:"cashier"`
	Customer         *types.CartCustomer `json:"customer"`
	Items            []ReceiptLine       `json:"items"`
	Totals           FormattedTotals     `json:"totals"`
	Payments         []ReceiptPayment    `json:"payments"`
	AppliedDiscounts []ReceiptDiscount   `json:"appliedDiscounts"`
	Change           string              `json:"change"`
}

func BuildReceipt(state *types.CartState, symbol string) Receipt {
	breakdown := BuildPaymentBreakdown(state, symbol)

	items := make([]ReceiptLine, 0, len(state.Items))
	for _, item := range state.Items {
		line := ReceiptLine{
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			UnitPrice: money.Format(item.UnitPrice, symbol),
			LineTotal: money.Format(item.LineTotal, symbol),
			Tax:       money.Format(item.TaxAmount, symbol),
		}
		if item.DiscountAmount.IsPositive() {
			discount := money.Format(item.DiscountAmount, symbol)
			line.Discount = &discount
		}
		items = append(items, line)
	}

	payments := make([]ReceiptPayment, 0, len(breakdown.Methods))
	for _, share := range breakdown.Methods {
		payments = append(payments, ReceiptPayment{Type: share.Name, Amount: share.FormattedAmount})
	}

	discounts := make([]ReceiptDiscount, 0, len(state.AppliedDiscounts))
	for _, d := range state.AppliedDiscounts {
		discounts = append(discounts, ReceiptDiscount{Name: d.Name, Type: d.Type, Value: d.Value})
	}

	var customer *types.CartCustomer
	if state.Customer != nil {
		c := *state.Customer
		customer = &c
	}

	return Receipt{
		CartID:           state.CartID,
		SaleNumber:       state.SaleNumber,
		ReceiptNumber:    state.ReceiptNumber,
		Timestamp:        state.UpdatedAt,
		Store:            ReceiptParty{ID: state.StoreID},
		Cashier:          ReceiptParty{ID: state.CashierID},
		Customer:         customer,
		Items:            items,
		Totals:           FormatTotals(state.Totals, symbol),
		Payments:         payments,
		AppliedDiscounts: discounts,
		Change:           money.Format(breakdown.Change, symbol),
	}
}

// Categories returns the distinct categories in the cart, sorted.
func Categories(state *types.CartState) []string {
	grouped := ItemsByCategory(state)
	out := make([]string, 0, len(grouped))
	for category := range grouped {
		out = append(out, category)
	}
	slices.Sort(out)
	return out
}
