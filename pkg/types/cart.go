package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	"github.com/shopspring/decimal"
)

// Product is the catalog snapshot captured when a line is added. The engine
// never mutates it.
type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	Category    string           `json:"category"`
	Description string           `json:"description,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Taxable     bool             `json:"taxable"`
	TaxRate     *decimal.Decimal `json:"taxRate,omitempty"`
	StockLevel  *int             `json:"stockLevel,omitempty"`
	MaxQuantity *int             `json:"maxQuantity,omitempty"`
}

// ItemAmounts holds the derived money fields of a line. Only the pricing
// calculator produces them.
type ItemAmounts struct {
	LineTotal              decimal.Decimal `json:"lineTotal"`
	DiscountAmount         decimal.Decimal `json:"discountAmount"`
	LineTotalAfterDiscount decimal.Decimal `json:"lineTotalAfterDiscount"`
	TaxableAmount          decimal.Decimal `json:"taxableAmount"`
	TaxAmount              decimal.Decimal `json:"taxAmount"`
}

// CartItem is one line of the sale. ID is distinct from the product id so the
// same product may appear with different prices or notes.
type CartItem struct {
	ID            string             `json:"id"`
	Product       Product            `json:"product"`
	Quantity      int                `json:"quantity"`
	UnitPrice     decimal.Decimal    `json:"unitPrice"`
	DiscountType  enums.DiscountType `json:"discountType,omitempty"`
	DiscountValue decimal.Decimal    `json:"discountValue"`
	TaxRate       decimal.Decimal    `json:"taxRate"`
	Notes         string             `json:"notes,omitempty"`
	AddedAt       time.Time          `json:"addedAt"`
	ModifiedAt    time.Time          `json:"modifiedAt"`
	ItemAmounts
}

// HasDiscount reports whether an item-level discount is configured.
func (i CartItem) HasDiscount() bool {
	return i.DiscountType != "" && !i.DiscountValue.IsZero()
}

type CartCustomer struct {
	ID              string           `json:"id,omitempty"`
	FirstName       string           `json:"firstName,omitempty"`
	LastName        string           `json:"lastName,omitempty"`
	Email           string           `json:"email,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	MembershipLevel string           `json:"membershipLevel,omitempty"`
	LoyaltyPoints   *int             `json:"loyaltyPoints,omitempty"`
	MemberDiscount  *decimal.Decimal `json:"memberDiscount,omitempty"`
}

// DisplayName joins first and last name, skipping empty parts.
func (c CartCustomer) DisplayName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// CartDiscount is a cart-level discount. buy_x_get_y is recognized but
// contributes nothing to totals.
type CartDiscount struct {
	ID                   string             `json:"id"`
	Type                 enums.DiscountType `json:"type"`
	Value                decimal.Decimal    `json:"value"`
	Name                 string             `json:"name"`
	Description          string             `json:"description,omitempty"`
	MinimumAmount        *decimal.Decimal   `json:"minimumAmount,omitempty"`
	ApplicableCategories []string           `json:"applicableCategories,omitempty"`
	ApplicableProducts   []string           `json:"applicableProducts,omitempty"`
	BuyQuantity          *int               `json:"buyQuantity,omitempty"`
	GetQuantity          *int               `json:"getQuantity,omitempty"`
	ValidFrom            *time.Time         `json:"validFrom,omitempty"`
	ValidUntil           *time.Time         `json:"validUntil,omitempty"`
}

type TaxConfig struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Rate                 decimal.Decimal `json:"rate"`
	Description          string          `json:"description,omitempty"`
	ApplicableCategories []string        `json:"applicableCategories,omitempty"`
	ExemptProducts       []string        `json:"exemptProducts,omitempty"`
}

// PaymentMethod is one tender of a possibly split payment.
type PaymentMethod struct {
	ID            string                  `json:"id"`
	Type          enums.PaymentMethodType `json:"type"`
	Name          string                  `json:"name"`
	Amount        decimal.Decimal         `json:"amount"`
	CardLast4     string                  `json:"cardLast4,omitempty"`
	CardType      string                  `json:"cardType,omitempty"`
	TransactionID string                  `json:"transactionId,omitempty"`
}

// CartTotals is always derived from the items and discounts it was computed from.
type CartTotals struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	TotalDiscount         decimal.Decimal `json:"totalDiscount"`
	SubtotalAfterDiscount decimal.Decimal `json:"subtotalAfterDiscount"`
	TotalTax              decimal.Decimal `json:"totalTax"`
	GrandTotal            decimal.Decimal `json:"grandTotal"`
	ItemCount             int             `json:"itemCount"`
	UniqueItemCount       int             `json:"uniqueItemCount"`
}

type CartSettings struct {
	AutoCalculateTax  bool  `json:"autoCalculateTax"`
	AllowBackorder    bool  `json:"allowBackorder"`
	RoundingPrecision int32 `json:"roundingPrecision"`
	TaxIncluded       bool  `json:"taxIncluded"`
}

// CartState is the canonical in-progress sale. The host owns one per
// execution context and passes it by reference into every transition.
type CartState struct {
	Items            []CartItem      `json:"items"`
	Customer         *CartCustomer   `json:"customer"`
	AppliedDiscounts []CartDiscount  `json:"appliedDiscounts"`
	TaxConfig        *TaxConfig      `json:"taxConfig"`
	DefaultTaxRate   decimal.Decimal `json:"defaultTaxRate"`
	PaymentMethods   []PaymentMethod `json:"paymentMethods"`
	Totals           CartTotals      `json:"totals"`

	CartID    string  `json:"cartId"`
	StoreID   *string `json:"storeId"`
	CashierID *string `json:"cashierId"`

	IsLoading bool    `json:"isLoading"`
	Error     *string `json:"error"`
	IsDirty   bool    `json:"isDirty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	HoldReason    string `json:"holdReason,omitempty"`
	ReceiptNumber string `json:"receiptNumber,omitempty"`
	SaleNumber    string `json:"saleNumber,omitempty"`

	Settings CartSettings `json:"settings"`
}

// ErrorMessage returns the last validation error, or "".
func (s *CartState) ErrorMessage() string {
	if s == nil || s.Error == nil {
		return ""
	}
	return *s.Error
}

// Clone returns a deep copy so readers never share slices with the owner.
func (s *CartState) Clone() *CartState {
	if s == nil {
		return nil
	}
	out := *s
	out.Items = cloneSlice(s.Items)
	out.AppliedDiscounts = cloneSlice(s.AppliedDiscounts)
	out.PaymentMethods = cloneSlice(s.PaymentMethods)
	if s.Customer != nil {
		customer := *s.Customer
		out.Customer = &customer
	}
	if s.TaxConfig != nil {
		cfg := *s.TaxConfig
		out.TaxConfig = &cfg
	}
	out.StoreID = cloneString(s.StoreID)
	out.CashierID = cloneString(s.CashierID)
	out.Error = cloneString(s.Error)
	return &out
}

// cloneSlice keeps an empty slice empty instead of nil.
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CartSyncEvent is the payload broadcast to other execution contexts sharing
// the same storage namespace. Timestamp is unix milliseconds.
type CartSyncEvent struct {
	Type      enums.SyncEventType `json:"type"`
	CartID    string              `json:"cartId"`
	Timestamp int64               `json:"timestamp"`
	Data      json.RawMessage     `json:"data,omitempty"`
}
