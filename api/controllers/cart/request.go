package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/intellisales-pos/internal/cart"
	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

const defaultAddQuantity = 1

type productPayload struct {
	ID          string           `json:"id" validate:"required,max=128"`
	Name        string           `json:"name" validate:"required,max=256"`
	Price       decimal.Decimal  `json:"price"`
	Category    string           `json:"category" validate:"max=128"`
	Description string           `json:"description" validate:"max=2000"`
	ImageURL    string           `json:"imageUrl" validate:"omitempty,url"`
	Taxable     bool             `json:"taxable"`
	TaxRate     *decimal.Decimal `json:"taxRate"`
	StockLevel  *int             `json:"stockLevel" validate:"omitempty,gte=0"`
	MaxQuantity *int             `json:"maxQuantity" validate:"omitempty,gte=0"`
}

func (p productPayload) toProduct() (types.Product, error) {
	if p.Price.IsNegative() {
		return types.Product{}, fieldError("product.price", "must not be negative")
	}
	if p.TaxRate != nil && p.TaxRate.IsNegative() {
		return types.Product{}, fieldError("product.taxRate", "must not be negative")
	}
	return types.Product{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Taxable:     p.Taxable,
		TaxRate:     p.TaxRate,
		StockLevel:  p.StockLevel,
		MaxQuantity: p.MaxQuantity,
	}, nil
}

// addItemRequest leaves quantity optional; an omitted quantity adds one.
type addItemRequest struct {
	Product   productPayload   `json:"product" validate:"required"`
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Notes     string           `json:"notes" validate:"max=500"`
}

func (r addItemRequest) toInput() (cartsvc.AddItemInput, error) {
	product, err := r.Product.toProduct()
	if err != nil {
		return cartsvc.AddItemInput{}, err
	}
	if r.UnitPrice != nil && r.UnitPrice.IsNegative() {
		return cartsvc.AddItemInput{}, fieldError("unitPrice", "must not be negative")
	}
	quantity := defaultAddQuantity
	if r.Quantity != nil {
		quantity = *r.Quantity
	}
	return cartsvc.AddItemInput{
		Product:   product,
		Quantity:  quantity,
		UnitPrice: r.UnitPrice,
		Notes:     r.Notes,
	}, nil
}

type updateItemRequest struct {
	Quantity      *int             `json:"quantity"`
	UnitPrice     *decimal.Decimal `json:"unitPrice"`
	Notes         *string          `json:"notes" validate:"omitempty,max=500"`
	DiscountType  *string          `json:"discountType"`
	DiscountValue *decimal.Decimal `json:"discountValue"`
}

func (r updateItemRequest) toUpdate() (cartsvc.ItemUpdate, error) {
	update := cartsvc.ItemUpdate{
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Notes:         r.Notes,
		DiscountValue: r.DiscountValue,
	}
	if r.UnitPrice != nil && r.UnitPrice.IsNegative() {
		return update, fieldError("unitPrice", "must not be negative")
	}
	if r.DiscountValue != nil && r.DiscountValue.IsNegative() {
		return update, fieldError("discountValue", "must not be negative")
	}
	if r.DiscountType != nil {
		// an empty type removes the item discount
		discountType := enums.DiscountType("")
		if *r.DiscountType != "" {
			parsed, err := enums.ParseDiscountType(*r.DiscountType)
			if err != nil {
				return update, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
			}
			discountType = parsed
		}
		update.DiscountType = &discountType
	}
	return update, nil
}

type discountRequest struct {
	ID                   string           `json:"id" validate:"required,max=128"`
	Type                 string           `json:"type" validate:"required"`
	Value                decimal.Decimal  `json:"value"`
	Name                 string           `json:"name" validate:"required,max=256"`
	Description          string           `json:"description" validate:"max=2000"`
	MinimumAmount        *decimal.Decimal `json:"minimumAmount"`
	ApplicableCategories []string         `json:"applicableCategories"`
	ApplicableProducts   []string         `json:"applicableProducts"`
	BuyQuantity          *int             `json:"buyQuantity" validate:"omitempty,gte=1"`
	GetQuantity          *int             `json:"getQuantity" validate:"omitempty,gte=1"`
	ValidFrom            *time.Time       `json:"validFrom"`
	ValidUntil           *time.Time       `json:"validUntil"`
}

func (r discountRequest) toDiscount() (types.CartDiscount, error) {
	discountType, err := enums.ParseDiscountType(r.Type)
	if err != nil {
		return types.CartDiscount{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
	}
	if r.Value.IsNegative() {
		return types.CartDiscount{}, fieldError("value", "must not be negative")
	}
	return types.CartDiscount{
		ID:                   r.ID,
		Type:                 discountType,
		Value:                r.Value,
		Name:                 r.Name,
		Description:          r.Description,
		MinimumAmount:        r.MinimumAmount,
		ApplicableCategories: r.ApplicableCategories,
		ApplicableProducts:   r.ApplicableProducts,
		BuyQuantity:          r.BuyQuantity,
		GetQuantity:          r.GetQuantity,
		ValidFrom:            r.ValidFrom,
		ValidUntil:           r.ValidUntil,
	}, nil
}

type customerRequest struct {
	ID              string           `json:"id" validate:"max=128"`
	FirstName       string           `json:"firstName" validate:"max=128"`
	LastName        string           `json:"lastName" validate:"max=128"`
	Email           string           `json:"email" validate:"omitempty,email"`
	Phone           string           `json:"phone" validate:"max=32"`
	MembershipLevel string           `json:"membershipLevel" validate:"max=64"`
	LoyaltyPoints   *int             `json:"loyaltyPoints" validate:"omitempty,gte=0"`
	MemberDiscount  *decimal.Decimal `json:"memberDiscount"`
}

func (r customerRequest) toCustomer() *types.CartCustomer {
	return &types.CartCustomer{
		ID:              r.ID,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
		Phone:           r.Phone,
		MembershipLevel: r.MembershipLevel,
		LoyaltyPoints:   r.LoyaltyPoints,
		MemberDiscount:  r.MemberDiscount,
	}
}

// paymentRequest may omit the id; one is generated so the tender can be
// removed later.
type paymentRequest struct {
	ID            string          `json:"id" validate:"max=128"`
	Type          string          `json:"type" validate:"required"`
	Name          string          `json:"name" validate:"max=128"`
	Amount        decimal.Decimal `json:"amount"`
	CardLast4     string          `json:"cardLast4" validate:"omitempty,len=4,numeric"`
	CardType      string          `json:"cardType" validate:"max=32"`
	TransactionID string          `json:"transactionId" validate:"max=128"`
}

func (r paymentRequest) toPaymentMethod() (types.PaymentMethod, error) {
	methodType, err := enums.ParsePaymentMethodType(r.Type)
	if err != nil {
		return types.PaymentMethod{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method type")
	}
	if r.Amount.IsNegative() {
		return types.PaymentMethod{}, fieldError("amount", "must not be negative")
	}
	id := r.ID
	if id == "" {
		id = "pm_" + uuid.NewString()
	}
	name := r.Name
	if name == "" {
		name = methodType.String()
	}
	return types.PaymentMethod{
		ID:            id,
		Type:          methodType,
		Name:          name,
		Amount:        r.Amount,
		CardLast4:     r.CardLast4,
		CardType:      r.CardType,
		TransactionID: r.TransactionID,
	}, nil
}

type taxConfigRequest struct {
	ID                   string          `json:"id" validate:"required,max=128"`
	Name                 string          `json:"name" validate:"required,max=256"`
	Rate                 decimal.Decimal `json:"rate"`
	Description          string          `json:"description" validate:"max=2000"`
	ApplicableCategories []string        `json:"applicableCategories"`
	ExemptProducts       []string        `json:"exemptProducts"`
}

func (r taxConfigRequest) toTaxConfig() types.TaxConfig {
	return types.TaxConfig{
		ID:                   r.ID,
		Name:                 r.Name,
		Rate:                 r.Rate,
		Description:          r.Description,
		ApplicableCategories: r.ApplicableCategories,
		ExemptProducts:       r.ExemptProducts,
	}
}

type settingsRequest struct {
	AutoCalculateTax  *bool  `json:"autoCalculateTax"`
	AllowBackorder    *bool  `json:"allowBackorder"`
	RoundingPrecision *int32 `json:"roundingPrecision" validate:"omitempty,max=4"`
	TaxIncluded       *bool  `json:"taxIncluded"`
}

func (r settingsRequest) toUpdate() cartsvc.SettingsUpdate {
	return cartsvc.SettingsUpdate{
		AutoCalculateTax:  r.AutoCalculateTax,
		AllowBackorder:    r.AllowBackorder,
		RoundingPrecision: r.RoundingPrecision,
		TaxIncluded:       r.TaxIncluded,
	}
}

type holdRequest struct {
	Reason string `json:"reason" validate:"max=256"`
}

type newCartRequest struct {
	StoreID   string `json:"storeId" validate:"max=128"`
	CashierID string `json:"cashierId" validate:"max=128"`
}

func fieldError(field, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
		WithDetails(map[string]string{field: message})
}
