package enums

import "fmt"

// PaymentMethodType describes the tender used for one leg of a (split) payment.
type PaymentMethodType string

const (
	PaymentMethodTypeCash          PaymentMethodType = "cash"
	PaymentMethodTypeCreditCard    PaymentMethodType = "credit_card"
	PaymentMethodTypeDebitCard     PaymentMethodType = "debit_card"
	PaymentMethodTypeDigitalWallet PaymentMethodType = "digital_wallet"
	PaymentMethodTypeGiftCard      PaymentMethodType = "gift_card"
	PaymentMethodTypeStoreCredit   PaymentMethodType = "store_credit"
)

var validPaymentMethodTypes = []PaymentMethodType{
	PaymentMethodTypeCash,
	PaymentMethodTypeCreditCard,
	PaymentMethodTypeDebitCard,
	PaymentMethodTypeDigitalWallet,
	PaymentMethodTypeGiftCard,
	PaymentMethodTypeStoreCredit,
}

// String implements fmt.Stringer.
func (p PaymentMethodType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethodType.
func (p PaymentMethodType) IsValid() bool {
	for _, candidate := range validPaymentMethodTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsCard reports whether the tender carries card metadata.
func (p PaymentMethodType) IsCard() bool {
	return p == PaymentMethodTypeCreditCard || p == PaymentMethodTypeDebitCard
}

// ParsePaymentMethodType converts raw input into a PaymentMethodType.
func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	for _, candidate := range validPaymentMethodTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method type %q", value)
}
