package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentWalletDinar  PaymentMethod = "wallet_dinar"
	PaymentWalletDollar PaymentMethod = "wallet_dollar"
	PaymentCoupon       PaymentMethod = "coupon"
	PaymentCash         PaymentMethod = "cash" // physical purchases only, settled at pickup
)

// WalletCurrency maps a wallet payment method to the currency it debits.
// Returns "" for non-wallet methods.
func (m PaymentMethod) WalletCurrency() string {
	switch m {
	case PaymentWalletDinar:
		return CurrencyLYD
	case PaymentWalletDollar:
		return CurrencyUSD
	default:
		return ""
	}
}

// PurchaseInvoice is the immutable record of one completed purchase.
type PurchaseInvoice struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	UserID         uuid.UUID     `json:"user_id" db:"user_id"`
	Amount         int64         `json:"amount" db:"amount"`         // total incl. commission, minor units
	Commission     int64         `json:"commission" db:"commission"` // minor units
	PaymentMethod  PaymentMethod `json:"payment_method" db:"payment_method"`
	IsDigital      bool          `json:"is_digital" db:"is_digital"`
	AssetID        *uuid.UUID    `json:"asset_id,omitempty" db:"asset_id"`
	IdempotencyKey *string       `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}
