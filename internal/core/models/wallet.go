package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds one user's balance in one fiat currency. Balances are stored
// in minor units; the currencies table defines the scale.
type Wallet struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Balance      int64     `json:"balance" db:"balance"`
	CurrencyCode string    `json:"currency" db:"currency_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// OperationType is the direction of a standalone wallet operation.
type OperationType string

const (
	OperationDeposit  OperationType = "DEPOSIT"
	OperationWithdraw OperationType = "WITHDRAW"
)

// WalletOperation is a deposit/withdraw request against one user's wallet.
type WalletOperation struct {
	UserID        uuid.UUID       `json:"userId"`
	CurrencyCode  string          `json:"currency"`
	OperationType OperationType   `json:"operationType"`
	Amount        string          `json:"amount"`
	DecimalAmount decimal.Decimal `json:"-"`
}
