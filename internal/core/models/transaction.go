package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionDeposit     TransactionType = "deposit"
	TransactionWithdrawal  TransactionType = "withdrawal"
	TransactionPurchase    TransactionType = "purchase"
	TransactionTransferIn  TransactionType = "transfer_in"
	TransactionTransferOut TransactionType = "transfer_out"
)

// Transaction is one append-only ledger entry. Amount is signed in minor
// units: credits positive, debits negative. Rows are never updated or
// deleted once written.
type Transaction struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	Type         TransactionType `json:"type" db:"type"`
	Amount       int64           `json:"amount" db:"amount"`
	CurrencyCode string          `json:"currency" db:"currency_code"`
	Description  string          `json:"description" db:"description"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
