package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferPending      TransferStatus = "pending"
	TransferCompleted    TransferStatus = "completed"
	TransferManualReview TransferStatus = "manual_review"
	TransferRejected     TransferStatus = "rejected"
)

// AssetTransfer records one ownership transfer between two users. Transfers
// scoring above the risk threshold park in manual_review until an operator
// resolves them; the asset is untouched while held.
type AssetTransfer struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	AssetID    uuid.UUID       `json:"asset_id" db:"asset_id"`
	FromUserID uuid.UUID       `json:"from_user_id" db:"from_user_id"`
	ToUserID   uuid.UUID       `json:"to_user_id" db:"to_user_id"`
	Status     TransferStatus  `json:"status" db:"status"`
	RiskScore  decimal.Decimal `json:"risk_score" db:"risk_score"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
}
