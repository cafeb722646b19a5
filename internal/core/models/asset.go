package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AssetStatus string

const (
	AssetNotReceived AssetStatus = "not_received"
	AssetReceived    AssetStatus = "received"
	AssetTransferred AssetStatus = "transferred"
)

// PickupWindow is how long a freshly minted bar may sit in the store
// before overdue storage fees start accruing.
const PickupWindow = 72 * time.Hour

// OverdueFeePerDay is the flat per-day storage charge in whole LYD.
const OverdueFeePerDay = 30

// OwnedAsset is one individually serialized physical bar. Status only ever
// advances: not_received -> received, or not_received -> transferred.
type OwnedAsset struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OwnerID         uuid.UUID       `json:"owner_id" db:"owner_id"`
	ProductID       *uuid.UUID      `json:"product_id,omitempty" db:"product_id"` // nil for converted bars
	Serial          string          `json:"serial" db:"serial"`
	Metal           MetalType       `json:"metal" db:"metal"`
	Carat           int             `json:"carat" db:"carat"`
	WeightGrams     decimal.Decimal `json:"weight_grams" db:"weight_grams"`
	Status          AssetStatus     `json:"status" db:"status"`
	PickupStoreID   *uuid.UUID      `json:"pickup_store_id,omitempty" db:"pickup_store_id"`
	PickupDeadline  *time.Time      `json:"pickup_deadline,omitempty" db:"pickup_deadline"`
	Manufacturer    string          `json:"manufacturer" db:"manufacturer"`
	ManufactureYear int             `json:"manufacture_year" db:"manufacture_year"`
	Composition     []byte          `json:"-" db:"composition"` // XRF percentages, JSON
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OverdueFee computes the storage fee owed on a bar that was not picked up
// by its deadline. Pure function of its inputs: recomputed on every read,
// never persisted. Returns zero for now <= deadline.
func OverdueFee(now, deadline time.Time) (daysOverdue int64, feeLYD int64) {
	if !now.After(deadline) {
		return 0, 0
	}
	overdue := now.Sub(deadline)
	daysOverdue = int64(overdue / (24 * time.Hour))
	if overdue%(24*time.Hour) != 0 {
		daysOverdue++
	}
	return daysOverdue, daysOverdue * OverdueFeePerDay
}
