package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MetalType string

const (
	MetalGold   MetalType = "gold"
	MetalSilver MetalType = "silver"
)

func IsSupportedMetal(m MetalType) bool {
	return m == MetalGold || m == MetalSilver
}

// DigitalBalance is a fractional-gram claim on the shared vaulted pool,
// one row per user per metal.
type DigitalBalance struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Metal     MetalType       `json:"metal" db:"metal"`
	Grams     decimal.Decimal `json:"grams" db:"grams"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// MetalPrice is the live per-gram price in LYD minor units, maintained by
// the pricing collaborator. Read-only here.
type MetalPrice struct {
	Metal        MetalType `json:"metal" db:"metal"`
	PricePerGram int64     `json:"price_per_gram" db:"price_per_gram"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
