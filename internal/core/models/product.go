package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is an immutable catalog entry for a physical bar type.
// Catalog management lives elsewhere; this core only reads products.
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Metal       MetalType       `json:"metal" db:"metal"`
	Carat       int             `json:"carat" db:"carat"`
	WeightGrams decimal.Decimal `json:"weight_grams" db:"weight_grams"`
	BasePrice   int64           `json:"base_price" db:"base_price"` // LYD minor units
	Active      bool            `json:"active" db:"active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Store is a pickup location. Supplied by the store collaborator, read-only.
type Store struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	Phone     string    `json:"phone" db:"phone"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
