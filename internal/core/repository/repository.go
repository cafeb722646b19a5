package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/models"
)

// LedgerRepository owns fiat wallets, digital metal balances and the
// append-only transaction log. Every mutation appends exactly one
// transaction row in the same database transaction as the balance change.
type LedgerRepository interface {
	Credit(ctx context.Context, userID uuid.UUID, currency string, amount int64, txType models.TransactionType, description string, referenceID *uuid.UUID) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, currency string, amount int64, txType models.TransactionType, description string, referenceID *uuid.UUID) (int64, error)
	CreditDigital(ctx context.Context, userID uuid.UUID, metal models.MetalType, grams decimal.Decimal) (decimal.Decimal, error)
	DebitDigital(ctx context.Context, userID uuid.UUID, metal models.MetalType, grams decimal.Decimal) (decimal.Decimal, error)
	Wallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error)
	DigitalBalances(ctx context.Context, userID uuid.UUID) ([]models.DigitalBalance, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
	CurrencyByCode(ctx context.Context, code string) (*models.Currency, error)
}

// CatalogRepository reads the product catalog and live metal prices.
// Both are maintained by the catalog collaborator; read-only here.
type CatalogRepository interface {
	ProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	PricePerGram(ctx context.Context, metal models.MetalType) (int64, error)
}

// StoreRepository reads pickup locations. Inactive stores are not returned.
type StoreRepository interface {
	StoreByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	ListStores(ctx context.Context) ([]models.Store, error)
}

type AssetRepository interface {
	// Insert mints a bar row. Returns ErrSerialTaken on a serial collision
	// so the caller can regenerate and retry.
	Insert(ctx context.Context, asset *models.OwnedAsset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OwnedAsset, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.OwnedAsset, error)
	// MarkReceived advances not_received -> received; ErrInvalidTransition
	// for any other current status.
	MarkReceived(ctx context.Context, assetID uuid.UUID) error
}

// PurchaseParams carries the amounts the orchestrator computed up front.
// DebitCurrency "" means no wallet debit (cash or coupon settlement).
type PurchaseParams struct {
	UserID         uuid.UUID
	Method         models.PaymentMethod
	DebitCurrency  string
	DebitAmount    int64
	Total          int64
	Commission     int64
	Description    string
	IdempotencyKey *string
}

// PurchaseRepository applies a whole purchase as one database transaction:
// wallet debit, asset mint or digital credit, invoice and ledger entry
// either all land or none do.
type PurchaseRepository interface {
	CreatePhysical(ctx context.Context, p PurchaseParams, asset *models.OwnedAsset) (*models.PurchaseInvoice, error)
	CreateDigital(ctx context.Context, p PurchaseParams, metal models.MetalType, grams decimal.Decimal) (*models.PurchaseInvoice, error)
}

type AppointmentRepository interface {
	// Create inserts a pending appointment. The single-active-per-asset
	// invariant is the partial unique index, evaluated inside the insert:
	// ErrActiveAppointment on violation, ErrNumberTaken/ErrPINTaken on
	// code collisions.
	Create(ctx context.Context, appt *models.PickupAppointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PickupAppointment, error)
	ActiveByAsset(ctx context.Context, assetID uuid.UUID) (*models.PickupAppointment, error)
	Confirm(ctx context.Context, id uuid.UUID, now time.Time) error
	Cancel(ctx context.Context, id uuid.UUID, reason string, now time.Time) error
	// Complete closes the appointment and marks the asset received in the
	// same database transaction.
	Complete(ctx context.Context, id uuid.UUID, now time.Time) error
	// SweepNoShows marks confirmed appointments whose day has passed as
	// no_show and returns how many were swept.
	SweepNoShows(ctx context.Context, now time.Time) (int64, error)
}

// ConvertParams describes one digital-to-physical conversion. FabricationFee
// is in LYD minor units and is debited from the user's LYD wallet.
type ConvertParams struct {
	UserID         uuid.UUID
	Metal          models.MetalType
	Grams          decimal.Decimal
	FabricationFee int64
}

type TransferRepository interface {
	// Execute inserts the transfer row; when t.Status is completed it also
	// reassigns ownership and appends the transfer_out/transfer_in audit
	// entries, all in one database transaction. manual_review rows leave
	// the asset untouched.
	Execute(ctx context.Context, t *models.AssetTransfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AssetTransfer, error)
	// Resolve finishes a manual_review transfer: approve reassigns
	// ownership and completes it, otherwise the row is rejected.
	Resolve(ctx context.Context, id uuid.UUID, approve bool, now time.Time) (*models.AssetTransfer, error)
	CountRecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	// Convert debits grams and the fabrication fee and mints the bar as
	// one database transaction.
	Convert(ctx context.Context, p ConvertParams, asset *models.OwnedAsset) error
	// Relocate debits the relocation fee and moves the asset's pickup
	// store as one database transaction.
	Relocate(ctx context.Context, userID, assetID, storeID uuid.UUID, fee int64) error
}
