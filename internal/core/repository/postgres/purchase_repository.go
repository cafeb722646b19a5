package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

type postgresPurchaseRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresPurchaseRepo(db *sqlx.DB, log logger.Logger) repository.PurchaseRepository {
	return &postgresPurchaseRepo{db: db, log: log}
}

// purchaseTransaction mirrors the wallet leg of the purchase: the debited
// currency and amount when a wallet paid, the invoice total in LYD when the
// settlement happened outside the ledger (cash, coupon).
func purchaseTransaction(p repository.PurchaseParams, invoiceID *uuid.UUID) *models.Transaction {
	amount := -p.Total
	currency := models.CurrencyLYD
	if p.DebitCurrency != "" {
		amount = -p.DebitAmount
		currency = p.DebitCurrency
	}
	return &models.Transaction{
		ID:           uuid.New(),
		UserID:       p.UserID,
		Type:         models.TransactionPurchase,
		Amount:       amount,
		CurrencyCode: currency,
		Description:  p.Description,
		ReferenceID:  invoiceID,
	}
}

// CreatePhysical applies wallet debit, asset mint, invoice and ledger entry
// as one transaction. Any failure rolls back the whole purchase.
func (r *postgresPurchaseRepo) CreatePhysical(ctx context.Context, p repository.PurchaseParams, asset *models.OwnedAsset) (*models.PurchaseInvoice, error) {
	invoice := &models.PurchaseInvoice{
		ID:             uuid.New(),
		UserID:         p.UserID,
		Amount:         p.Total,
		Commission:     p.Commission,
		PaymentMethod:  p.Method,
		IsDigital:      false,
		AssetID:        &asset.ID,
		IdempotencyKey: p.IdempotencyKey,
	}

	err := runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		if p.DebitCurrency != "" {
			if _, err := debitWalletTx(ctx, tx, p.UserID, p.DebitCurrency, p.DebitAmount); err != nil {
				return err
			}
		}
		if err := insertAssetTx(ctx, tx, asset); err != nil {
			return err
		}
		if err := insertInvoiceTx(ctx, tx, invoice); err != nil {
			return err
		}
		return insertTransactionTx(ctx, tx, purchaseTransaction(p, &invoice.ID))
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// CreateDigital credits grams instead of minting a bar; same atomicity.
func (r *postgresPurchaseRepo) CreateDigital(ctx context.Context, p repository.PurchaseParams, metal models.MetalType, grams decimal.Decimal) (*models.PurchaseInvoice, error) {
	invoice := &models.PurchaseInvoice{
		ID:             uuid.New(),
		UserID:         p.UserID,
		Amount:         p.Total,
		Commission:     p.Commission,
		PaymentMethod:  p.Method,
		IsDigital:      true,
		IdempotencyKey: p.IdempotencyKey,
	}

	err := runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		if p.DebitCurrency != "" {
			if _, err := debitWalletTx(ctx, tx, p.UserID, p.DebitCurrency, p.DebitAmount); err != nil {
				return err
			}
		}
		if _, err := creditDigitalTx(ctx, tx, p.UserID, metal, grams); err != nil {
			return err
		}
		if err := insertInvoiceTx(ctx, tx, invoice); err != nil {
			return err
		}
		return insertTransactionTx(ctx, tx, purchaseTransaction(p, &invoice.ID))
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}
