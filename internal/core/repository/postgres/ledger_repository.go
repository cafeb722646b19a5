package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

type postgresLedgerRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresLedgerRepo(db *sqlx.DB, log logger.Logger) repository.LedgerRepository {
	return &postgresLedgerRepo{db: db, log: log}
}

func (r *postgresLedgerRepo) Credit(ctx context.Context, userID uuid.UUID, currency string, amount int64, txType models.TransactionType, description string, referenceID *uuid.UUID) (int64, error) {
	var newBalance int64
	err := runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		balance, err := creditWalletTx(ctx, tx, userID, currency, amount)
		if err != nil {
			return err
		}
		newBalance = balance
		return insertTransactionTx(ctx, tx, &models.Transaction{
			ID:           uuid.New(),
			UserID:       userID,
			Type:         txType,
			Amount:       amount,
			CurrencyCode: currency,
			Description:  description,
			ReferenceID:  referenceID,
		})
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *postgresLedgerRepo) Debit(ctx context.Context, userID uuid.UUID, currency string, amount int64, txType models.TransactionType, description string, referenceID *uuid.UUID) (int64, error) {
	var newBalance int64
	err := runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		balance, err := debitWalletTx(ctx, tx, userID, currency, amount)
		if err != nil {
			return err
		}
		newBalance = balance
		return insertTransactionTx(ctx, tx, &models.Transaction{
			ID:           uuid.New(),
			UserID:       userID,
			Type:         txType,
			Amount:       -amount,
			CurrencyCode: currency,
			Description:  description,
			ReferenceID:  referenceID,
		})
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *postgresLedgerRepo) CreditDigital(ctx context.Context, userID uuid.UUID, metal models.MetalType, grams decimal.Decimal) (decimal.Decimal, error) {
	var newGrams decimal.Decimal
	err := runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		g, err := creditDigitalTx(ctx, tx, userID, metal, grams)
		if err != nil {
			return err
		}
		newGrams = g
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newGrams, nil
}

func (r *postgresLedgerRepo) DebitDigital(ctx context.Context, userID uuid.UUID, metal models.MetalType, grams decimal.Decimal) (decimal.Decimal, error) {
	var newGrams decimal.Decimal
	err := runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		g, err := debitDigitalTx(ctx, tx, userID, metal, grams)
		if err != nil {
			return err
		}
		newGrams = g
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newGrams, nil
}

func (r *postgresLedgerRepo) Wallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	var wallets []models.Wallet
	const query = `
		SELECT id, user_id, currency_code, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1 ORDER BY currency_code
	`
	if err := r.db.SelectContext(ctx, &wallets, query, userID); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

func (r *postgresLedgerRepo) DigitalBalances(ctx context.Context, userID uuid.UUID) ([]models.DigitalBalance, error) {
	var balances []models.DigitalBalance
	const query = `
		SELECT id, user_id, metal, grams, created_at, updated_at
		FROM digital_balances WHERE user_id = $1 ORDER BY metal
	`
	if err := r.db.SelectContext(ctx, &balances, query, userID); err != nil {
		return nil, fmt.Errorf("list digital balances: %w", err)
	}
	return balances, nil
}

func (r *postgresLedgerRepo) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	const query = `
		SELECT id, user_id, type, amount, currency_code, description, reference_id, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &transactions, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

func (r *postgresLedgerRepo) CurrencyByCode(ctx context.Context, code string) (*models.Currency, error) {
	var currency models.Currency
	const query = `SELECT code, name, minor_unit_name, minor_units FROM currencies WHERE code = $1`
	err := r.db.GetContext(ctx, &currency, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrCurrencyNotFound, code)
		}
		return nil, fmt.Errorf("error getting currency: %w", err)
	}
	return &currency, nil
}
