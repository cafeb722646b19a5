package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

const pgUniqueViolation = "23505"

// violatedConstraint returns the name of the unique constraint behind err,
// if err is a postgres unique violation.
func violatedConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

const maxTxRetries = 5

// isRetryableTxError matches postgres serialization failures (40001) and
// deadlocks (40P01), both safe to retry once the whole tx has rolled back.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// runTxWithRetry replays the whole transaction on serialization conflicts.
// fn must be safe to run again from scratch; every attempt starts on a
// clean rolled-back state.
func runTxWithRetry(ctx context.Context, db *sqlx.DB, log logger.Logger, fn func(tx *sqlx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxTxRetries; attempt++ {
		err := runTx(ctx, db, log, fn)
		if err == nil {
			return nil
		}
		if !isRetryableTxError(err) {
			return err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxRetries, lastErr)
}

// runTx executes fn inside a serializable transaction with the rollback
// handling shared by every repository in this package.
func runTx(ctx context.Context, db *sqlx.DB, log logger.Logger, fn func(tx *sqlx.Tx) error) (err error) {
	var isCommitted bool
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Error("Error beginning transaction", logger.ErrorField("error", err))
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if err != nil && !isCommitted {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("Transaction rollback failed", logger.ErrorField("error", rbErr))
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			} else {
				log.Warn("Transaction rolled back due to error", logger.ErrorField("error", err))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		log.Error("Error committing transaction", logger.ErrorField("error", err))
		return fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return nil
}

// creditWalletTx upserts the wallet and adds amount. Wallets are created
// lazily on first funding.
func creditWalletTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, currency string, amount int64) (int64, error) {
	const query = `
		INSERT INTO wallets (id, user_id, currency_code, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT wallets_user_currency_key
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance
	`
	var newBalance int64
	if err := tx.GetContext(ctx, &newBalance, query, uuid.New(), userID, currency, amount); err != nil {
		return 0, fmt.Errorf("credit wallet: %w", err)
	}
	return newBalance, nil
}

// debitWalletTx subtracts amount in a single guarded statement. A missing
// wallet is treated as a zero balance, so both cases come back as
// ErrInsufficientFunds.
func debitWalletTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, currency string, amount int64) (int64, error) {
	const query = `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND currency_code = $3 AND balance >= $1
		RETURNING balance
	`
	var newBalance int64
	err := tx.GetContext(ctx, &newBalance, query, amount, userID, currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrInsufficientFunds
		}
		return 0, fmt.Errorf("debit wallet: %w", err)
	}
	return newBalance, nil
}

func creditDigitalTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, metal models.MetalType, grams decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		INSERT INTO digital_balances (id, user_id, metal, grams)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT digital_balances_user_metal_key
		DO UPDATE SET grams = digital_balances.grams + EXCLUDED.grams, updated_at = NOW()
		RETURNING grams
	`
	var newGrams decimal.Decimal
	if err := tx.GetContext(ctx, &newGrams, query, uuid.New(), userID, metal, grams); err != nil {
		return decimal.Zero, fmt.Errorf("credit digital balance: %w", err)
	}
	return newGrams, nil
}

func debitDigitalTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, metal models.MetalType, grams decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE digital_balances
		SET grams = grams - $1, updated_at = NOW()
		WHERE user_id = $2 AND metal = $3 AND grams >= $1
		RETURNING grams
	`
	var newGrams decimal.Decimal
	err := tx.GetContext(ctx, &newGrams, query, grams, userID, metal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, repository.ErrInsufficientMetal
		}
		return decimal.Zero, fmt.Errorf("debit digital balance: %w", err)
	}
	return newGrams, nil
}

func insertTransactionTx(ctx context.Context, tx *sqlx.Tx, t *models.Transaction) error {
	const query = `
		INSERT INTO transactions (id, user_id, type, amount, currency_code, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query, t.ID, t.UserID, t.Type, t.Amount, t.CurrencyCode, t.Description, t.ReferenceID)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func insertAssetTx(ctx context.Context, tx *sqlx.Tx, a *models.OwnedAsset) error {
	const query = `
		INSERT INTO owned_assets
			(id, owner_id, product_id, serial, metal, carat, weight_grams, status,
			 pickup_store_id, pickup_deadline, manufacturer, manufacture_year, composition)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.ExecContext(ctx, query,
		a.ID, a.OwnerID, a.ProductID, a.Serial, a.Metal, a.Carat, a.WeightGrams,
		a.Status, a.PickupStoreID, a.PickupDeadline, a.Manufacturer, a.ManufactureYear, a.Composition,
	)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "owned_assets_serial_key" {
			return repository.ErrSerialTaken
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func insertInvoiceTx(ctx context.Context, tx *sqlx.Tx, inv *models.PurchaseInvoice) error {
	const query = `
		INSERT INTO purchase_invoices
			(id, user_id, amount, commission, payment_method, is_digital, asset_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		inv.ID, inv.UserID, inv.Amount, inv.Commission, inv.PaymentMethod,
		inv.IsDigital, inv.AssetID, inv.IdempotencyKey,
	)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "purchase_invoices_idempotency_key" {
			return repository.ErrDuplicateRequest
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// nowPtr is a small convenience for timestamp columns set on transition.
func nowPtr(t time.Time) *time.Time {
	return &t
}
