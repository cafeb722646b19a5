package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

const transferColumns = `
	id, asset_id, from_user_id, to_user_id, status, risk_score, created_at, resolved_at
`

type postgresTransferRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresTransferRepo(db *sqlx.DB, log logger.Logger) repository.TransferRepository {
	return &postgresTransferRepo{db: db, log: log}
}

func (r *postgresTransferRepo) Execute(ctx context.Context, t *models.AssetTransfer) error {
	return runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		const query = `
			INSERT INTO asset_transfers (id, asset_id, from_user_id, to_user_id, status, risk_score, resolved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		var resolvedAt *time.Time
		if t.Status == models.TransferCompleted {
			resolvedAt = nowPtr(time.Now().UTC())
		}
		if _, err := tx.ExecContext(ctx, query, t.ID, t.AssetID, t.FromUserID, t.ToUserID, t.Status, t.RiskScore, resolvedAt); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}

		if t.Status != models.TransferCompleted {
			return nil
		}
		return r.reassignAndAudit(ctx, tx, t)
	})
}

// reassignAndAudit moves ownership and writes both sides of the audit trail.
// The asset guard lives in the UPDATE: wrong owner, wrong status or an
// active appointment all match zero rows.
func (r *postgresTransferRepo) reassignAndAudit(ctx context.Context, tx *sqlx.Tx, t *models.AssetTransfer) error {
	const query = `
		UPDATE owned_assets
		SET owner_id = $2, status = 'transferred', updated_at = NOW()
		WHERE id = $1 AND owner_id = $3 AND status = 'not_received'
		  AND NOT EXISTS (
			SELECT 1 FROM pickup_appointments
			WHERE asset_id = $1 AND status IN ('pending', 'confirmed')
		  )
		RETURNING serial
	`
	var serial string
	if err := tx.GetContext(ctx, &serial, query, t.AssetID, t.ToUserID, t.FromUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.explainTransferFailure(ctx, tx, t)
		}
		return fmt.Errorf("reassign asset: %w", err)
	}

	out := &models.Transaction{
		ID:           uuid.New(),
		UserID:       t.FromUserID,
		Type:         models.TransactionTransferOut,
		Amount:       0,
		CurrencyCode: models.CurrencyLYD,
		Description:  fmt.Sprintf("transfer of bar %s", serial),
		ReferenceID:  &t.ID,
	}
	if err := insertTransactionTx(ctx, tx, out); err != nil {
		return err
	}

	in := &models.Transaction{
		ID:           uuid.New(),
		UserID:       t.ToUserID,
		Type:         models.TransactionTransferIn,
		Amount:       0,
		CurrencyCode: models.CurrencyLYD,
		Description:  fmt.Sprintf("transfer of bar %s", serial),
		ReferenceID:  &t.ID,
	}
	return insertTransactionTx(ctx, tx, in)
}

func (r *postgresTransferRepo) explainTransferFailure(ctx context.Context, tx *sqlx.Tx, t *models.AssetTransfer) error {
	var asset struct {
		OwnerID uuid.UUID `db:"owner_id"`
		Status  string    `db:"status"`
	}
	err := tx.GetContext(ctx, &asset, `SELECT owner_id, status FROM owned_assets WHERE id = $1`, t.AssetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", repository.ErrAssetNotFound, t.AssetID)
		}
		return fmt.Errorf("error getting asset: %w", err)
	}
	if asset.OwnerID != t.FromUserID {
		return fmt.Errorf("%w: asset %s is not owned by %s", repository.ErrAssetNotFound, t.AssetID, t.FromUserID)
	}
	if asset.Status != string(models.AssetNotReceived) {
		return fmt.Errorf("%w: asset %s is %s", repository.ErrInvalidTransition, t.AssetID, asset.Status)
	}
	return repository.ErrActiveAppointment
}

func (r *postgresTransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AssetTransfer, error) {
	var transfer models.AssetTransfer
	query := `SELECT ` + transferColumns + ` FROM asset_transfers WHERE id = $1`
	err := r.db.GetContext(ctx, &transfer, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrTransferNotFound, id)
		}
		return nil, fmt.Errorf("error getting transfer: %w", err)
	}
	return &transfer, nil
}

func (r *postgresTransferRepo) Resolve(ctx context.Context, id uuid.UUID, approve bool, now time.Time) (*models.AssetTransfer, error) {
	var transfer models.AssetTransfer
	err := runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		query := `SELECT ` + transferColumns + ` FROM asset_transfers WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &transfer, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", repository.ErrTransferNotFound, id)
			}
			return fmt.Errorf("error getting transfer: %w", err)
		}
		if transfer.Status != models.TransferManualReview {
			return fmt.Errorf("%w: transfer %s is %s", repository.ErrInvalidTransition, id, transfer.Status)
		}

		next := models.TransferRejected
		if approve {
			next = models.TransferCompleted
			transfer.Status = next
			if err := r.reassignAndAudit(ctx, tx, &transfer); err != nil {
				return err
			}
		}

		const update = `UPDATE asset_transfers SET status = $2, resolved_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, id, next, now); err != nil {
			return fmt.Errorf("resolve transfer: %w", err)
		}
		transfer.Status = next
		transfer.ResolvedAt = nowPtr(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *postgresTransferRepo) CountRecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	const query = `SELECT COUNT(*) FROM asset_transfers WHERE from_user_id = $1 AND created_at >= $2`
	if err := r.db.GetContext(ctx, &count, query, userID, since); err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return count, nil
}

// Convert debits the digital balance and the fabrication fee and mints the
// bar, all in one transaction. A failed fee debit leaves the grams intact.
func (r *postgresTransferRepo) Convert(ctx context.Context, p repository.ConvertParams, asset *models.OwnedAsset) error {
	return runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		if _, err := debitDigitalTx(ctx, tx, p.UserID, p.Metal, p.Grams); err != nil {
			return err
		}
		if _, err := debitWalletTx(ctx, tx, p.UserID, models.CurrencyLYD, p.FabricationFee); err != nil {
			return err
		}
		if err := insertAssetTx(ctx, tx, asset); err != nil {
			return err
		}
		return insertTransactionTx(ctx, tx, &models.Transaction{
			ID:           uuid.New(),
			UserID:       p.UserID,
			Type:         models.TransactionWithdrawal,
			Amount:       -p.FabricationFee,
			CurrencyCode: models.CurrencyLYD,
			Description:  fmt.Sprintf("fabrication fee for bar %s", asset.Serial),
			ReferenceID:  &asset.ID,
		})
	})
}

func (r *postgresTransferRepo) Relocate(ctx context.Context, userID, assetID, storeID uuid.UUID, fee int64) error {
	return runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		if _, err := debitWalletTx(ctx, tx, userID, models.CurrencyLYD, fee); err != nil {
			return err
		}

		const query = `
			UPDATE owned_assets
			SET pickup_store_id = $2, updated_at = NOW()
			WHERE id = $1 AND owner_id = $3 AND status = 'not_received'
		`
		res, err := tx.ExecContext(ctx, query, assetID, storeID, userID)
		if err != nil {
			return fmt.Errorf("relocate asset: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("relocate asset: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: asset %s cannot be relocated", repository.ErrInvalidTransition, assetID)
		}

		return insertTransactionTx(ctx, tx, &models.Transaction{
			ID:           uuid.New(),
			UserID:       userID,
			Type:         models.TransactionWithdrawal,
			Amount:       -fee,
			CurrencyCode: models.CurrencyLYD,
			Description:  "pickup relocation fee",
			ReferenceID:  &assetID,
		})
	})
}
