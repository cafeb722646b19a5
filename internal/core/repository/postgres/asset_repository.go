package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

const assetColumns = `
	id, owner_id, product_id, serial, metal, carat, weight_grams, status,
	pickup_store_id, pickup_deadline, manufacturer, manufacture_year, composition,
	created_at, updated_at
`

type postgresAssetRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresAssetRepo(db *sqlx.DB, log logger.Logger) repository.AssetRepository {
	return &postgresAssetRepo{db: db, log: log}
}

func (r *postgresAssetRepo) Insert(ctx context.Context, asset *models.OwnedAsset) error {
	return runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		return insertAssetTx(ctx, tx, asset)
	})
}

func (r *postgresAssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.OwnedAsset, error) {
	var asset models.OwnedAsset
	query := `SELECT ` + assetColumns + ` FROM owned_assets WHERE id = $1`
	err := r.db.GetContext(ctx, &asset, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrAssetNotFound, id)
		}
		return nil, fmt.Errorf("error getting asset: %w", err)
	}
	return &asset, nil
}

func (r *postgresAssetRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.OwnedAsset, error) {
	var assets []models.OwnedAsset
	query := `SELECT ` + assetColumns + ` FROM owned_assets WHERE owner_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &assets, query, ownerID); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// MarkReceived advances not_received -> received. The status guard lives in
// the WHERE clause so a concurrent transition cannot slip through.
func (r *postgresAssetRepo) MarkReceived(ctx context.Context, assetID uuid.UUID) error {
	const query = `
		UPDATE owned_assets
		SET status = 'received', updated_at = NOW()
		WHERE id = $1 AND status = 'not_received'
	`
	res, err := r.db.ExecContext(ctx, query, assetID)
	if err != nil {
		return fmt.Errorf("mark received: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark received: %w", err)
	}
	if affected == 0 {
		return r.explainAssetFailure(ctx, assetID)
	}
	return nil
}

// explainAssetFailure distinguishes a missing asset from one in the wrong
// state after a guarded update matched no rows.
func (r *postgresAssetRepo) explainAssetFailure(ctx context.Context, assetID uuid.UUID) error {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM owned_assets WHERE id = $1`, assetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", repository.ErrAssetNotFound, assetID)
		}
		return fmt.Errorf("error getting asset status: %w", err)
	}
	return fmt.Errorf("%w: asset %s is %s", repository.ErrInvalidTransition, assetID, status)
}
