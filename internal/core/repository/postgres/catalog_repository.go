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

type postgresCatalogRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresCatalogRepo(db *sqlx.DB, log logger.Logger) repository.CatalogRepository {
	return &postgresCatalogRepo{db: db, log: log}
}

func (r *postgresCatalogRepo) ProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	const query = `
		SELECT id, name, metal, carat, weight_grams, base_price, active, created_at
		FROM products WHERE id = $1 AND active
	`
	err := r.db.GetContext(ctx, &product, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("error getting product: %w", err)
	}
	return &product, nil
}

func (r *postgresCatalogRepo) PricePerGram(ctx context.Context, metal models.MetalType) (int64, error) {
	var price models.MetalPrice
	const query = `SELECT metal, price_per_gram, updated_at FROM metal_prices WHERE metal = $1`
	err := r.db.GetContext(ctx, &price, query, metal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", repository.ErrPriceNotFound, metal)
		}
		return 0, fmt.Errorf("error getting metal price: %w", err)
	}
	return price.PricePerGram, nil
}

type postgresStoreRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresStoreRepo(db *sqlx.DB, log logger.Logger) repository.StoreRepository {
	return &postgresStoreRepo{db: db, log: log}
}

func (r *postgresStoreRepo) StoreByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	const query = `SELECT id, name, address, phone, active, created_at FROM stores WHERE id = $1 AND active`
	err := r.db.GetContext(ctx, &store, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrStoreNotFound, id)
		}
		return nil, fmt.Errorf("error getting store: %w", err)
	}
	return &store, nil
}

func (r *postgresStoreRepo) ListStores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	const query = `SELECT id, name, address, phone, active, created_at FROM stores WHERE active ORDER BY name`
	if err := r.db.SelectContext(ctx, &stores, query); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}
