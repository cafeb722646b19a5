package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

// AssetView is an asset together with its storage fee, recomputed from the
// deadline on every read.
type AssetView struct {
	models.OwnedAsset
	DaysOverdue   int64 `json:"days_overdue"`
	OverdueFeeLYD int64 `json:"overdue_fee_lyd"`
}

type MintParams struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	StoreID   uuid.UUID
}

type AssetRegistry interface {
	Mint(ctx context.Context, p MintParams) (*models.OwnedAsset, error)
	Get(ctx context.Context, id uuid.UUID) (*AssetView, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]AssetView, error)
	MarkReceived(ctx context.Context, assetID uuid.UUID) error
}

type assetRegistry struct {
	assets  repository.AssetRepository
	catalog repository.CatalogRepository
	stores  repository.StoreRepository
	log     logger.Logger
	now     func() time.Time
}

func NewAssetRegistry(assets repository.AssetRepository, catalog repository.CatalogRepository, stores repository.StoreRepository, log logger.Logger) AssetRegistry {
	return &assetRegistry{assets: assets, catalog: catalog, stores: stores, log: log, now: time.Now}
}

// newPhysicalAsset builds a bar row for a product bound to a pickup store.
// The serial is filled in by the caller's retry loop.
func newPhysicalAsset(ownerID uuid.UUID, product *models.Product, storeID uuid.UUID, now time.Time) *models.OwnedAsset {
	deadline := now.Add(models.PickupWindow)
	productID := product.ID
	return &models.OwnedAsset{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		ProductID:       &productID,
		Metal:           product.Metal,
		Carat:           product.Carat,
		WeightGrams:     product.WeightGrams,
		Status:          models.AssetNotReceived,
		PickupStoreID:   &storeID,
		PickupDeadline:  &deadline,
		ManufactureYear: now.Year(),
	}
}

// newConvertedAsset builds a bar minted from a digital balance; it has no
// catalog product behind it.
func newConvertedAsset(ownerID uuid.UUID, metal models.MetalType, grams decimal.Decimal, storeID uuid.UUID, now time.Time) *models.OwnedAsset {
	deadline := now.Add(models.PickupWindow)
	carat := 24
	if metal == models.MetalSilver {
		carat = 999
	}
	return &models.OwnedAsset{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Metal:           metal,
		Carat:           carat,
		WeightGrams:     grams,
		Status:          models.AssetNotReceived,
		PickupStoreID:   &storeID,
		PickupDeadline:  &deadline,
		ManufactureYear: now.Year(),
	}
}

func (r *assetRegistry) Mint(ctx context.Context, p MintParams) (*models.OwnedAsset, error) {
	product, err := r.catalog.ProductByID(ctx, p.ProductID)
	if err != nil {
		return nil, err
	}
	if _, err := r.stores.StoreByID(ctx, p.StoreID); err != nil {
		return nil, err
	}

	asset := newPhysicalAsset(p.UserID, product, p.StoreID, r.now())
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		serial, err := newSerial()
		if err != nil {
			return nil, err
		}
		asset.Serial = serial

		err = r.assets.Insert(ctx, asset)
		if err == nil {
			r.log.Info("Minted asset",
				logger.StringField("asset_id", asset.ID.String()),
				logger.StringField("serial", asset.Serial))
			return asset, nil
		}
		if !errors.Is(err, repository.ErrSerialTaken) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: asset serial", ErrCodeGeneration)
}

func (r *assetRegistry) Get(ctx context.Context, id uuid.UUID) (*AssetView, error) {
	asset, err := r.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := r.toView(*asset)
	return &view, nil
}

func (r *assetRegistry) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]AssetView, error) {
	assets, err := r.assets.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]AssetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, r.toView(a))
	}
	return views, nil
}

func (r *assetRegistry) MarkReceived(ctx context.Context, assetID uuid.UUID) error {
	return r.assets.MarkReceived(ctx, assetID)
}

func (r *assetRegistry) toView(asset models.OwnedAsset) AssetView {
	view := AssetView{OwnedAsset: asset}
	// Fees only accrue while the bar is waiting in the store.
	if asset.Status == models.AssetNotReceived && asset.PickupDeadline != nil {
		view.DaysOverdue, view.OverdueFeeLYD = models.OverdueFee(r.now(), *asset.PickupDeadline)
	}
	return view
}
