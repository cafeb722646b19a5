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

type PhysicalPurchaseRequest struct {
	UserID         uuid.UUID
	ProductID      uuid.UUID
	StoreID        uuid.UUID
	Method         models.PaymentMethod
	IdempotencyKey *string
}

type DigitalPurchaseRequest struct {
	UserID         uuid.UUID
	Metal          models.MetalType
	Grams          decimal.Decimal
	Method         models.PaymentMethod
	IdempotencyKey *string
}

// PurchaseResult reports the amounts the orchestrator settled on, in LYD
// minor units. Asset is nil for digital purchases.
type PurchaseResult struct {
	Invoice    *models.PurchaseInvoice `json:"invoice"`
	Asset      *models.OwnedAsset      `json:"asset,omitempty"`
	Subtotal   int64                   `json:"subtotal"`
	Commission int64                   `json:"commission"`
	Total      int64                   `json:"total"`
}

type PurchaseUsecase interface {
	PurchasePhysical(ctx context.Context, req PhysicalPurchaseRequest) (*PurchaseResult, error)
	PurchaseDigital(ctx context.Context, req DigitalPurchaseRequest) (*PurchaseResult, error)
}

type purchaseUsecase struct {
	purchases repository.PurchaseRepository
	catalog   repository.CatalogRepository
	stores    repository.StoreRepository
	prices    PriceSource
	converter CurrencyConverter
	log       logger.Logger
	now       func() time.Time
}

func NewPurchaseUsecase(
	purchases repository.PurchaseRepository,
	catalog repository.CatalogRepository,
	stores repository.StoreRepository,
	prices PriceSource,
	converter CurrencyConverter,
	log logger.Logger,
) PurchaseUsecase {
	return &purchaseUsecase{
		purchases: purchases,
		catalog:   catalog,
		stores:    stores,
		prices:    prices,
		converter: converter,
		log:       log,
		now:       time.Now,
	}
}

func (uc *purchaseUsecase) PurchasePhysical(ctx context.Context, req PhysicalPurchaseRequest) (*PurchaseResult, error) {
	switch req.Method {
	case models.PaymentWalletDinar, models.PaymentWalletDollar, models.PaymentCoupon, models.PaymentCash:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, req.Method)
	}

	product, err := uc.catalog.ProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.stores.StoreByID(ctx, req.StoreID); err != nil {
		return nil, err
	}

	subtotal := product.BasePrice
	commission := commissionFor(subtotal)
	total := subtotal + commission

	params := repository.PurchaseParams{
		UserID:         req.UserID,
		Method:         req.Method,
		Total:          total,
		Commission:     commission,
		Description:    fmt.Sprintf("purchase of %s", product.Name),
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := uc.fillDebit(ctx, &params, total); err != nil {
		return nil, err
	}

	asset := newPhysicalAsset(req.UserID, product, req.StoreID, uc.now())
	invoice, err := uc.createPhysicalWithRetry(ctx, params, asset)
	if err != nil {
		return nil, err
	}

	uc.log.Info("Physical purchase completed",
		logger.StringField("user_id", req.UserID.String()),
		logger.StringField("invoice_id", invoice.ID.String()),
		logger.StringField("serial", asset.Serial),
		logger.Int64Field("total", total))

	return &PurchaseResult{Invoice: invoice, Asset: asset, Subtotal: subtotal, Commission: commission, Total: total}, nil
}

func (uc *purchaseUsecase) PurchaseDigital(ctx context.Context, req DigitalPurchaseRequest) (*PurchaseResult, error) {
	// Cash settles at pickup; there is no pickup for digital grams.
	switch req.Method {
	case models.PaymentWalletDinar, models.PaymentWalletDollar, models.PaymentCoupon:
	default:
		return nil, fmt.Errorf("%w: %s for digital purchase", ErrInvalidPaymentMethod, req.Method)
	}
	if !models.IsSupportedMetal(req.Metal) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetal, req.Metal)
	}
	if req.Grams.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	pricePerGram, err := uc.prices.PricePerGram(ctx, req.Metal)
	if err != nil {
		return nil, err
	}

	subtotal := req.Grams.Mul(decimal.NewFromInt(pricePerGram)).Round(0).IntPart()
	// Digital trading is commission-free.
	total := subtotal

	params := repository.PurchaseParams{
		UserID:         req.UserID,
		Method:         req.Method,
		Total:          total,
		Commission:     0,
		Description:    fmt.Sprintf("purchase of %s g digital %s", req.Grams, req.Metal),
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := uc.fillDebit(ctx, &params, total); err != nil {
		return nil, err
	}

	invoice, err := uc.purchases.CreateDigital(ctx, params, req.Metal, req.Grams)
	if err != nil {
		return nil, err
	}

	uc.log.Info("Digital purchase completed",
		logger.StringField("user_id", req.UserID.String()),
		logger.StringField("invoice_id", invoice.ID.String()),
		logger.StringField("metal", string(req.Metal)),
		logger.StringField("grams", req.Grams.String()),
		logger.Int64Field("total", total))

	return &PurchaseResult{Invoice: invoice, Subtotal: subtotal, Commission: 0, Total: total}, nil
}

// fillDebit resolves which wallet, if any, the purchase debits. Cash and
// coupon purchases settle outside the ledger and skip the debit entirely.
func (uc *purchaseUsecase) fillDebit(ctx context.Context, params *repository.PurchaseParams, totalLYD int64) error {
	currency := params.Method.WalletCurrency()
	if currency == "" {
		return nil
	}
	debit, err := uc.converter.FromLYD(ctx, totalLYD, currency)
	if err != nil {
		return err
	}
	params.DebitCurrency = currency
	params.DebitAmount = debit
	return nil
}

// createPhysicalWithRetry re-mints the serial and replays the whole purchase
// transaction on a serial collision. Idempotency-key conflicts are terminal.
func (uc *purchaseUsecase) createPhysicalWithRetry(ctx context.Context, params repository.PurchaseParams, asset *models.OwnedAsset) (*models.PurchaseInvoice, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		serial, err := newSerial()
		if err != nil {
			return nil, err
		}
		asset.Serial = serial

		invoice, err := uc.purchases.CreatePhysical(ctx, params, asset)
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, repository.ErrSerialTaken) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: asset serial", ErrCodeGeneration)
}
