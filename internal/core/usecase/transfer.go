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

const recentTransferWindow = 30 * 24 * time.Hour

type TransferRequest struct {
	AssetID    uuid.UUID
	FromUserID uuid.UUID
	ToUserID   uuid.UUID
}

type ConvertRequest struct {
	UserID  uuid.UUID
	Metal   models.MetalType
	Grams   decimal.Decimal
	StoreID uuid.UUID
}

type TransferUsecase interface {
	TransferOwnership(ctx context.Context, req TransferRequest) (*models.AssetTransfer, error)
	ResolveManualReview(ctx context.Context, id uuid.UUID, approve bool) (*models.AssetTransfer, error)
	ConvertDigitalToPhysical(ctx context.Context, req ConvertRequest) (*models.OwnedAsset, error)
	ChangePickupLocation(ctx context.Context, userID, assetID, storeID uuid.UUID) error
}

type transferUsecase struct {
	transfers     repository.TransferRepository
	assets        repository.AssetRepository
	appointments  repository.AppointmentRepository
	stores        repository.StoreRepository
	scorer        RiskScorer
	riskThreshold decimal.Decimal
	log           logger.Logger
	now           func() time.Time
}

func NewTransferUsecase(
	transfers repository.TransferRepository,
	assets repository.AssetRepository,
	appointments repository.AppointmentRepository,
	stores repository.StoreRepository,
	scorer RiskScorer,
	riskThreshold decimal.Decimal,
	log logger.Logger,
) TransferUsecase {
	return &transferUsecase{
		transfers:     transfers,
		assets:        assets,
		appointments:  appointments,
		stores:        stores,
		scorer:        scorer,
		riskThreshold: riskThreshold,
		log:           log,
		now:           time.Now,
	}
}

func (uc *transferUsecase) TransferOwnership(ctx context.Context, req TransferRequest) (*models.AssetTransfer, error) {
	if req.FromUserID == req.ToUserID {
		return nil, fmt.Errorf("%w: cannot transfer to self", ErrInvalidTransition)
	}

	asset, err := uc.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	if asset.OwnerID != req.FromUserID {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, req.AssetID)
	}
	if asset.Status != models.AssetNotReceived {
		return nil, fmt.Errorf("%w: asset %s is %s", ErrInvalidTransition, asset.ID, asset.Status)
	}

	// Early, friendlier check; the repository re-evaluates it inside the
	// transfer transaction.
	if _, err := uc.appointments.ActiveByAsset(ctx, req.AssetID); err == nil {
		return nil, ErrActiveAppointment
	} else if !errors.Is(err, repository.ErrAppointmentNotFound) {
		return nil, err
	}

	recent, err := uc.transfers.CountRecentByUser(ctx, req.FromUserID, uc.now().Add(-recentTransferWindow))
	if err != nil {
		return nil, err
	}

	score, err := uc.scorer.Score(ctx, RiskContext{
		Asset:           asset,
		FromUserID:      req.FromUserID,
		ToUserID:        req.ToUserID,
		RecentTransfers: recent,
		Now:             uc.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("risk scoring: %w", err)
	}

	transfer := &models.AssetTransfer{
		ID:         uuid.New(),
		AssetID:    req.AssetID,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Status:     models.TransferCompleted,
		RiskScore:  score,
	}
	if score.GreaterThan(uc.riskThreshold) {
		transfer.Status = models.TransferManualReview
		uc.log.Warn("Transfer held for manual review",
			logger.StringField("transfer_id", transfer.ID.String()),
			logger.StringField("risk_score", score.String()))
	}

	if err := uc.transfers.Execute(ctx, transfer); err != nil {
		return nil, err
	}

	uc.log.Info("Transfer recorded",
		logger.StringField("transfer_id", transfer.ID.String()),
		logger.StringField("status", string(transfer.Status)))
	return transfer, nil
}

func (uc *transferUsecase) ResolveManualReview(ctx context.Context, id uuid.UUID, approve bool) (*models.AssetTransfer, error) {
	return uc.transfers.Resolve(ctx, id, approve, uc.now())
}

func (uc *transferUsecase) ConvertDigitalToPhysical(ctx context.Context, req ConvertRequest) (*models.OwnedAsset, error) {
	if !models.IsSupportedMetal(req.Metal) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetal, req.Metal)
	}
	if req.Grams.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if _, err := uc.stores.StoreByID(ctx, req.StoreID); err != nil {
		return nil, err
	}

	params := repository.ConvertParams{
		UserID:         req.UserID,
		Metal:          req.Metal,
		Grams:          req.Grams,
		FabricationFee: fabricationFeeLYD * lydScale,
	}

	asset := newConvertedAsset(req.UserID, req.Metal, req.Grams, req.StoreID, uc.now())
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		serial, err := newSerial()
		if err != nil {
			return nil, err
		}
		asset.Serial = serial

		err = uc.transfers.Convert(ctx, params, asset)
		if err == nil {
			uc.log.Info("Converted digital balance to bar",
				logger.StringField("user_id", req.UserID.String()),
				logger.StringField("serial", asset.Serial),
				logger.StringField("grams", req.Grams.String()))
			return asset, nil
		}
		if !errors.Is(err, repository.ErrSerialTaken) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: asset serial", ErrCodeGeneration)
}

func (uc *transferUsecase) ChangePickupLocation(ctx context.Context, userID, assetID, storeID uuid.UUID) error {
	if _, err := uc.stores.StoreByID(ctx, storeID); err != nil {
		return err
	}
	return uc.transfers.Relocate(ctx, userID, assetID, storeID, relocationFeeLYD*lydScale)
}
