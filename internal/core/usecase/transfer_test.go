package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

type transferFixture struct {
	uc           *transferUsecase
	ledger       *fakeLedgerRepo
	transfers    *fakeTransferRepo
	assets       *fakeAssetRepo
	appointments *fakeAppointmentRepo
	fromUserID   uuid.UUID
	toUserID     uuid.UUID
	assetID      uuid.UUID
	storeID      uuid.UUID
	now          time.Time
	cleanup      func()
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	log, cleanup := logger.NewLogger()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	fromUserID := uuid.New()
	toUserID := uuid.New()
	storeID := uuid.New()

	ledger := newFakeLedgerRepo()
	assets := newFakeAssetRepo()
	appointments := newFakeAppointmentRepo()
	transfers := newFakeTransferRepo(ledger, assets, appointments)

	assetID := uuid.New()
	deadline := now.Add(models.PickupWindow)
	assets.assets[assetID] = &models.OwnedAsset{
		ID:             assetID,
		OwnerID:        fromUserID,
		Serial:         "BAR-TESTBAR456",
		Metal:          models.MetalGold,
		WeightGrams:    decimal.RequireFromString("10"),
		Status:         models.AssetNotReceived,
		PickupStoreID:  &storeID,
		PickupDeadline: &deadline,
		CreatedAt:      now.Add(-30 * 24 * time.Hour),
	}

	uc := &transferUsecase{
		transfers:     transfers,
		assets:        assets,
		appointments:  appointments,
		stores:        newFakeStoreRepo(storeID),
		scorer:        HeuristicScorer{},
		riskThreshold: decimal.NewFromInt(75),
		log:           log,
		now:           func() time.Time { return now },
	}

	return &transferFixture{
		uc: uc, ledger: ledger, transfers: transfers, assets: assets, appointments: appointments,
		fromUserID: fromUserID, toUserID: toUserID, assetID: assetID, storeID: storeID,
		now: now, cleanup: cleanup,
	}
}

func (f *transferFixture) request() TransferRequest {
	return TransferRequest{AssetID: f.assetID, FromUserID: f.fromUserID, ToUserID: f.toUserID}
}

func TestTransferOwnershipCompletes(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	// Old asset, quiet sender: 10 + 10*0.5 = 15, well under the threshold.
	transfer, err := f.uc.TransferOwnership(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, models.TransferCompleted, transfer.Status)
	assert.True(t, decimal.NewFromInt(15).Equal(transfer.RiskScore), transfer.RiskScore.String())

	asset := f.assets.assets[f.assetID]
	assert.Equal(t, f.toUserID, asset.OwnerID)
	assert.Equal(t, models.AssetTransferred, asset.Status)
}

func TestTransferOwnershipHeldForManualReview(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	// A freshly purchased bar from a rapid-fire sender scores
	// 10 + 5 + 25 + 15*3 = 85, over the threshold of 75.
	f.assets.assets[f.assetID].CreatedAt = f.now.Add(-time.Hour)
	f.transfers.recentCount = 5

	transfer, err := f.uc.TransferOwnership(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, models.TransferManualReview, transfer.Status)
	assert.True(t, decimal.NewFromInt(85).Equal(transfer.RiskScore), transfer.RiskScore.String())

	// The asset is untouched while the transfer is held.
	asset := f.assets.assets[f.assetID]
	assert.Equal(t, f.fromUserID, asset.OwnerID)
	assert.Equal(t, models.AssetNotReceived, asset.Status)
}

func TestResolveManualReview(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	f.assets.assets[f.assetID].CreatedAt = f.now.Add(-time.Hour)
	f.transfers.recentCount = 5

	held, err := f.uc.TransferOwnership(context.Background(), f.request())
	require.NoError(t, err)
	require.Equal(t, models.TransferManualReview, held.Status)

	resolved, err := f.uc.ResolveManualReview(context.Background(), held.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, f.toUserID, f.assets.assets[f.assetID].OwnerID)

	// Already resolved; a second resolve is rejected.
	_, err = f.uc.ResolveManualReview(context.Background(), held.ID, false)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestResolveManualReviewRejection(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	f.assets.assets[f.assetID].CreatedAt = f.now.Add(-time.Hour)
	f.transfers.recentCount = 5

	held, err := f.uc.TransferOwnership(context.Background(), f.request())
	require.NoError(t, err)

	resolved, err := f.uc.ResolveManualReview(context.Background(), held.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.TransferRejected, resolved.Status)

	asset := f.assets.assets[f.assetID]
	assert.Equal(t, f.fromUserID, asset.OwnerID)
	assert.Equal(t, models.AssetNotReceived, asset.Status)
}

func TestTransferOwnershipRejectsSelfTransfer(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	req := f.request()
	req.ToUserID = req.FromUserID

	_, err := f.uc.TransferOwnership(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransferOwnershipRejectsNonOwner(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	req := f.request()
	req.FromUserID = uuid.New()

	_, err := f.uc.TransferOwnership(context.Background(), req)
	assert.ErrorIs(t, err, repository.ErrAssetNotFound)
}

func TestTransferOwnershipRejectsReceivedAsset(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	f.assets.assets[f.assetID].Status = models.AssetReceived

	_, err := f.uc.TransferOwnership(context.Background(), f.request())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransferOwnershipBlockedByActiveAppointment(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	require.NoError(t, f.appointments.Create(context.Background(), &models.PickupAppointment{
		ID:      uuid.New(),
		AssetID: f.assetID,
		UserID:  f.fromUserID,
		StoreID: f.storeID,
		Number:  "APT-00000001",
		PIN:     "111111",
		Status:  models.AppointmentPending,
	}))

	_, err := f.uc.TransferOwnership(context.Background(), f.request())
	assert.ErrorIs(t, err, ErrActiveAppointment)
	assert.Empty(t, f.transfers.transfers)
}

func TestConvertDigitalToPhysical(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.fromUserID, models.CurrencyLYD)] = 10000
	f.ledger.digital[balanceKey(f.fromUserID, string(models.MetalSilver))] = decimal.RequireFromString("8")

	asset, err := f.uc.ConvertDigitalToPhysical(context.Background(), ConvertRequest{
		UserID:  f.fromUserID,
		Metal:   models.MetalSilver,
		Grams:   decimal.RequireFromString("5"),
		StoreID: f.storeID,
	})
	require.NoError(t, err)

	assert.Contains(t, asset.Serial, "BAR-")
	assert.Equal(t, models.MetalSilver, asset.Metal)
	assert.Equal(t, 999, asset.Carat)
	assert.Equal(t, models.AssetNotReceived, asset.Status)
	require.NotNil(t, asset.PickupDeadline)
	assert.Equal(t, f.now.Add(models.PickupWindow), *asset.PickupDeadline)

	// 75 LYD fabrication fee in minor units.
	assert.Equal(t, int64(2500), f.ledger.balances[balanceKey(f.fromUserID, models.CurrencyLYD)])
	grams := f.ledger.digital[balanceKey(f.fromUserID, string(models.MetalSilver))]
	assert.True(t, decimal.RequireFromString("3").Equal(grams), grams.String())
}

func TestConvertDigitalToPhysicalInsufficientMetal(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.fromUserID, models.CurrencyLYD)] = 10000
	f.ledger.digital[balanceKey(f.fromUserID, string(models.MetalGold))] = decimal.RequireFromString("1")

	_, err := f.uc.ConvertDigitalToPhysical(context.Background(), ConvertRequest{
		UserID:  f.fromUserID,
		Metal:   models.MetalGold,
		Grams:   decimal.RequireFromString("2"),
		StoreID: f.storeID,
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientMetal)
}

func TestConvertDigitalToPhysicalCannotPayFee(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.fromUserID, models.CurrencyLYD)] = 1000
	f.ledger.digital[balanceKey(f.fromUserID, string(models.MetalGold))] = decimal.RequireFromString("5")

	_, err := f.uc.ConvertDigitalToPhysical(context.Background(), ConvertRequest{
		UserID:  f.fromUserID,
		Metal:   models.MetalGold,
		Grams:   decimal.RequireFromString("2"),
		StoreID: f.storeID,
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)

	// Grams must survive a failed fee debit.
	grams := f.ledger.digital[balanceKey(f.fromUserID, string(models.MetalGold))]
	assert.True(t, decimal.RequireFromString("5").Equal(grams), grams.String())
}

func TestChangePickupLocation(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.fromUserID, models.CurrencyLYD)] = 10000
	newStoreID := uuid.New()
	f.uc.stores.(*fakeStoreRepo).stores[newStoreID] = &models.Store{ID: newStoreID, Name: "Branch", Active: true}

	err := f.uc.ChangePickupLocation(context.Background(), f.fromUserID, f.assetID, newStoreID)
	require.NoError(t, err)

	asset := f.assets.assets[f.assetID]
	require.NotNil(t, asset.PickupStoreID)
	assert.Equal(t, newStoreID, *asset.PickupStoreID)

	// 50 LYD relocation fee in minor units.
	assert.Equal(t, int64(5000), f.ledger.balances[balanceKey(f.fromUserID, models.CurrencyLYD)])
}

func TestChangePickupLocationUnknownStore(t *testing.T) {
	f := newTransferFixture(t)
	defer f.cleanup()

	err := f.uc.ChangePickupLocation(context.Background(), f.fromUserID, f.assetID, uuid.New())
	assert.ErrorIs(t, err, repository.ErrStoreNotFound)
}
