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

type purchaseFixture struct {
	uc        *purchaseUsecase
	ledger    *fakeLedgerRepo
	purchases *fakePurchaseRepo
	assets    *fakeAssetRepo
	userID    uuid.UUID
	productID uuid.UUID
	storeID   uuid.UUID
	now       time.Time
	cleanup   func()
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()
	log, cleanup := logger.NewLogger()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	userID := uuid.New()
	productID := uuid.New()
	storeID := uuid.New()

	ledger := newFakeLedgerRepo()
	assets := newFakeAssetRepo()
	purchases := newFakePurchaseRepo(ledger, assets)

	catalog := newFakeCatalogRepo()
	catalog.products[productID] = &models.Product{
		ID:          productID,
		Name:        "10g gold bar",
		Metal:       models.MetalGold,
		Carat:       24,
		WeightGrams: decimal.RequireFromString("10"),
		BasePrice:   813200,
		Active:      true,
	}
	catalog.prices[models.MetalGold] = 81320

	uc := &purchaseUsecase{
		purchases: purchases,
		catalog:   catalog,
		stores:    newFakeStoreRepo(storeID),
		prices:    catalog,
		converter: FixedRateConverter{LYDPerUSD: decimal.RequireFromString("4.85")},
		log:       log,
		now:       func() time.Time { return now },
	}

	return &purchaseFixture{
		uc: uc, ledger: ledger, purchases: purchases, assets: assets,
		userID: userID, productID: productID, storeID: storeID,
		now: now, cleanup: cleanup,
	}
}

func TestPurchasePhysicalWithDinarWallet(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.userID, models.CurrencyLYD)] = 1000000

	result, err := f.uc.PurchasePhysical(context.Background(), PhysicalPurchaseRequest{
		UserID:    f.userID,
		ProductID: f.productID,
		StoreID:   f.storeID,
		Method:    models.PaymentWalletDinar,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(813200), result.Subtotal)
	assert.Equal(t, int64(12198), result.Commission)
	assert.Equal(t, int64(825398), result.Total)
	assert.Equal(t, int64(825398), result.Invoice.Amount)
	assert.False(t, result.Invoice.IsDigital)

	assert.Equal(t, int64(174602), f.ledger.balances[balanceKey(f.userID, models.CurrencyLYD)])

	require.NotNil(t, result.Asset)
	assert.Equal(t, models.AssetNotReceived, result.Asset.Status)
	assert.Equal(t, f.userID, result.Asset.OwnerID)
	assert.Contains(t, result.Asset.Serial, "BAR-")
	require.NotNil(t, result.Asset.PickupDeadline)
	assert.Equal(t, f.now.Add(models.PickupWindow), *result.Asset.PickupDeadline)
}

func TestPurchasePhysicalInsufficientFunds(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.userID, models.CurrencyLYD)] = 500000

	_, err := f.uc.PurchasePhysical(context.Background(), PhysicalPurchaseRequest{
		UserID:    f.userID,
		ProductID: f.productID,
		StoreID:   f.storeID,
		Method:    models.PaymentWalletDinar,
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)

	// Nothing may land when the debit fails.
	assert.Equal(t, int64(500000), f.ledger.balances[balanceKey(f.userID, models.CurrencyLYD)])
	assert.Empty(t, f.purchases.invoices)
	assert.Empty(t, f.assets.assets)
}

func TestPurchasePhysicalWithDollarWallet(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.userID, models.CurrencyUSD)] = 200000

	result, err := f.uc.PurchasePhysical(context.Background(), PhysicalPurchaseRequest{
		UserID:    f.userID,
		ProductID: f.productID,
		StoreID:   f.storeID,
		Method:    models.PaymentWalletDollar,
	})
	require.NoError(t, err)

	// 825398 LYD minor units at 4.85 LYD per USD.
	assert.Equal(t, int64(200000-170185), f.ledger.balances[balanceKey(f.userID, models.CurrencyUSD)])
	assert.Equal(t, int64(825398), result.Total)

	// The trail records what actually left the wallet, in its currency.
	require.Len(t, f.ledger.txs, 1)
	assert.Equal(t, models.CurrencyUSD, f.ledger.txs[0].CurrencyCode)
	assert.Equal(t, int64(-170185), f.ledger.txs[0].Amount)
}

func TestPurchasePhysicalWithCashSkipsWallet(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	result, err := f.uc.PurchasePhysical(context.Background(), PhysicalPurchaseRequest{
		UserID:    f.userID,
		ProductID: f.productID,
		StoreID:   f.storeID,
		Method:    models.PaymentCash,
	})
	require.NoError(t, err)

	assert.Empty(t, f.ledger.balances)
	assert.Empty(t, f.ledger.txs)
	require.NotNil(t, result.Asset)
	assert.Len(t, f.purchases.invoices, 1)
}

func TestPurchasePhysicalUnknownProduct(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	_, err := f.uc.PurchasePhysical(context.Background(), PhysicalPurchaseRequest{
		UserID:    f.userID,
		ProductID: uuid.New(),
		StoreID:   f.storeID,
		Method:    models.PaymentCash,
	})
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestPurchasePhysicalRetriesSerialCollision(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	f.purchases.physicalErrs = []error{repository.ErrSerialTaken, repository.ErrSerialTaken}

	result, err := f.uc.PurchasePhysical(context.Background(), PhysicalPurchaseRequest{
		UserID:    f.userID,
		ProductID: f.productID,
		StoreID:   f.storeID,
		Method:    models.PaymentCash,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Asset.Serial, "BAR-")
}

func TestPurchasePhysicalGivesUpAfterMaxSerialAttempts(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	for i := 0; i < maxCodeAttempts; i++ {
		f.purchases.physicalErrs = append(f.purchases.physicalErrs, repository.ErrSerialTaken)
	}

	_, err := f.uc.PurchasePhysical(context.Background(), PhysicalPurchaseRequest{
		UserID:    f.userID,
		ProductID: f.productID,
		StoreID:   f.storeID,
		Method:    models.PaymentCash,
	})
	assert.ErrorIs(t, err, ErrCodeGeneration)
}

func TestPurchasePhysicalDuplicateIdempotencyKey(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.userID, models.CurrencyLYD)] = 2000000
	key := "req-42"

	req := PhysicalPurchaseRequest{
		UserID:         f.userID,
		ProductID:      f.productID,
		StoreID:        f.storeID,
		Method:         models.PaymentWalletDinar,
		IdempotencyKey: &key,
	}

	_, err := f.uc.PurchasePhysical(context.Background(), req)
	require.NoError(t, err)

	_, err = f.uc.PurchasePhysical(context.Background(), req)
	assert.ErrorIs(t, err, repository.ErrDuplicateRequest)
	assert.Len(t, f.purchases.invoices, 1)
}

func TestPurchaseDigital(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	f.ledger.balances[balanceKey(f.userID, models.CurrencyLYD)] = 300000

	result, err := f.uc.PurchaseDigital(context.Background(), DigitalPurchaseRequest{
		UserID: f.userID,
		Metal:  models.MetalGold,
		Grams:  decimal.RequireFromString("2.5"),
		Method: models.PaymentWalletDinar,
	})
	require.NoError(t, err)

	// 2.5 g at 81320 per gram, commission-free.
	assert.Equal(t, int64(203300), result.Subtotal)
	assert.Equal(t, int64(0), result.Commission)
	assert.Equal(t, int64(203300), result.Total)
	assert.Nil(t, result.Asset)
	assert.True(t, result.Invoice.IsDigital)

	assert.Equal(t, int64(96700), f.ledger.balances[balanceKey(f.userID, models.CurrencyLYD)])
	grams := f.ledger.digital[balanceKey(f.userID, string(models.MetalGold))]
	assert.True(t, decimal.RequireFromString("2.5").Equal(grams), grams.String())
}

func TestPurchaseDigitalRejectsCash(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	_, err := f.uc.PurchaseDigital(context.Background(), DigitalPurchaseRequest{
		UserID: f.userID,
		Metal:  models.MetalGold,
		Grams:  decimal.RequireFromString("1"),
		Method: models.PaymentCash,
	})
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestPurchaseDigitalRejectsNonPositiveGrams(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.cleanup()

	_, err := f.uc.PurchaseDigital(context.Background(), DigitalPurchaseRequest{
		UserID: f.userID,
		Metal:  models.MetalGold,
		Grams:  decimal.Zero,
		Method: models.PaymentWalletDinar,
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
