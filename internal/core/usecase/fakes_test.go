package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

// In-memory doubles for the repository interfaces. They reproduce the
// storage semantics the usecases depend on (guarded debits, uniqueness
// conflicts, all-or-nothing orchestrations) without a database.

var (
	_ repository.LedgerRepository      = (*fakeLedgerRepo)(nil)
	_ repository.CatalogRepository     = (*fakeCatalogRepo)(nil)
	_ repository.StoreRepository       = (*fakeStoreRepo)(nil)
	_ repository.PurchaseRepository    = (*fakePurchaseRepo)(nil)
	_ repository.AssetRepository       = (*fakeAssetRepo)(nil)
	_ repository.AppointmentRepository = (*fakeAppointmentRepo)(nil)
	_ repository.TransferRepository    = (*fakeTransferRepo)(nil)
)

func balanceKey(userID uuid.UUID, code string) string {
	return userID.String() + "|" + code
}

type fakeLedgerRepo struct {
	balances   map[string]int64
	digital    map[string]decimal.Decimal
	txs        []models.Transaction
	currencies map[string]*models.Currency
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{
		balances: map[string]int64{},
		digital:  map[string]decimal.Decimal{},
		currencies: map[string]*models.Currency{
			models.CurrencyLYD: {Code: models.CurrencyLYD, Name: "Libyan Dinar", MinorUnitName: "dirham", MinorUnits: 2},
			models.CurrencyUSD: {Code: models.CurrencyUSD, Name: "US Dollar", MinorUnitName: "cent", MinorUnits: 2},
		},
	}
}

func (f *fakeLedgerRepo) Credit(ctx context.Context, userID uuid.UUID, currency string, amount int64, txType models.TransactionType, description string, referenceID *uuid.UUID) (int64, error) {
	key := balanceKey(userID, currency)
	f.balances[key] += amount
	f.txs = append(f.txs, models.Transaction{
		ID: uuid.New(), UserID: userID, Type: txType, Amount: amount,
		CurrencyCode: currency, Description: description, ReferenceID: referenceID,
	})
	return f.balances[key], nil
}

func (f *fakeLedgerRepo) Debit(ctx context.Context, userID uuid.UUID, currency string, amount int64, txType models.TransactionType, description string, referenceID *uuid.UUID) (int64, error) {
	key := balanceKey(userID, currency)
	if f.balances[key] < amount {
		return 0, repository.ErrInsufficientFunds
	}
	f.balances[key] -= amount
	f.txs = append(f.txs, models.Transaction{
		ID: uuid.New(), UserID: userID, Type: txType, Amount: -amount,
		CurrencyCode: currency, Description: description, ReferenceID: referenceID,
	})
	return f.balances[key], nil
}

func (f *fakeLedgerRepo) CreditDigital(ctx context.Context, userID uuid.UUID, metal models.MetalType, grams decimal.Decimal) (decimal.Decimal, error) {
	key := balanceKey(userID, string(metal))
	f.digital[key] = f.digital[key].Add(grams)
	return f.digital[key], nil
}

func (f *fakeLedgerRepo) DebitDigital(ctx context.Context, userID uuid.UUID, metal models.MetalType, grams decimal.Decimal) (decimal.Decimal, error) {
	key := balanceKey(userID, string(metal))
	if f.digital[key].LessThan(grams) {
		return decimal.Zero, repository.ErrInsufficientMetal
	}
	f.digital[key] = f.digital[key].Sub(grams)
	return f.digital[key], nil
}

func (f *fakeLedgerRepo) Wallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	var out []models.Wallet
	for code := range f.currencies {
		if balance, ok := f.balances[balanceKey(userID, code)]; ok {
			out = append(out, models.Wallet{ID: uuid.New(), UserID: userID, Balance: balance, CurrencyCode: code})
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) DigitalBalances(ctx context.Context, userID uuid.UUID) ([]models.DigitalBalance, error) {
	var out []models.DigitalBalance
	for _, metal := range []models.MetalType{models.MetalGold, models.MetalSilver} {
		if grams, ok := f.digital[balanceKey(userID, string(metal))]; ok {
			out = append(out, models.DigitalBalance{ID: uuid.New(), UserID: userID, Metal: metal, Grams: grams})
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for i := len(f.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.txs[i].UserID == userID {
			out = append(out, f.txs[i])
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) CurrencyByCode(ctx context.Context, code string) (*models.Currency, error) {
	c, ok := f.currencies[code]
	if !ok {
		return nil, repository.ErrCurrencyNotFound
	}
	return c, nil
}

type fakeCatalogRepo struct {
	products map[uuid.UUID]*models.Product
	prices   map[models.MetalType]int64
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		products: map[uuid.UUID]*models.Product{},
		prices:   map[models.MetalType]int64{},
	}
}

func (f *fakeCatalogRepo) ProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalogRepo) PricePerGram(ctx context.Context, metal models.MetalType) (int64, error) {
	price, ok := f.prices[metal]
	if !ok {
		return 0, repository.ErrPriceNotFound
	}
	return price, nil
}

type fakeStoreRepo struct {
	stores map[uuid.UUID]*models.Store
}

func newFakeStoreRepo(ids ...uuid.UUID) *fakeStoreRepo {
	f := &fakeStoreRepo{stores: map[uuid.UUID]*models.Store{}}
	for _, id := range ids {
		f.stores[id] = &models.Store{ID: id, Name: "Store " + id.String()[:8], Active: true}
	}
	return f
}

func (f *fakeStoreRepo) StoreByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	s, ok := f.stores[id]
	if !ok {
		return nil, repository.ErrStoreNotFound
	}
	return s, nil
}

func (f *fakeStoreRepo) ListStores(ctx context.Context) ([]models.Store, error) {
	var out []models.Store
	for _, s := range f.stores {
		out = append(out, *s)
	}
	return out, nil
}

// fakePurchaseRepo applies the whole purchase against the shared ledger
// fake, mirroring the all-or-nothing behavior of the real transaction.
type fakePurchaseRepo struct {
	ledger       *fakeLedgerRepo
	assets       *fakeAssetRepo
	invoices     []*models.PurchaseInvoice
	idempotency  map[string]bool
	takenSerials map[string]bool
	physicalErrs []error
}

func newFakePurchaseRepo(ledger *fakeLedgerRepo, assets *fakeAssetRepo) *fakePurchaseRepo {
	return &fakePurchaseRepo{
		ledger:       ledger,
		assets:       assets,
		idempotency:  map[string]bool{},
		takenSerials: map[string]bool{},
	}
}

func (f *fakePurchaseRepo) newInvoice(p repository.PurchaseParams, isDigital bool, assetID *uuid.UUID) (*models.PurchaseInvoice, error) {
	if p.IdempotencyKey != nil {
		if f.idempotency[*p.IdempotencyKey] {
			return nil, repository.ErrDuplicateRequest
		}
		f.idempotency[*p.IdempotencyKey] = true
	}
	if p.DebitCurrency != "" {
		if _, err := f.ledger.Debit(context.Background(), p.UserID, p.DebitCurrency, p.DebitAmount, models.TransactionPurchase, p.Description, nil); err != nil {
			return nil, err
		}
	}
	invoice := &models.PurchaseInvoice{
		ID: uuid.New(), UserID: p.UserID, Amount: p.Total, Commission: p.Commission,
		PaymentMethod: p.Method, IsDigital: isDigital, AssetID: assetID,
		IdempotencyKey: p.IdempotencyKey, CreatedAt: time.Now(),
	}
	f.invoices = append(f.invoices, invoice)
	return invoice, nil
}

func (f *fakePurchaseRepo) CreatePhysical(ctx context.Context, p repository.PurchaseParams, asset *models.OwnedAsset) (*models.PurchaseInvoice, error) {
	if len(f.physicalErrs) > 0 {
		err := f.physicalErrs[0]
		f.physicalErrs = f.physicalErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.takenSerials[asset.Serial] {
		return nil, repository.ErrSerialTaken
	}
	invoice, err := f.newInvoice(p, false, &asset.ID)
	if err != nil {
		return nil, err
	}
	f.assets.assets[asset.ID] = asset
	return invoice, nil
}

func (f *fakePurchaseRepo) CreateDigital(ctx context.Context, p repository.PurchaseParams, metal models.MetalType, grams decimal.Decimal) (*models.PurchaseInvoice, error) {
	invoice, err := f.newInvoice(p, true, nil)
	if err != nil {
		return nil, err
	}
	_, err = f.ledger.CreditDigital(ctx, p.UserID, metal, grams)
	return invoice, err
}

type fakeAssetRepo struct {
	assets       map[uuid.UUID]*models.OwnedAsset
	takenSerials map[string]bool
	insertErrs   []error
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{
		assets:       map[uuid.UUID]*models.OwnedAsset{},
		takenSerials: map[string]bool{},
	}
}

func (f *fakeAssetRepo) Insert(ctx context.Context, asset *models.OwnedAsset) error {
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if f.takenSerials[asset.Serial] {
		return repository.ErrSerialTaken
	}
	f.takenSerials[asset.Serial] = true
	f.assets[asset.ID] = asset
	return nil
}

func (f *fakeAssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.OwnedAsset, error) {
	a, ok := f.assets[id]
	if !ok {
		return nil, repository.ErrAssetNotFound
	}
	return a, nil
}

func (f *fakeAssetRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.OwnedAsset, error) {
	var out []models.OwnedAsset
	for _, a := range f.assets {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAssetRepo) MarkReceived(ctx context.Context, assetID uuid.UUID) error {
	a, ok := f.assets[assetID]
	if !ok {
		return repository.ErrAssetNotFound
	}
	if a.Status != models.AssetNotReceived {
		return repository.ErrInvalidTransition
	}
	a.Status = models.AssetReceived
	return nil
}

type fakeAppointmentRepo struct {
	appts        map[uuid.UUID]*models.PickupAppointment
	takenNumbers map[string]bool
	takenPINs    map[string]bool
	createErrs   []error
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{
		appts:        map[uuid.UUID]*models.PickupAppointment{},
		takenNumbers: map[string]bool{},
		takenPINs:    map[string]bool{},
	}
}

func (f *fakeAppointmentRepo) Create(ctx context.Context, appt *models.PickupAppointment) error {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range f.appts {
		if existing.AssetID == appt.AssetID && existing.Status.Active() {
			return repository.ErrActiveAppointment
		}
	}
	if f.takenNumbers[appt.Number] {
		return repository.ErrNumberTaken
	}
	if f.takenPINs[appt.PIN] {
		return repository.ErrPINTaken
	}
	f.takenNumbers[appt.Number] = true
	f.takenPINs[appt.PIN] = true
	stored := *appt
	f.appts[appt.ID] = &stored
	return nil
}

func (f *fakeAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PickupAppointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	return a, nil
}

func (f *fakeAppointmentRepo) ActiveByAsset(ctx context.Context, assetID uuid.UUID) (*models.PickupAppointment, error) {
	for _, a := range f.appts {
		if a.AssetID == assetID && a.Status.Active() {
			return a, nil
		}
	}
	return nil, repository.ErrAppointmentNotFound
}

func (f *fakeAppointmentRepo) transition(id uuid.UUID, next models.AppointmentStatus) error {
	a, ok := f.appts[id]
	if !ok {
		return repository.ErrAppointmentNotFound
	}
	if !a.Status.CanTransitionTo(next) {
		return repository.ErrInvalidTransition
	}
	a.Status = next
	return nil
}

func (f *fakeAppointmentRepo) Confirm(ctx context.Context, id uuid.UUID, now time.Time) error {
	return f.transition(id, models.AppointmentConfirmed)
}

func (f *fakeAppointmentRepo) Cancel(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	if err := f.transition(id, models.AppointmentCancelled); err != nil {
		return err
	}
	f.appts[id].CancelReason = &reason
	return nil
}

func (f *fakeAppointmentRepo) Complete(ctx context.Context, id uuid.UUID, now time.Time) error {
	return f.transition(id, models.AppointmentCompleted)
}

func (f *fakeAppointmentRepo) SweepNoShows(ctx context.Context, now time.Time) (int64, error) {
	var swept int64
	for _, a := range f.appts {
		if a.Status == models.AppointmentConfirmed && a.ScheduledDate.Before(now.Truncate(24*time.Hour)) {
			a.Status = models.AppointmentNoShow
			swept++
		}
	}
	return swept, nil
}

type fakeTransferRepo struct {
	ledger       *fakeLedgerRepo
	assets       *fakeAssetRepo
	appointments *fakeAppointmentRepo
	transfers    map[uuid.UUID]*models.AssetTransfer
	recentCount  int64
	convertErrs  []error
}

func newFakeTransferRepo(ledger *fakeLedgerRepo, assets *fakeAssetRepo, appointments *fakeAppointmentRepo) *fakeTransferRepo {
	return &fakeTransferRepo{
		ledger:       ledger,
		assets:       assets,
		appointments: appointments,
		transfers:    map[uuid.UUID]*models.AssetTransfer{},
	}
}

func (f *fakeTransferRepo) reassign(t *models.AssetTransfer) error {
	asset, ok := f.assets.assets[t.AssetID]
	if !ok {
		return repository.ErrAssetNotFound
	}
	if asset.OwnerID != t.FromUserID || asset.Status != models.AssetNotReceived {
		return repository.ErrInvalidTransition
	}
	if _, err := f.appointments.ActiveByAsset(context.Background(), t.AssetID); err == nil {
		return repository.ErrActiveAppointment
	}
	asset.OwnerID = t.ToUserID
	asset.Status = models.AssetTransferred
	return nil
}

func (f *fakeTransferRepo) Execute(ctx context.Context, t *models.AssetTransfer) error {
	if t.Status == models.TransferCompleted {
		if err := f.reassign(t); err != nil {
			return err
		}
	}
	stored := *t
	f.transfers[t.ID] = &stored
	return nil
}

func (f *fakeTransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AssetTransfer, error) {
	t, ok := f.transfers[id]
	if !ok {
		return nil, repository.ErrTransferNotFound
	}
	return t, nil
}

func (f *fakeTransferRepo) Resolve(ctx context.Context, id uuid.UUID, approve bool, now time.Time) (*models.AssetTransfer, error) {
	t, ok := f.transfers[id]
	if !ok {
		return nil, repository.ErrTransferNotFound
	}
	if t.Status != models.TransferManualReview {
		return nil, repository.ErrInvalidTransition
	}
	if approve {
		if err := f.reassign(t); err != nil {
			return nil, err
		}
		t.Status = models.TransferCompleted
	} else {
		t.Status = models.TransferRejected
	}
	t.ResolvedAt = &now
	return t, nil
}

func (f *fakeTransferRepo) CountRecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	return f.recentCount, nil
}

func (f *fakeTransferRepo) Convert(ctx context.Context, p repository.ConvertParams, asset *models.OwnedAsset) error {
	if len(f.convertErrs) > 0 {
		err := f.convertErrs[0]
		f.convertErrs = f.convertErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, err := f.ledger.DebitDigital(ctx, p.UserID, p.Metal, p.Grams); err != nil {
		return err
	}
	if _, err := f.ledger.Debit(ctx, p.UserID, models.CurrencyLYD, p.FabricationFee, models.TransactionPurchase, "fabrication fee", nil); err != nil {
		// Undo the grams debit so the fake stays all-or-nothing.
		if _, creditErr := f.ledger.CreditDigital(ctx, p.UserID, p.Metal, p.Grams); creditErr != nil {
			return fmt.Errorf("restore grams: %w", creditErr)
		}
		return err
	}
	return f.assets.Insert(ctx, asset)
}

func (f *fakeTransferRepo) Relocate(ctx context.Context, userID, assetID, storeID uuid.UUID, fee int64) error {
	asset, ok := f.assets.assets[assetID]
	if !ok {
		return repository.ErrAssetNotFound
	}
	if asset.OwnerID != userID || asset.Status != models.AssetNotReceived {
		return repository.ErrInvalidTransition
	}
	if _, err := f.ledger.Debit(ctx, userID, models.CurrencyLYD, fee, models.TransactionPurchase, "relocation fee", nil); err != nil {
		return err
	}
	asset.PickupStoreID = &storeID
	return nil
}
