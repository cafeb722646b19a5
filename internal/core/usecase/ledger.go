package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

// WalletBalance is one wallet expressed in major units for the API.
type WalletBalance struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// BalanceSnapshot is everything a user holds: fiat wallets plus
// digital metal grams.
type BalanceSnapshot struct {
	Wallets []WalletBalance         `json:"wallets"`
	Digital []models.DigitalBalance `json:"digital"`
}

type LedgerUsecase interface {
	OperateWallet(ctx context.Context, op models.WalletOperation) (decimal.Decimal, error)
	Balances(ctx context.Context, userID uuid.UUID) (*BalanceSnapshot, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
}

type ledgerUsecase struct {
	repo repository.LedgerRepository
	log  logger.Logger
}

func NewLedgerUsecase(repo repository.LedgerRepository, log logger.Logger) LedgerUsecase {
	return &ledgerUsecase{repo: repo, log: log}
}

func (uc *ledgerUsecase) OperateWallet(ctx context.Context, op models.WalletOperation) (decimal.Decimal, error) {
	uc.log.Info("Starting wallet operation",
		logger.StringField("user_id", op.UserID.String()),
		logger.StringField("currency", op.CurrencyCode),
		logger.StringField("type", string(op.OperationType)),
		logger.StringField("amount", op.Amount))

	if !models.IsSupportedCurrency(op.CurrencyCode) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidCurrency, op.CurrencyCode)
	}

	currency, err := uc.repo.CurrencyByCode(ctx, op.CurrencyCode)
	if err != nil {
		uc.log.Error("Currency error",
			logger.ErrorField("error", err),
			logger.StringField("code", op.CurrencyCode))
		return decimal.Zero, fmt.Errorf("get currency: %w", err)
	}

	amount, err := uc.convertAmountToMinorUnits(op.Amount, currency)
	if err != nil {
		return decimal.Zero, err
	}
	if amount <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}

	var newBalance int64
	switch op.OperationType {
	case models.OperationDeposit:
		newBalance, err = uc.repo.Credit(ctx, op.UserID, op.CurrencyCode, amount, models.TransactionDeposit, "wallet deposit", nil)
	case models.OperationWithdraw:
		newBalance, err = uc.repo.Debit(ctx, op.UserID, op.CurrencyCode, amount, models.TransactionWithdrawal, "wallet withdrawal", nil)
	default:
		return decimal.Zero, ErrInvalidOperationType
	}
	if err != nil {
		return decimal.Zero, err
	}

	return fromMinorUnits(newBalance, currency)
}

func (uc *ledgerUsecase) Balances(ctx context.Context, userID uuid.UUID) (*BalanceSnapshot, error) {
	wallets, err := uc.repo.Wallets(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &BalanceSnapshot{Wallets: make([]WalletBalance, 0, len(wallets))}
	for _, w := range wallets {
		currency, err := uc.repo.CurrencyByCode(ctx, w.CurrencyCode)
		if err != nil {
			return nil, err
		}
		balance, err := fromMinorUnits(w.Balance, currency)
		if err != nil {
			return nil, err
		}
		snapshot.Wallets = append(snapshot.Wallets, WalletBalance{Currency: w.CurrencyCode, Balance: balance})
	}

	digital, err := uc.repo.DigitalBalances(ctx, userID)
	if err != nil {
		return nil, err
	}
	snapshot.Digital = digital

	return snapshot, nil
}

func (uc *ledgerUsecase) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return uc.repo.Transactions(ctx, userID, limit)
}

func (uc *ledgerUsecase) convertAmountToMinorUnits(amountStr string, currency *models.Currency) (int64, error) {
	normalAmount := strings.ReplaceAll(amountStr, ",", ".")
	amount, err := decimal.NewFromString(normalAmount)
	if err != nil {
		uc.log.Error("Amount conversion error",
			logger.StringField("input", amountStr),
			logger.ErrorField("error", err))
		return 0, fmt.Errorf("convert amount: %w", err)
	}
	return toMinorUnits(amount, currency), nil
}
