package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/models"
)

// Flat fees in whole LYD.
const (
	fabricationFeeLYD = 75
	relocationFeeLYD  = 50
)

// lydScale converts whole LYD to minor units; matches the currencies seed
// (LYD minor_units = 2).
const lydScale = 100

// physicalCommissionRate applies to physical purchases only. Digital trading
// is commission-free.
var physicalCommissionRate = decimal.NewFromFloat(0.015)

func commissionFor(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).Mul(physicalCommissionRate).Round(0).IntPart()
}

func toMinorUnits(amount decimal.Decimal, currency *models.Currency) int64 {
	multiplier := decimal.NewFromInt(10).Pow(decimal.NewFromInt(currency.MinorUnits))
	return amount.Mul(multiplier).IntPart()
}

func fromMinorUnits(minorUnits int64, currency *models.Currency) (decimal.Decimal, error) {
	if currency.MinorUnits <= 0 {
		return decimal.Zero, fmt.Errorf("invalid currency minor units: %d", currency.MinorUnits)
	}
	divisor := decimal.NewFromInt(10).Pow(decimal.NewFromInt(currency.MinorUnits))
	return decimal.NewFromInt(minorUnits).Div(divisor), nil
}

// PriceSource supplies the live per-gram price in LYD minor units. The
// database-backed catalog satisfies it directly; production wraps it in the
// redis cache.
type PriceSource interface {
	PricePerGram(ctx context.Context, metal models.MetalType) (int64, error)
}

// CurrencyConverter turns an LYD amount into another wallet currency,
// both sides in minor units.
type CurrencyConverter interface {
	FromLYD(ctx context.Context, amount int64, toCurrency string) (int64, error)
}

// FixedRateConverter is the shipped converter: one posted LYD-per-USD rate.
type FixedRateConverter struct {
	LYDPerUSD decimal.Decimal
}

func (c FixedRateConverter) FromLYD(ctx context.Context, amount int64, toCurrency string) (int64, error) {
	switch toCurrency {
	case models.CurrencyLYD:
		return amount, nil
	case models.CurrencyUSD:
		if c.LYDPerUSD.LessThanOrEqual(decimal.Zero) {
			return 0, fmt.Errorf("invalid LYD/USD rate: %s", c.LYDPerUSD)
		}
		return decimal.NewFromInt(amount).Div(c.LYDPerUSD).Round(0).IntPart(), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidCurrency, toCurrency)
	}
}
