package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/models"
)

// RiskContext is what the scoring collaborator sees about a transfer.
type RiskContext struct {
	Asset           *models.OwnedAsset
	FromUserID      uuid.UUID
	ToUserID        uuid.UUID
	RecentTransfers int64
	Now             time.Time
}

// RiskScorer scores a transfer request. The core only compares the score
// against a threshold; how it is computed is entirely the collaborator's
// business.
type RiskScorer interface {
	Score(ctx context.Context, rc RiskContext) (decimal.Decimal, error)
}

// HeuristicScorer is the shipped placeholder policy: heavier bars, very
// fresh purchases and rapid-fire senders score higher. Deterministic on its
// inputs so it can be reasoned about and tested; a real fraud model plugs
// in behind the same interface.
type HeuristicScorer struct{}

func (HeuristicScorer) Score(ctx context.Context, rc RiskContext) (decimal.Decimal, error) {
	score := decimal.NewFromInt(10)

	score = score.Add(rc.Asset.WeightGrams.Mul(decimal.NewFromFloat(0.5)))

	if rc.Now.Sub(rc.Asset.CreatedAt) < 7*24*time.Hour {
		score = score.Add(decimal.NewFromInt(25))
	}

	if rc.RecentTransfers > 2 {
		score = score.Add(decimal.NewFromInt(15 * (rc.RecentTransfers - 2)))
	}

	return score, nil
}
