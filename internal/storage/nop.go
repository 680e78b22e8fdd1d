package storage

import (
	"context"
	"time"

	"moviebot/internal/models"
)

// NopRedemptionLog discards redemptions. Used when analytics are disabled.
type NopRedemptionLog struct{}

func (NopRedemptionLog) RecordRedemption(context.Context, models.Redemption) error { return nil }

func (NopRedemptionLog) Summary(context.Context, time.Time) (models.RedemptionSummary, error) {
	return models.RedemptionSummary{}, nil
}

func (NopRedemptionLog) TopCodes(context.Context, int, time.Time) ([]models.CodeStat, error) {
	return nil, nil
}

func (NopRedemptionLog) Initialize(context.Context) error { return nil }

func (NopRedemptionLog) Close() error { return nil }
