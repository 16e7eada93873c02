package service

import (
	"context"

	"IgniteX/internal/domain/models"
)

// RegimeSource exposes the current market regime, consulted by the regime
// filter gate. Supplied by the external market-state service.
type RegimeSource interface {
	CurrentRegime(ctx context.Context) (models.Regime, error)
}

// WinRateSource exposes historical strategy win rates (percentage, 0-100),
// consulted by the final gate. Supplied by the performance tracker service.
type WinRateSource interface {
	WinRate(ctx context.Context, strategy string) (float64, error)
}
