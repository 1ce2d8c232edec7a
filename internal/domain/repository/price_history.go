package repository

import (
	"context"
	"time"

	"MarketGate/internal/domain/models"
)

// PriceHistory provides read-only access to the externally owned price history table.
type PriceHistory interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	GetLatestCandle(ctx context.Context, symbol string) (*models.Candle, error)
}
