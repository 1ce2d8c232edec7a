package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"MarketGate/internal/domain/models"
	domrepo "MarketGate/internal/domain/repository"
	pkgch "MarketGate/pkg/clickhouse"
	applogger "MarketGate/pkg/logger"
)

const DefaultPriceHistoryTable = "market.price_history"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHPriceHistory reads daily bars from the externally owned price_history table.
// It never writes.
type CHPriceHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceHistory(ch *pkgch.Client, table string, l *applogger.Logger) (*CHPriceHistory, error) {
	if table == "" {
		table = DefaultPriceHistoryTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid price history table %q", table)
	}
	return &CHPriceHistory{db: ch.DB(), table: table, l: l}, nil
}

func (s *CHPriceHistory) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	const qtpl = `
        SELECT bucket, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, from, to)
	if err != nil {
		s.logErr("clickhouse get_candles query error", symbol, err)
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.logErr("clickhouse get_candles scan error", symbol, err)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Bucket = c.Bucket.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse get_candles rows error", symbol, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_candles ok",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// GetLatestCandle returns nil without error when the symbol has no rows.
func (s *CHPriceHistory) GetLatestCandle(ctx context.Context, symbol string) (*models.Candle, error) {
	const qtpl = `
        SELECT bucket, open, high, low, close, volume
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT 1
    `
	var c models.Candle
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(qtpl, s.table), symbol).
		Scan(&c.Bucket, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logErr("clickhouse latest_candle error", symbol, err)
		return nil, fmt.Errorf("get latest candle: %w", err)
	}
	c.Bucket = c.Bucket.UTC()
	return &c, nil
}

func (s *CHPriceHistory) logErr(msg, symbol string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.Error(err),
	)
}

var _ domrepo.PriceHistory = (*CHPriceHistory)(nil)
