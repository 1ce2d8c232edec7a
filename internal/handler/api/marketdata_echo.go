package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketGate/internal/domain/models"
	domrepo "MarketGate/internal/domain/repository"
	svcmetrics "MarketGate/internal/service/metrics"
	"MarketGate/internal/usecase"
	xhttp "MarketGate/pkg/http"
	xlogger "MarketGate/pkg/logger"
	"MarketGate/pkg/util"
)

// MarketDataEchoHandler exposes the Gateway over HTTP.
type MarketDataEchoHandler struct {
	logger *xlogger.Logger
	gw     *usecase.Gateway
	health *usecase.HealthReporter
	now    func() time.Time
}

func NewMarketDataEchoHandler(logger *xlogger.Logger, gw *usecase.Gateway, health *usecase.HealthReporter) *MarketDataEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	svcmetrics.Register()
	return &MarketDataEchoHandler{logger: logger, gw: gw, health: health, now: time.Now}
}

func (h *MarketDataEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/quote", h.Quote)
	g.POST("/quotes", h.QuotesBatch)
	g.GET("/ohlcv", h.OHLCV)
	g.GET("/price-at", h.PriceAt)
	g.GET("/symbols/normalize", h.Normalize)
	g.GET("/health", h.Health)
	g.GET("/health/providers", h.ProviderHealth)
	g.DELETE("/quarantine/:symbol", h.ReleaseQuarantine)
}

func (h *MarketDataEchoHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.gw.GetQuote(c.Request().Context(), req.Symbol, req.FailClosed)
	if err != nil {
		return h.fail(c, "quote", err)
	}
	return h.snapshot(c, "quote", snap)
}

func (h *MarketDataEchoHandler) QuotesBatch(c echo.Context) error {
	req := &models.BatchQuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snaps, err := h.gw.GetQuotesBatch(c.Request().Context(), req.Symbols, req.FailClosed, req.Concurrency)
	if err != nil {
		return h.fail(c, "quotes", err)
	}
	for _, s := range snaps {
		h.countDegraded("quotes", s)
	}
	return xhttp.SuccessResponse(c, snaps)
}

func (h *MarketDataEchoHandler) OHLCV(c echo.Context) error {
	req := &models.OHLCVRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	to := h.now().UTC()
	if req.To != "" {
		t, ok := util.ParseTime(req.To)
		if !ok {
			return xhttp.AppErrorResponse(c, invalidParam("to", "unparseable time"))
		}
		to = t
	}
	from := to.Add(-time.Duration(req.Days) * 24 * time.Hour)
	if req.From != "" {
		t, ok := util.ParseTime(req.From)
		if !ok {
			return xhttp.AppErrorResponse(c, invalidParam("from", "unparseable time"))
		}
		from = t
	}
	// aligned bounds keep cache keys stable across requests
	from, to = util.AlignRange(from, to, domrepo.IntervalDuration(req.Interval))

	r := models.Range{Start: from, End: to, Interval: req.Interval, MinPoints: req.MinPoints}
	snap, err := h.gw.GetOHLCV(c.Request().Context(), req.Symbol, r, req.FailClosed)
	if err != nil {
		return h.fail(c, "ohlcv", err)
	}
	return h.snapshot(c, "ohlcv", snap)
}

func (h *MarketDataEchoHandler) PriceAt(c echo.Context) error {
	req := &models.PriceAtRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ts, ok := util.ParseTime(req.At)
	if !ok {
		return xhttp.AppErrorResponse(c, invalidParam("at", "unparseable time"))
	}
	tolerance := time.Duration(req.ToleranceDays) * 24 * time.Hour

	snap, err := h.gw.GetPriceAt(c.Request().Context(), req.Symbol, ts, tolerance, req.FailClosed)
	if err != nil {
		return h.fail(c, "price_at", err)
	}
	return h.snapshot(c, "price_at", snap)
}

func (h *MarketDataEchoHandler) Normalize(c echo.Context) error {
	req := &models.NormalizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.gw.NormalizeSymbol(req.Symbol))
}

// Health answers 503 once every provider breaker is open.
func (h *MarketDataEchoHandler) Health(c echo.Context) error {
	rep := h.health.Report()
	if !h.health.Healthy() {
		return xhttp.ServiceUnavailableResponse(c, rep)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *MarketDataEchoHandler) ProviderHealth(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.health.ProviderHealth())
}

// ReleaseQuarantine is the operator override that lifts a symbol quarantine.
func (h *MarketDataEchoHandler) ReleaseQuarantine(c echo.Context) error {
	raw := c.Param("symbol")
	released, err := h.gw.ReleaseQuarantine(raw)
	if err != nil {
		return h.fail(c, "quarantine", err)
	}
	h.logger.Info("quarantine release requested",
		xlogger.String("symbol", raw),
		xlogger.Bool("released", released),
		xlogger.String("remote", c.RealIP()),
	)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":   h.gw.NormalizeSymbol(raw).Canonical,
		"released": released,
	})
}

func (h *MarketDataEchoHandler) snapshot(c echo.Context, endpoint string, snap *models.MarketDataSnapshot) error {
	h.countDegraded(endpoint, snap)
	if !snap.Meta.CacheHit {
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *MarketDataEchoHandler) countDegraded(endpoint string, snap *models.MarketDataSnapshot) {
	if snap == nil || !h.gw.IsDegraded(&snap.Meta) {
		return
	}
	svcmetrics.APIDegraded.WithLabelValues(endpoint, string(h.gw.LabelSkipReason(&snap.Meta))).Inc()
}

func (h *MarketDataEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()
	switch {
	case errors.Is(err, usecase.ErrInvalidSymbol):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_INVALID_SYMBOL", "symbol", err.Error(), http.StatusBadRequest).WithError(err))
	case errors.Is(err, usecase.ErrInvalidRange):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_INVALID_RANGE", "", err.Error(), http.StatusBadRequest).WithError(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_TIMEOUT", "", "request cancelled", http.StatusGatewayTimeout).WithError(err))
	}
	h.logger.Error("market data usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

func invalidParam(field, msg string) *xhttp.AppError {
	return xhttp.NewAppError("ERR_INVALID_PARAM", field, msg, http.StatusBadRequest)
}
