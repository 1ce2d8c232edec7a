package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "MarketGate/pkg/logger"
)

// RequestLogging logs each request at debug level with the symbol query
// parameter when present. Failures and slow requests are logged by Metrics.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			fields := []applogger.Field{
				applogger.String("method", c.Request().Method),
				applogger.String("route", c.Path()),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", res.Status),
				applogger.Int64("bytes", res.Size),
				applogger.Duration("latency", time.Since(start)),
			}
			if sym := c.QueryParam("symbol"); sym != "" {
				fields = append(fields, applogger.String("symbol", sym))
			}
			l.Debug("http request", fields...)
			return nil
		}
	}
}
