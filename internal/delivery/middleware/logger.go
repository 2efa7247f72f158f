package middleware

import (
	"context"
	"log/slog"
	"time"

	"rewardnet/config"
	deliverycontext "rewardnet/internal/delivery/context"

	"github.com/labstack/echo/v4"
)

// RequestObserver receives one sample per served request.
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// LoggerMiddleware logs requests and feeds the request observer.
// Successful requests are only logged in debug mode; failures are always logged.
type LoggerMiddleware struct {
	logger   *slog.Logger
	debug    bool
	observer RequestObserver
}

// NewLoggerMiddleware creates a new logger middleware. observer may be nil.
func NewLoggerMiddleware(logger *slog.Logger, config *config.Config, observer RequestObserver) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger:   logger,
		debug:    config.Env.Debug,
		observer: observer,
	}
}

// Handle processes request logging
func (m *LoggerMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			// Render the error now so the recorded status is the one the client sees.
			c.Error(err)
		}

		status := c.Response().Status
		if m.observer != nil {
			m.observer.ObserveHTTPRequest(c.Request().Method, routeOf(c), status, time.Since(start))
		}
		if m.debug || status >= 400 {
			m.logRequest(c, start, err)
		}

		return nil
	}
}

// routeOf returns the registered path template so metrics labels stay bounded.
func routeOf(c echo.Context) string {
	if route := c.Path(); route != "" {
		return route
	}

	return "unmatched"
}

// logRequest logs request details
func (m *LoggerMiddleware) logRequest(c echo.Context, start time.Time, err error) {
	req := c.Request()
	res := c.Response()

	latency := time.Since(start)

	fields := []slog.Attr{
		slog.String("request_id", deliverycontext.GetRequestID(c)),
		slog.String("method", req.Method),
		slog.String("route", routeOf(c)),
		slog.String("uri", req.URL.Path),
		slog.Int("status", res.Status),
		slog.Duration("latency", latency),
		slog.String("remote_ip", c.RealIP()),
		slog.String("user_agent", req.UserAgent()),
	}

	if len(req.URL.RawQuery) > 0 {
		fields = append(fields, slog.String("query", req.URL.RawQuery))
	}

	if err != nil {
		fields = append(fields, slog.Any("error", err))
	}

	logLevel := slog.LevelInfo
	if res.Status >= 400 {
		logLevel = slog.LevelWarn
	}
	if res.Status >= 500 {
		logLevel = slog.LevelError
	}

	m.logger.LogAttrs(context.Background(), logLevel, "HTTP Request", fields...)
}
