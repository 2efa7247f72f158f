package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"rewardnet/config"
	"rewardnet/internal/delivery/api/router"
	"rewardnet/internal/delivery/api/router/handler"
	deliverycontext "rewardnet/internal/delivery/context"
	"rewardnet/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho(t *testing.T, mutate func(cfg *config.Config)) (*echo.Echo, *metrics.Metrics) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Metrics.Enabled = true
	cfg.ApplyDefaults()
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	e := NewEcho(ServerParams{
		Cfg:     cfg,
		Logger:  logger,
		Metrics: m,
		RouterParams: router.RouterParams{
			NetworkHandler:    handler.NewNetworkHandler(handler.NetworkHandlerParams{Logger: logger}),
			CommissionHandler: handler.NewCommissionHandler(handler.CommissionHandlerParams{Logger: logger}),
			Metrics:           m,
			Config:            cfg,
		},
	})

	return e, m
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func TestServer_HealthCarriesRequestID(t *testing.T) {
	e, _ := newTestEcho(t, nil)

	rec := serve(e, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	requestID := rec.Header().Get(deliverycontext.HeaderXRequestID)
	require.NotEmpty(t, requestID)
	assert.Contains(t, rec.Body.String(), `"request_id":"`+requestID+`"`)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_MetricsEndpointCountsRequests(t *testing.T) {
	e, _ := newTestEcho(t, nil)

	serve(e, http.MethodGet, "/health")
	serve(e, http.MethodGet, "/api/v1/participants/not-a-uuid")

	rec := serve(e, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `rewardnet_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, `rewardnet_http_requests_total{method="GET",route="/api/v1/participants/:id",status="400"} 1`)
}

func TestServer_MetricsDisabled(t *testing.T) {
	e, _ := newTestEcho(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = false
	})

	rec := serve(e, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)
}

func TestServer_RateLimit(t *testing.T) {
	e, _ := newTestEcho(t, func(cfg *config.Config) {
		cfg.HTTP.RateLimit.RequestsPerSecond = 0.001
		cfg.HTTP.RateLimit.Burst = 2
	})

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health").Code)

	rec := serve(e, http.MethodGet, "/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
