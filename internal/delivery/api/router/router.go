// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"rewardnet/config"
	"rewardnet/internal/delivery/api/router/handler"
	"rewardnet/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	NetworkHandler    *handler.NetworkHandler
	CommissionHandler *handler.CommissionHandler
	Metrics           *metrics.Metrics `optional:"true"`
	Config            *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	networkHandler    *handler.NetworkHandler
	commissionHandler *handler.CommissionHandler
	metrics           *metrics.Metrics
	config            *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		networkHandler:    params.NetworkHandler,
		commissionHandler: params.CommissionHandler,
		metrics:           params.Metrics,
		config:            params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	if r.config.Metrics.Enabled && r.metrics != nil {
		e.GET(r.config.Metrics.Path, echo.WrapHandler(r.metrics.Handler()))
	}

	apiV1 := e.Group("/api/v1")

	participantsGroup := apiV1.Group("/participants")
	{
		participantsGroup.POST("", r.networkHandler.Register)
		participantsGroup.GET("/by-code/:code", r.networkHandler.GetParticipantByCode)
		participantsGroup.GET("/by-member/:memberId", r.networkHandler.GetParticipantByMemberID)
		participantsGroup.GET("/:id", r.networkHandler.GetParticipant)
		participantsGroup.POST("/:id/placement", r.networkHandler.Place)
		participantsGroup.GET("/:id/upline", r.networkHandler.Upline)
		participantsGroup.GET("/:id/downline", r.networkHandler.DirectDownline)
		participantsGroup.GET("/:id/downline/all", r.networkHandler.FullDownline)
		participantsGroup.GET("/:id/summary", r.commissionHandler.Summary)
		participantsGroup.GET("/:id/commissions", r.commissionHandler.ListCommissions)
	}

	ordersGroup := apiV1.Group("/orders")
	{
		ordersGroup.POST("/:orderId/commissions", r.commissionHandler.Distribute)
		ordersGroup.GET("/:orderId/commissions", r.commissionHandler.ListOrderCommissions)
	}
}
