package handler

import (
	"log/slog"
	"net/http"

	"rewardnet/internal/delivery/api/response"
	"rewardnet/internal/domain/entity"
	"rewardnet/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// CommissionHandlerParams holds dependencies for CommissionHandler, injected by Fx.
type CommissionHandlerParams struct {
	fx.In

	CommissionUC usecase.CommissionUsecase
	Logger       *slog.Logger
}

// CommissionHandler serves distribution and ledger endpoints
type CommissionHandler struct {
	commissionUC usecase.CommissionUsecase
	logger       *slog.Logger
}

// NewCommissionHandler is the constructor for CommissionHandler
func NewCommissionHandler(params CommissionHandlerParams) *CommissionHandler {
	return &CommissionHandler{
		commissionUC: params.CommissionUC,
		logger:       params.Logger,
	}
}

// DistributeRequest represents the request body for distributing an order's commissions
type DistributeRequest struct {
	ProductID   string                  `json:"product_id" validate:"max=64"`
	BuyerID     string                  `json:"buyer_id" validate:"required,uuid"`
	Schedule    []entity.CommissionTier `json:"schedule" validate:"max=20,dive"`
	BuyerReward int64                   `json:"buyer_reward" validate:"min=0"`
}

// CommissionListQuery carries ledger filters
type CommissionListQuery struct {
	Status string `query:"status"`
	Limit  int    `query:"limit" validate:"min=0"`
	Offset int    `query:"offset" validate:"min=0"`
}

// Distribute credits the buyer and its upline for one order
func (h *CommissionHandler) Distribute(c echo.Context) error {
	var req DistributeRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid distribution input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Invalid buyer ID")
	}

	schedule, err := usecase.BuildSchedule(req.Schedule)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	result, err := h.commissionUC.Distribute(c.Request().Context(), &usecase.DistributeInput{
		OrderID:     c.Param("orderId"),
		ProductID:   req.ProductID,
		BuyerID:     buyerID,
		Schedule:    schedule,
		BuyerReward: req.BuyerReward,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// ListOrderCommissions returns every entry recorded for an order
func (h *CommissionHandler) ListOrderCommissions(c echo.Context) error {
	entries, err := h.commissionUC.ListOrderCommissions(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, entries)
}

// Summary returns the participant's earnings rollup
func (h *CommissionHandler) Summary(c echo.Context) error {
	participantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Invalid participant ID")
	}

	summary, err := h.commissionUC.Summary(c.Request().Context(), participantID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}

// ListCommissions pages through the participant's ledger
func (h *CommissionHandler) ListCommissions(c echo.Context) error {
	participantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Invalid participant ID")
	}

	var query CommissionListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &query); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid ledger query")
	}

	if err := c.Validate(&query); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	page, err := h.commissionUC.ListCommissions(c.Request().Context(), participantID, &usecase.CommissionQuery{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, page)
}
