package handler

import (
	"log/slog"
	"net/http"

	"rewardnet/config"
	"rewardnet/internal/delivery/api/response"
	"rewardnet/internal/domain/constants"
	"rewardnet/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// NetworkHandlerParams holds dependencies for NetworkHandler, injected by Fx.
type NetworkHandlerParams struct {
	fx.In

	NetworkUC usecase.NetworkUsecase
	Config    *config.Config `optional:"true"`
	Logger    *slog.Logger
}

// NetworkHandler serves registration, placement and tree queries
type NetworkHandler struct {
	networkUC       usecase.NetworkUsecase
	defaultMaxLevel int
	defaultMaxDepth int
	logger          *slog.Logger
}

// NewNetworkHandler is the constructor for NetworkHandler.
// Walks without an explicit limit use the configured network limits.
func NewNetworkHandler(params NetworkHandlerParams) *NetworkHandler {
	h := &NetworkHandler{
		networkUC:       params.NetworkUC,
		defaultMaxLevel: constants.MaxCommissionLevel,
		defaultMaxDepth: constants.MaxCommissionLevel,
		logger:          params.Logger,
	}
	if params.Config != nil {
		if params.Config.Network.MaxUplineLevels > 0 {
			h.defaultMaxLevel = params.Config.Network.MaxUplineLevels
		}
		if params.Config.Network.MaxDownlineDepth > 0 {
			h.defaultMaxDepth = params.Config.Network.MaxDownlineDepth
		}
	}

	return h
}

// PlaceRequest represents the request body for placing an existing participant
type PlaceRequest struct {
	SponsorCode string `json:"sponsor_code" validate:"required,alphanum,max=32"`
}

// UplineQuery carries the optional upline depth; absent means the configured limit
type UplineQuery struct {
	MaxLevel int `query:"max_level" validate:"min=0,max=20"`
}

// DownlineQuery carries the optional downline depth
type DownlineQuery struct {
	MaxDepth int `query:"max_depth" validate:"min=0"`
}

// Register creates a participant and optionally places it under a sponsor
func (h *NetworkHandler) Register(c echo.Context) error {
	var req usecase.RegisterInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	registration, err := h.networkUC.Register(c.Request().Context(), &req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, &RegistrationResponse{
		Participant: toParticipantResponse(registration.Participant),
		Placement:   registration.Placement,
	})
}

// GetParticipant returns a participant by internal id
func (h *NetworkHandler) GetParticipant(c echo.Context) error {
	participantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Invalid participant ID")
	}

	participant, err := h.networkUC.GetParticipant(c.Request().Context(), participantID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toParticipantResponse(participant))
}

// GetParticipantByCode returns the owner of a referral code
func (h *NetworkHandler) GetParticipantByCode(c echo.Context) error {
	participant, err := h.networkUC.GetParticipantByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toParticipantResponse(participant))
}

// GetParticipantByMemberID returns a participant by its external member id
func (h *NetworkHandler) GetParticipantByMemberID(c echo.Context) error {
	participant, err := h.networkUC.GetParticipantByMemberID(c.Request().Context(), c.Param("memberId"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toParticipantResponse(participant))
}

// Place attaches an existing participant under a sponsor's subtree
func (h *NetworkHandler) Place(c echo.Context) error {
	participantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Invalid participant ID")
	}

	var req PlaceRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid placement input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	placement, err := h.networkUC.Place(c.Request().Context(), participantID, req.SponsorCode)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, placement)
}

// Upline lists ancestors nearest first
func (h *NetworkHandler) Upline(c echo.Context) error {
	participantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Invalid participant ID")
	}

	query := UplineQuery{MaxLevel: h.defaultMaxLevel}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &query); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid max_level")
	}

	if err := c.Validate(&query); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	ancestors, err := h.networkUC.Upline(c.Request().Context(), participantID, query.MaxLevel)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toAncestorResponses(ancestors))
}

// DirectDownline returns the two child slots
func (h *NetworkHandler) DirectDownline(c echo.Context) error {
	participantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Invalid participant ID")
	}

	downline, err := h.networkUC.DirectDownline(c.Request().Context(), participantID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, &DirectDownlineResponse{
		Left:  toParticipantResponse(downline.Left),
		Right: toParticipantResponse(downline.Right),
	})
}

// FullDownline lists descendants breadth-first
func (h *NetworkHandler) FullDownline(c echo.Context) error {
	participantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", "Invalid participant ID")
	}

	query := DownlineQuery{MaxDepth: h.defaultMaxDepth}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &query); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid max_depth")
	}

	if err := c.Validate(&query); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	descendants, err := h.networkUC.FullDownline(c.Request().Context(), participantID, query.MaxDepth)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toDescendantResponses(descendants))
}
