package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"rewardnet/config"
	deliverycontext "rewardnet/internal/delivery/context"
	"rewardnet/internal/domain/entity"
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/domain/service"
	"rewardnet/internal/errors"
	"rewardnet/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// PubSubMessage represents the structure of a Pub/Sub push message
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// retryableError wraps an error to indicate it should trigger a Pub/Sub retry
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// newRetryableError wraps an error as retryable
func newRetryableError(err error) error {
	return &retryableError{err: err}
}

// isRetryableError checks if an error is retryable
func isRetryableError(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}

// TokenVerifier checks the bearer token of a push request against the expected audience.
type TokenVerifier func(ctx context.Context, token, audience string) error

// PushHandler turns approved-order push messages into commission distributions
type PushHandler struct {
	audience     string
	verifyToken  TokenVerifier
	logger       *slog.Logger
	commissionUC usecase.CommissionUsecase
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config       *config.Config
	Logger       *slog.Logger
	CommissionUC usecase.CommissionUsecase
	Verifier     TokenVerifier `optional:"true"`
}

// NewPushHandler creates a new Pub/Sub push handler.
// Push authentication is enforced only when worker.audience is configured.
func NewPushHandler(params PushHandlerParams) *PushHandler {
	verifier := params.Verifier
	if verifier == nil {
		verifier = verifyGoogleIDToken
	}

	return &PushHandler{
		audience:     params.Config.Worker.Audience,
		verifyToken:  verifier,
		logger:       params.Logger,
		commissionUC: params.CommissionUC,
	}
}

// HandlePush handles incoming Pub/Sub push messages.
// 503 asks Pub/Sub to redeliver; 200 acknowledges, including messages that can never succeed.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.audience != "" {
		if err := h.authenticate(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg PubSubMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	var event service.OrderApprovedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// A payload that does not parse will never parse; acknowledge it.
		h.logger.Error("[Worker] Failed to parse order event",
			slog.String("message_id", pushMsg.Message.MessageID),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusOK)
	}

	// Priority: message attributes > event field > existing context
	requestID := h.extractRequestID(ctx, &pushMsg, &event)
	reqLogger := h.logger.With(slog.String("request_id", requestID))

	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	reqLogger.Info("[Worker] Processing approved order",
		slog.String("order_id", event.OrderID),
		slog.String("buyer_id", event.BuyerID),
		slog.Int("tiers", len(event.Schedule)),
	)

	result, err := h.processOrder(ctx, &event)
	if err != nil {
		reqLogger.Error("[Worker] Failed to distribute commissions",
			slog.String("order_id", event.OrderID),
			slog.Any("error", err),
			slog.Bool("retryable", isRetryableError(err)),
		)
		if isRetryableError(err) {
			return c.NoContent(http.StatusServiceUnavailable)
		}

		return c.NoContent(http.StatusOK)
	}

	reqLogger.Info("[Worker] Order distributed",
		slog.String("order_id", result.OrderID),
		slog.Int64("total_distributed", result.TotalDistributed),
		slog.Int("entries_created", result.EntriesCreated),
		slog.Int("entries_skipped", result.EntriesSkipped),
	)

	return c.NoContent(http.StatusOK)
}

// extractRequestID extracts request_id from message attributes, event, or generates a new one
func (h *PushHandler) extractRequestID(ctx context.Context, pushMsg *PubSubMessage, event *service.OrderApprovedEvent) string {
	if requestID, ok := pushMsg.Message.Attributes["request_id"]; ok && requestID != "" {
		return requestID
	}

	if event.RequestID != "" {
		return event.RequestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// processOrder validates the event and distributes it. Only store-side failures are retryable;
// redelivery is safe because distribution is idempotent per order.
func (h *PushHandler) processOrder(ctx context.Context, event *service.OrderApprovedEvent) (*entity.DistributionResult, error) {
	buyerID, err := uuid.Parse(event.BuyerID)
	if err != nil {
		return nil, errors.Wrapf(domainerrors.ErrInvalidDistribution.WithDetails("buyer_id is not a uuid"), "order %s", event.OrderID)
	}

	schedule, err := usecase.BuildSchedule(event.Schedule)
	if err != nil {
		return nil, err
	}

	result, err := h.commissionUC.Distribute(ctx, &usecase.DistributeInput{
		OrderID:     event.OrderID,
		ProductID:   event.ProductID,
		BuyerID:     buyerID,
		Schedule:    schedule,
		BuyerReward: event.BuyerReward,
	})
	if err != nil {
		if isTransient(err) {
			return nil, newRetryableError(err)
		}

		return nil, err
	}

	return result, nil
}

// isTransient reports failures that may succeed on redelivery.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPCode() >= http.StatusInternalServerError
	}

	return true
}

func (h *PushHandler) authenticate(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}

	return h.verifyToken(req.Context(), strings.TrimPrefix(authHeader, bearerPrefix), h.audience)
}

// verifyGoogleIDToken verifies the OIDC token Pub/Sub attaches to push requests
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func verifyGoogleIDToken(ctx context.Context, token, audience string) error {
	payload, err := idtoken.Validate(ctx, token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
