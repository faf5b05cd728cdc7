package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/checkout"
)

// webhookBodyLimit caps webhook payloads at 64 KiB, matching Stripe's own
// event size bound.
const webhookBodyLimit = int64(65536)

type WebhookHandler interface {
	HandleWebhook(c echo.Context) error
}

type webhookHandler struct {
	Checkout checkout.Checkout
	logger   *zap.Logger
}

func NewWebhookHandler(Checkout checkout.Checkout, logger *zap.Logger) WebhookHandler {
	return &webhookHandler{
		Checkout: Checkout,
		logger:   logger,
	}
}

// HandleWebhook handles POST /webhook. Signature verification is the only
// authentication on this endpoint, so a failure is the only condition that
// answers non-200: anything else would make Stripe redeliver the event.
func (wh *webhookHandler) HandleWebhook(c echo.Context) error {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, webhookBodyLimit)
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("Failed to read request body"))
	}

	signature := c.Request().Header.Get("Stripe-Signature")

	if err = wh.Checkout.HandleWebhook(c.Request().Context(), payload, signature); err != nil {
		wh.logger.Warn("webhook rejected", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.NoContent(http.StatusOK)
}
