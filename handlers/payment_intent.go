package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/checkout"
)

// Defaults of the hosted payment element demo: €19.99.
const (
	defaultAmount   = 1999
	defaultCurrency = stripe.CurrencyEUR
)

type PaymentIntentHandler interface {
	CreatePaymentIntent(c echo.Context) error
}

type paymentIntentHandler struct {
	Checkout checkout.Checkout
	logger   *zap.Logger
}

func NewPaymentIntentHandler(Checkout checkout.Checkout, logger *zap.Logger) PaymentIntentHandler {
	return &paymentIntentHandler{
		Checkout: Checkout,
		logger:   logger,
	}
}

// CreatePaymentIntent handles GET /create-payment-intent. Only the client
// secret leaves the server; the rest of the intent stays private.
func (ph *paymentIntentHandler) CreatePaymentIntent(c echo.Context) error {
	amount := int64(defaultAmount)
	cur := defaultCurrency

	if v := c.QueryParam("amount"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse("amount must be an integer minor-unit value"))
		}
		amount = parsed
	}
	if v := c.QueryParam("currency"); v != "" {
		cur = stripe.Currency(strings.ToLower(v))
	}

	intent, err := ph.Checkout.CreatePaymentIntent(c.Request().Context(), amount, cur, c.QueryParam("customerId"))
	if err != nil {
		ph.logger.Error("failed to create payment intent", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string]string{
		"clientSecret": intent.ClientSecret,
	})
}
