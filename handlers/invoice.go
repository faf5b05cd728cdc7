package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/checkout"
)

type InvoiceHandler interface {
	CreateQuarterlyInvoice(c echo.Context) error
}

type invoiceHandler struct {
	Checkout checkout.Checkout
	logger   *zap.Logger
}

func NewInvoiceHandler(Checkout checkout.Checkout, logger *zap.Logger) InvoiceHandler {
	return &invoiceHandler{
		Checkout: Checkout,
		logger:   logger,
	}
}

// CreateQuarterlyInvoice handles POST /invoice/quarterly
func (ih *invoiceHandler) CreateQuarterlyInvoice(c echo.Context) error {
	var req struct {
		PriceID    string `json:"priceId" validate:"required"`
		Currency   string `json:"currency" validate:"required,len=3"`
		CustomerID string `json:"customerId" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	}

	invoiceID, err := ih.Checkout.CreateQuarterlyInvoice(c.Request().Context(), req.PriceID, stripe.Currency(req.Currency), req.CustomerID)
	if err != nil {
		ih.logger.Error("failed to create quarterly invoice", zap.Error(err), zap.String("price_id", req.PriceID))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string]string{
		"invoiceID": invoiceID,
	})
}
