package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/checkout"
)

type ProductHandler interface {
	CreateProduct(c echo.Context) error
}

type productHandler struct {
	Checkout checkout.Checkout
	logger   *zap.Logger
}

func NewProductHandler(Checkout checkout.Checkout, logger *zap.Logger) ProductHandler {
	return &productHandler{
		Checkout: Checkout,
		logger:   logger,
	}
}

// CreateProduct handles POST /create-product. The amount is in major
// currency units ("19.99"); the response carries the created price ID.
func (ph *productHandler) CreateProduct(c echo.Context) error {
	var req struct {
		Name      string  `json:"name" validate:"required"`
		Amount    float64 `json:"amount" validate:"gt=0"`
		Recurring bool    `json:"recurring"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	}

	priceID, err := ph.Checkout.CreateProduct(c.Request().Context(), req.Name, req.Amount, req.Recurring)
	if err != nil {
		ph.logger.Error("failed to create product", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string]string{
		"id": priceID,
	})
}
