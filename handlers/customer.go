package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/checkout"
	"goflare.io/checkout/models"
)

type CustomerHandler interface {
	CreateCustomer(c echo.Context) error
	FindCustomer(c echo.Context) error
}

type customerHandler struct {
	Checkout checkout.Checkout
	logger   *zap.Logger
}

func NewCustomerHandler(Checkout checkout.Checkout, logger *zap.Logger) CustomerHandler {
	return &customerHandler{
		Checkout: Checkout,
		logger:   logger,
	}
}

// CreateCustomer handles POST /create-customer
func (ch *customerHandler) CreateCustomer(c echo.Context) error {
	var req struct {
		Name        string         `json:"name" validate:"required"`
		Email       string         `json:"email" validate:"required,email"`
		PhoneNumber string         `json:"phoneNumber"`
		Address     models.Address `json:"address"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	}

	customer, err := ch.Checkout.CreateCustomer(c.Request().Context(), &models.Customer{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		ch.logger.Error("failed to create customer", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string]string{
		"stripeCustomerId": customer.ID,
	})
}

// FindCustomer handles GET /customers?email=
func (ch *customerHandler) FindCustomer(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return c.JSON(http.StatusBadRequest, errorResponse("email query parameter is required"))
	}

	customer, err := ch.Checkout.FindCustomerByEmail(c.Request().Context(), email)
	if err != nil {
		ch.logger.Error("failed to look up customer", zap.Error(err), zap.String("email", email))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, customer)
}
