package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"goflare.io/checkout"
	"goflare.io/checkout/models"
)

// customerCookie simulates a signed-in customer for the demo pages. It is a
// convenience, not a security boundary: every route also accepts an
// explicit customerId.
const customerCookie = "customer"

type SubscriptionHandler interface {
	CreateCustomer(c echo.Context) error
	CreateSubscription(c echo.Context) error
	InvoicePreview(c echo.Context) error
	CancelSubscription(c echo.Context) error
	UpdateSubscription(c echo.Context) error
	ListSubscriptions(c echo.Context) error
}

type subscriptionHandler struct {
	Checkout checkout.Checkout
	logger   *zap.Logger
}

func NewSubscriptionHandler(Checkout checkout.Checkout, logger *zap.Logger) SubscriptionHandler {
	return &subscriptionHandler{
		Checkout: Checkout,
		logger:   logger,
	}
}

// CreateCustomer handles POST /subscriptions/create-customer
func (sh *subscriptionHandler) CreateCustomer(c echo.Context) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	}

	customer, err := sh.Checkout.CreateCustomer(c.Request().Context(), &models.Customer{Email: req.Email})
	if err != nil {
		sh.logger.Error("failed to create subscription customer", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	c.SetCookie(&http.Cookie{
		Name:  customerCookie,
		Value: customer.ID,
		Path:  "/",
	})

	return c.JSON(http.StatusOK, map[string]*models.Customer{
		"customer": customer,
	})
}

// CreateSubscription handles POST /subscriptions/create-subscription
func (sh *subscriptionHandler) CreateSubscription(c echo.Context) error {
	var req struct {
		CustomerID string `json:"customerId" validate:"required"`
		PriceID    string `json:"priceId" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	}

	subscription, err := sh.Checkout.CreateSubscription(c.Request().Context(), req.CustomerID, req.PriceID)
	if err != nil {
		sh.logger.Error("failed to create subscription", zap.Error(err), zap.String("customer_id", req.CustomerID))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string]string{
		"subscriptionId": subscription.ID,
		"clientSecret":   subscription.ClientSecret,
	})
}

// InvoicePreview handles GET /subscriptions/invoice-preview
func (sh *subscriptionHandler) InvoicePreview(c echo.Context) error {
	subscriptionID := c.QueryParam("subscriptionId")
	lookupKey := c.QueryParam("newPriceLookupKey")
	if subscriptionID == "" || lookupKey == "" {
		return c.JSON(http.StatusBadRequest, errorResponse("subscriptionId and newPriceLookupKey query parameters are required"))
	}

	invoice, err := sh.Checkout.PreviewInvoice(c.Request().Context(), subscriptionID, lookupKey)
	if err != nil {
		sh.logger.Error("failed to preview invoice", zap.Error(err), zap.String("subscription_id", subscriptionID))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string]*models.Invoice{
		"invoice": invoice,
	})
}

// CancelSubscription handles POST /subscriptions/cancel-subscription
func (sh *subscriptionHandler) CancelSubscription(c echo.Context) error {
	var req struct {
		SubscriptionID string `json:"subscriptionId" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	}

	subscription, err := sh.Checkout.CancelSubscription(c.Request().Context(), req.SubscriptionID)
	if err != nil {
		sh.logger.Error("failed to cancel subscription", zap.Error(err), zap.String("subscription_id", req.SubscriptionID))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string]*models.Subscription{
		"subscription": subscription,
	})
}

// UpdateSubscription handles POST /subscriptions/update-subscription
func (sh *subscriptionHandler) UpdateSubscription(c echo.Context) error {
	var req struct {
		SubscriptionID    string `json:"subscriptionId" validate:"required"`
		NewPriceLookupKey string `json:"newPriceLookupKey" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	}

	subscription, err := sh.Checkout.UpdateSubscriptionPrice(c.Request().Context(), req.SubscriptionID, req.NewPriceLookupKey)
	if err != nil {
		sh.logger.Error("failed to update subscription", zap.Error(err), zap.String("subscription_id", req.SubscriptionID))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string]*models.Subscription{
		"subscription": subscription,
	})
}

// ListSubscriptions handles GET /subscriptions/list. The customer identity
// comes from the customerId query parameter, falling back to the demo
// cookie.
func (sh *subscriptionHandler) ListSubscriptions(c echo.Context) error {
	customerID := c.QueryParam("customerId")
	if customerID == "" {
		if cookie, err := c.Cookie(customerCookie); err == nil {
			customerID = cookie.Value
		}
	}
	if customerID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse("no customer identity provided"))
	}

	subscriptions, err := sh.Checkout.ListSubscriptions(c.Request().Context(), customerID)
	if err != nil {
		sh.logger.Error("failed to list subscriptions", zap.Error(err), zap.String("customer_id", customerID))
		return c.JSON(http.StatusBadRequest, errorResponse(upstreamMessage(err)))
	}

	return c.JSON(http.StatusOK, map[string][]*models.Subscription{
		"subscriptions": subscriptions,
	})
}
