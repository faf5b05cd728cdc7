package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"goflare.io/checkout/config"
)

type ConfigHandler interface {
	GetConfig(c echo.Context) error
}

type configHandler struct {
	config *config.Config
}

func NewConfigHandler(config *config.Config) ConfigHandler {
	return &configHandler{
		config: config,
	}
}

// GetConfig handles GET /config. An empty publishable key is returned as-is;
// the browser surfaces the misconfiguration to the user.
func (ch *configHandler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"publishableKey": ch.config.Stripe.PublishableKey,
	})
}
