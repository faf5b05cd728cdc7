//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"goflare.io/checkout"
	"goflare.io/checkout/config"
	"goflare.io/checkout/handlers"
	"goflare.io/checkout/server"
)

func InitializeServer() (*server.Server, error) {

	wire.Build(
		config.ProvideApplicationConfig,
		config.NewLogger,
		config.ProvideStripeClient,
		checkout.NewStripeCheckout,
		handlers.NewConfigHandler,
		handlers.NewCustomerHandler,
		handlers.NewPaymentIntentHandler,
		handlers.NewProductHandler,
		handlers.NewInvoiceHandler,
		handlers.NewSubscriptionHandler,
		handlers.NewWebhookHandler,
		server.NewServer,
	)

	return &server.Server{}, nil
}
