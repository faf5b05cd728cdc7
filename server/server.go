package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"goflare.io/checkout/config"
	"goflare.io/checkout/handlers"
)

type Server struct {
	echo          *echo.Echo
	config        *config.Config
	Config        handlers.ConfigHandler
	Customer      handlers.CustomerHandler
	PaymentIntent handlers.PaymentIntentHandler
	Product       handlers.ProductHandler
	Invoice       handlers.InvoiceHandler
	Subscription  handlers.SubscriptionHandler
	Webhook       handlers.WebhookHandler
}

type requestValidator struct {
	validate *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	if err := rv.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewServer(
	appConfig *config.Config,
	Config handlers.ConfigHandler,
	Customer handlers.CustomerHandler,
	PaymentIntent handlers.PaymentIntentHandler,
	Product handlers.ProductHandler,
	Invoice handlers.InvoiceHandler,
	Subscription handlers.SubscriptionHandler,
	Webhook handlers.WebhookHandler,
) *Server {
	return &Server{
		echo:          echo.New(),
		config:        appConfig,
		Config:        Config,
		Customer:      Customer,
		PaymentIntent: PaymentIntent,
		Product:       Product,
		Invoice:       Invoice,
		Subscription:  Subscription,
		Webhook:       Webhook,
	}
}

// Start initializes the server by registering middlewares and routes, and
// starts listening for connections on the provided address. It returns an
// error if there is an issue starting the server.
func (s *Server) Start(address string) error {
	s.registerMiddlewares()
	s.registerRoutes()
	return s.echo.Start(address)
}

// Run starts the server on the configured address in a goroutine and blocks
// until an interrupt or SIGTERM arrives, then shuts the listener down with a
// five second grace period.
func (s *Server) Run() error {

	go func() {
		if err := s.Start(s.config.Server.Addr); err != nil {
			s.echo.Logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

func (s *Server) registerMiddlewares() {
	s.echo.Use(middleware.Recover())
	s.echo.Validator = &requestValidator{validate: validator.New()}
	if s.config.Server.StaticDir != "" {
		s.echo.Use(middleware.Static(s.config.Server.StaticDir))
	}
}

func (s *Server) registerRoutes() {

	s.echo.GET("/config", s.Config.GetConfig)

	s.echo.GET("/create-payment-intent", s.PaymentIntent.CreatePaymentIntent)

	s.echo.GET("/customers", s.Customer.FindCustomer)
	s.echo.POST("/create-customer", s.Customer.CreateCustomer)

	s.echo.POST("/create-product", s.Product.CreateProduct)
	s.echo.POST("/invoice/quarterly", s.Invoice.CreateQuarterlyInvoice)

	s.echo.POST("/subscriptions/create-customer", s.Subscription.CreateCustomer)
	s.echo.POST("/subscriptions/create-subscription", s.Subscription.CreateSubscription)
	s.echo.GET("/subscriptions/invoice-preview", s.Subscription.InvoicePreview)
	s.echo.POST("/subscriptions/cancel-subscription", s.Subscription.CancelSubscription)
	s.echo.POST("/subscriptions/update-subscription", s.Subscription.UpdateSubscription)
	s.echo.GET("/subscriptions/list", s.Subscription.ListSubscriptions)

	s.echo.POST("/webhook", s.Webhook.HandleWebhook)
}
