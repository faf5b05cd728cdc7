package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"goflare.io/checkout/config"
	"goflare.io/checkout/currency"
	"goflare.io/checkout/models"
)

// New subscriptions are scheduled to auto-cancel three calendar months
// from creation.
const subscriptionLifetimeMonths = 3

type StripeCheckout struct {
	client       *client.API
	config       *config.Config
	natsConn     *nats.Conn
	eventManager *EventManager
	dispatcher   *Dispatcher
	logger       *zap.Logger
}

func NewStripeCheckout(config *config.Config, client *client.API, logger *zap.Logger) Checkout {
	sc := &StripeCheckout{
		client: client,
		config: config,
		logger: logger,
	}

	// Events are relayed over NATS when a broker is configured; without one
	// the webhook handler processes events inline and the service stays a
	// plain request/response process.
	if config.NATS.URL != "" {
		nc, err := nats.Connect(config.NATS.URL)
		if err != nil {
			logger.Warn("nats unavailable, webhook events will be handled inline", zap.Error(err))
		} else {
			sc.natsConn = nc
		}
	}

	sc.eventManager = NewEventManager(sc.natsConn, logger)
	sc.registerEventHandlers()

	if sc.natsConn != nil {
		sc.dispatcher = NewDispatcher(4, 256, sc)
		sc.dispatcher.Run()
		if err := sc.eventManager.SubscribeToEvents(sc.dispatcher); err != nil {
			logger.Error("failed to subscribe to relayed events", zap.Error(err))
		}
	}

	return sc
}

// CreatePaymentIntent creates a card payment intent for the given minor-unit
// amount. The customer attachment is optional; the card is kept reusable for
// later off-session charges.
func (sc *StripeCheckout) CreatePaymentIntent(ctx context.Context, amount int64, cur stripe.Currency, customerID string) (*models.PaymentIntent, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be a positive minor-unit value, got %d", amount)
	}
	if len(cur) != 3 {
		return nil, fmt.Errorf("currency must be a 3-letter ISO code, got %q", cur)
	}

	params := &stripe.PaymentIntentParams{
		Params:             stripe.Params{Context: ctx},
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(string(cur)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SetupFutureUsage:   stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession)),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}

	intent, err := sc.client.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stripe payment intent: %w", err)
	}

	return models.NewPaymentIntent().ConvertFromStripePaymentIntent(intent), nil
}

// CreateCustomer creates a new customer in Stripe. The country is pinned to
// US, matching the checkout form this service fronts.
func (sc *StripeCheckout) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	params := &stripe.CustomerParams{
		Params:      stripe.Params{Context: ctx},
		Description: stripe.String(fmt.Sprintf("Creating customer %s", customer.Name)),
		Name:        stripe.String(customer.Name),
		Email:       stripe.String(customer.Email),
		Phone:       stripe.String(customer.PhoneNumber),
		Address: &stripe.AddressParams{
			Line1:      stripe.String(customer.Address.Street),
			State:      stripe.String(customer.Address.State),
			PostalCode: stripe.String(customer.Address.Zip),
			Country:    stripe.String("US"),
		},
	}

	stripeCustomer, err := sc.client.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stripe customer: %w", err)
	}

	return models.NewCustomer().ConvertFromStripeCustomer(stripeCustomer), nil
}

// FindCustomerByEmail returns the first matching customer, or nil when none
// exists. Stripe caps the scan at 100 records.
func (sc *StripeCheckout) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	iter := sc.client.Customers.List(params)
	for iter.Next() {
		return models.NewCustomer().ConvertFromStripeCustomer(iter.Customer()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list Stripe customers: %w", err)
	}

	return nil, nil
}

// CreateProduct creates a product and its price in one go and returns the
// price ID. The price carries a USD unit amount plus an EUR mirror so the
// same product can be invoiced in either currency.
func (sc *StripeCheckout) CreateProduct(ctx context.Context, name string, amount float64, recurring bool) (string, error) {
	product, err := sc.client.Products.New(&stripe.ProductParams{
		Params: stripe.Params{Context: ctx},
		Name:   stripe.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe product: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(product.ID),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		UnitAmount: stripe.Int64(currency.MinorUnits(amount, stripe.CurrencyUSD)),
		CurrencyOptions: map[string]*stripe.PriceCurrencyOptionsParams{
			string(stripe.CurrencyEUR): {
				UnitAmount: stripe.Int64(currency.MinorUnits(amount, stripe.CurrencyEUR)),
			},
		},
	}
	if recurring {
		priceParams.Recurring = &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}

	price, err := sc.client.Prices.New(priceParams)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe price: %w", err)
	}

	return price.ID, nil
}

// CreateQuarterlyInvoice bills a price in three installments of
// ceil(amount/3) due at 1, 30 and 60 days. The ceiling split can overshoot
// the original amount by up to two minor units; that is accepted rather
// than corrected.
func (sc *StripeCheckout) CreateQuarterlyInvoice(ctx context.Context, priceID string, cur stripe.Currency, customerID string) (string, error) {
	priceParams := &stripe.PriceParams{Params: stripe.Params{Context: ctx}}
	priceParams.AddExpand("currency_options")

	price, err := sc.client.Prices.Get(priceID, priceParams)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve Stripe price: %w", err)
	}

	option, ok := price.CurrencyOptions[string(cur)]
	if !ok {
		return "", fmt.Errorf("price %s has no unit amount for currency %s", priceID, cur)
	}
	installment := currency.CeilDiv(option.UnitAmount, 3)

	invoiceParams := &stripe.InvoiceParams{
		Params:                      stripe.Params{Context: ctx},
		Customer:                    stripe.String(customerID),
		CollectionMethod:            stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		PendingInvoiceItemsBehavior: stripe.String("exclude"),
		AutoAdvance:                 stripe.Bool(true),
	}

	// amounts_due ships under the invoice payment-plans beta and is not yet
	// modeled by stripe-go, so it goes through as extra form parameters.
	schedule := []struct {
		description  string
		daysUntilDue int
	}{
		{"Initial Payment", 1},
		{"Installment one", 30},
		{"Installment two", 60},
	}
	for i, due := range schedule {
		prefix := fmt.Sprintf("amounts_due[%d]", i)
		invoiceParams.AddExtra(prefix+"[amount]", strconv.FormatInt(installment, 10))
		invoiceParams.AddExtra(prefix+"[description]", due.description)
		invoiceParams.AddExtra(prefix+"[days_until_due]", strconv.Itoa(due.daysUntilDue))
	}

	inv, err := sc.client.Invoices.New(invoiceParams)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe invoice: %w", err)
	}

	itemParams := &stripe.InvoiceItemParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Price:    stripe.String(priceID),
		Invoice:  stripe.String(inv.ID),
		Currency: stripe.String(string(cur)),
	}
	if _, err = sc.client.InvoiceItems.New(itemParams); err != nil {
		return "", fmt.Errorf("failed to attach invoice item: %w", err)
	}

	return inv.ID, nil
}

// CreateSubscription creates a subscription that auto-cancels three calendar
// months out and returns it together with the client secret of the first
// invoice's payment intent, which the browser needs to confirm payment.
func (sc *StripeCheckout) CreateSubscription(ctx context.Context, customerID, priceID string) (*models.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{
				Price: stripe.String(priceID),
			},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		CancelAt:        stripe.Int64(time.Now().AddDate(0, subscriptionLifetimeMonths, 0).Unix()),
	}
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := sc.client.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stripe subscription: %w", err)
	}

	subscription := models.NewSubscription().ConvertFromStripeSubscription(sub)
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		subscription.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	if subscription.ClientSecret == "" {
		return nil, fmt.Errorf("subscription %s has no payable first invoice", sub.ID)
	}

	return subscription, nil
}

// PreviewInvoice returns the upcoming invoice as it would look with the
// subscription's item swapped to the price behind the lookup key.
func (sc *StripeCheckout) PreviewInvoice(ctx context.Context, subscriptionID, newPriceLookupKey string) (*models.Invoice, error) {
	priceID, err := sc.resolvePrice(newPriceLookupKey)
	if err != nil {
		return nil, err
	}

	sub, err := sc.client.Subscriptions.Get(subscriptionID, &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve Stripe subscription: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	params := &stripe.InvoiceUpcomingParams{
		Params:       stripe.Params{Context: ctx},
		Customer:     stripe.String(sub.Customer.ID),
		Subscription: stripe.String(subscriptionID),
		SubscriptionItems: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
	}

	upcoming, err := sc.client.Invoices.Upcoming(params)
	if err != nil {
		return nil, fmt.Errorf("failed to preview upcoming invoice: %w", err)
	}

	return models.NewInvoice().ConvertFromStripeInvoice(upcoming), nil
}

// CancelSubscription cancels a subscription immediately.
func (sc *StripeCheckout) CancelSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	sub, err := sc.client.Subscriptions.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel Stripe subscription: %w", err)
	}

	return models.NewSubscription().ConvertFromStripeSubscription(sub), nil
}

// UpdateSubscriptionPrice swaps the subscription's single item to the price
// behind the lookup key.
func (sc *StripeCheckout) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, newPriceLookupKey string) (*models.Subscription, error) {
	priceID, err := sc.resolvePrice(newPriceLookupKey)
	if err != nil {
		return nil, err
	}

	sub, err := sc.client.Subscriptions.Get(subscriptionID, &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve Stripe subscription: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
	}

	updated, err := sc.client.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update Stripe subscription: %w", err)
	}

	return models.NewSubscription().ConvertFromStripeSubscription(updated), nil
}

// ListSubscriptions lists all of a customer's subscriptions, any status,
// with the default payment method expanded.
func (sc *StripeCheckout) ListSubscriptions(ctx context.Context, customerID string) ([]*models.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatus("all"))),
	}
	params.Context = ctx
	params.AddExpand("data.default_payment_method")

	subscriptions := make([]*models.Subscription, 0)
	iter := sc.client.Subscriptions.List(params)
	for iter.Next() {
		subscriptions = append(subscriptions, models.NewSubscription().ConvertFromStripeSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list Stripe subscriptions: %w", err)
	}

	return subscriptions, nil
}

// HandleWebhook authenticates an inbound webhook delivery and hands the
// event off for processing. The returned error is reserved for payloads
// that fail authentication or cannot be decoded; handler failures never
// surface here, because a non-2xx response would make Stripe redeliver.
func (sc *StripeCheckout) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	var event stripe.Event

	if secret := sc.config.Stripe.WebhookSecret; secret != "" {
		verified, err := webhook.ConstructEvent(payload, signature, secret)
		if err != nil {
			return fmt.Errorf("webhook signature verification failed: %w", err)
		}
		event = verified
	} else {
		// Without a signing secret the body is trusted as-is. Local
		// development only; never run like this in production.
		sc.logger.Warn("STRIPE_WEBHOOK_SECRET is not set, accepting unverified webhook payload")
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to decode webhook payload: %w", err)
		}
	}

	if sc.natsConn != nil {
		if err := sc.eventManager.PublishEvent(&event); err == nil {
			return nil
		} else {
			sc.logger.Error("failed to relay event, handling it inline",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}

	sc.ProcessEvent(ctx, &event)
	return nil
}

// ProcessEvent routes a verified event to its registered handler.
// Unrecognized types are ignored and handler failures are logged and
// swallowed; receipt has already been acknowledged.
func (sc *StripeCheckout) ProcessEvent(ctx context.Context, event *stripe.Event) {
	handler, exists := sc.eventManager.GetHandler(event.Type)
	if !exists {
		sc.logger.Debug("ignoring unrecognized event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return
	}

	if err := handler(ctx, event); err != nil {
		sc.logger.Error("event handler failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return
	}

	sc.logger.Info("event processed",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}

func (sc *StripeCheckout) handlePaymentIntentEvent(_ context.Context, stripeEvent *stripe.Event) error {
	intent := new(stripe.PaymentIntent)
	if err := json.Unmarshal(stripeEvent.Data.Raw, intent); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent event: %w", err)
	}

	switch stripeEvent.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		// Funds are captured; fulfillment (orders, receipts) hangs off here.
		sc.logger.Info("payment captured",
			zap.String("payment_intent_id", intent.ID),
			zap.Int64("amount", intent.Amount))
	case stripe.EventTypePaymentIntentPaymentFailed:
		sc.logger.Warn("payment failed",
			zap.String("payment_intent_id", intent.ID))
	case stripe.EventTypePaymentIntentProcessing:
		// Transitional, typically a bank debit in flight. A succeeded or
		// payment_failed event follows.
		sc.logger.Debug("payment processing",
			zap.String("payment_intent_id", intent.ID))
	default:
		sc.logger.Error(fmt.Sprintf("unexpected payment intent event type: %s", stripeEvent.Type))
	}

	return nil
}

func (sc *StripeCheckout) handleInvoiceEvent(ctx context.Context, stripeEvent *stripe.Event) error {
	inv := new(stripe.Invoice)
	if err := json.Unmarshal(stripeEvent.Data.Raw, inv); err != nil {
		return fmt.Errorf("failed to unmarshal invoice event: %w", err)
	}

	switch stripeEvent.Type {
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentSucceeded:
		sc.logger.Info("invoice paid", zap.String("invoice_id", inv.ID))
		if inv.BillingReason == stripe.InvoiceBillingReasonSubscriptionCreate {
			if err := sc.attachDefaultPaymentMethod(ctx, inv); err != nil {
				// Log and continue: the payment itself succeeded and the
				// webhook must still be acknowledged.
				sc.logger.Error("failed to set subscription default payment method",
					zap.String("invoice_id", inv.ID),
					zap.Error(err))
			}
		}
	case stripe.EventTypeInvoicePaymentFailed:
		sc.logger.Warn("invoice payment failed", zap.String("invoice_id", inv.ID))
	case stripe.EventTypeInvoiceFinalized:
		// Hook point for archiving finalized invoices. Nothing to do yet.
	default:
		sc.logger.Error(fmt.Sprintf("unexpected invoice event type: %s", stripeEvent.Type))
	}

	return nil
}

// attachDefaultPaymentMethod makes the payment method that paid a
// subscription's first invoice the subscription's default, so renewal
// charges reuse it.
func (sc *StripeCheckout) attachDefaultPaymentMethod(ctx context.Context, inv *stripe.Invoice) error {
	if inv.PaymentIntent == nil || inv.Subscription == nil {
		return fmt.Errorf("invoice %s is missing its payment intent or subscription", inv.ID)
	}

	intent, err := sc.client.PaymentIntents.Get(inv.PaymentIntent.ID, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return fmt.Errorf("failed to retrieve payment intent %s: %w", inv.PaymentIntent.ID, err)
	}
	if intent.PaymentMethod == nil {
		return fmt.Errorf("payment intent %s has no payment method", intent.ID)
	}

	params := &stripe.SubscriptionParams{
		Params:               stripe.Params{Context: ctx},
		DefaultPaymentMethod: stripe.String(intent.PaymentMethod.ID),
	}
	if _, err = sc.client.Subscriptions.Update(inv.Subscription.ID, params); err != nil {
		return fmt.Errorf("failed to update subscription %s: %w", inv.Subscription.ID, err)
	}

	sc.logger.Info("subscription default payment method set",
		zap.String("subscription_id", inv.Subscription.ID),
		zap.String("payment_method_id", intent.PaymentMethod.ID))

	return nil
}

func (sc *StripeCheckout) handleSubscriptionEvent(_ context.Context, stripeEvent *stripe.Event) error {
	sub := new(stripe.Subscription)
	if err := json.Unmarshal(stripeEvent.Data.Raw, sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription event: %w", err)
	}

	switch stripeEvent.Type {
	case stripe.EventTypeCustomerSubscriptionDeleted:
		// An originating request marker means a caller asked for the
		// cancellation; otherwise Stripe canceled it on its own, e.g. the
		// cancel_at timestamp was reached.
		if stripeEvent.Request != nil && stripeEvent.Request.ID != "" {
			sc.logger.Info("subscription canceled by API request",
				zap.String("subscription_id", sub.ID),
				zap.String("request_id", stripeEvent.Request.ID))
		} else {
			sc.logger.Info("subscription canceled automatically",
				zap.String("subscription_id", sub.ID))
		}
	default:
		sc.logger.Error(fmt.Sprintf("unexpected subscription event type: %s", stripeEvent.Type))
	}

	return nil
}

func (sc *StripeCheckout) resolvePrice(lookupKey string) (string, error) {
	priceID := sc.config.PriceID(lookupKey)
	if priceID == "" {
		return "", fmt.Errorf("no price configured for lookup key %q", lookupKey)
	}
	return priceID, nil
}

func (sc *StripeCheckout) Close() {
	if sc.dispatcher != nil {
		sc.dispatcher.Stop()
	}
	if sc.natsConn != nil {
		sc.natsConn.Close()
	}
	sc.logger.Info("checkout service shut down")
}
