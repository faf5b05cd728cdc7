package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v79"

	"goflare.io/checkout/models"
)

// Checkout orchestrates requests against the Stripe API. Every operation is
// a single synchronous round trip with no local retry; Stripe owns all
// durable state and drives every lifecycle transition. A caller that retries
// a create call produces a duplicate remote resource unless it supplies its
// own idempotency key.
type Checkout interface {
	CreatePaymentIntent(ctx context.Context, amount int64, cur stripe.Currency, customerID string) (*models.PaymentIntent, error) // Interacts with Stripe
	CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)                                      // Interacts with Stripe
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)

	CreateProduct(ctx context.Context, name string, amount float64, recurring bool) (string, error)                             // Interacts with Stripe
	CreateQuarterlyInvoice(ctx context.Context, priceID string, cur stripe.Currency, customerID string) (string, error)         // Interacts with Stripe

	CreateSubscription(ctx context.Context, customerID, priceID string) (*models.Subscription, error) // Interacts with Stripe
	PreviewInvoice(ctx context.Context, subscriptionID, newPriceLookupKey string) (*models.Invoice, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error)                // Interacts with Stripe
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, newPriceLookupKey string) (*models.Subscription, error) // Interacts with Stripe
	ListSubscriptions(ctx context.Context, customerID string) ([]*models.Subscription, error)

	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	Close()
}
