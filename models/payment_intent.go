package models

import (
	"github.com/stripe/stripe-go/v79"
)

// PaymentIntent represents a single attempted charge. Only the client
// secret ever leaves the service; the full Stripe object stays server-side.
type PaymentIntent struct {
	ID              string                     `json:"id"`
	ClientSecret    string                     `json:"clientSecret"`
	Amount          int64                      `json:"amount"`
	Currency        stripe.Currency            `json:"currency"`
	Status          stripe.PaymentIntentStatus `json:"status"`
	PaymentMethodID string                     `json:"paymentMethodId,omitempty"`
}

func NewPaymentIntent() *PaymentIntent {
	return &PaymentIntent{}
}

func (pi *PaymentIntent) ConvertFromStripePaymentIntent(stripeIntent *stripe.PaymentIntent) *PaymentIntent {
	if stripeIntent == nil {
		return nil
	}

	pi.ID = stripeIntent.ID
	pi.ClientSecret = stripeIntent.ClientSecret
	pi.Amount = stripeIntent.Amount
	pi.Currency = stripe.Currency(stripeIntent.Currency)
	pi.Status = stripeIntent.Status
	if stripeIntent.PaymentMethod != nil {
		pi.PaymentMethodID = stripeIntent.PaymentMethod.ID
	}

	return pi
}
