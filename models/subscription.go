package models

import (
	"time"

	"github.com/stripe/stripe-go/v79"
)

// Subscription represents a customer's subscription as reported by Stripe.
// ClientSecret is only populated on creation, from the first invoice's
// payment intent.
type Subscription struct {
	ID                     string                    `json:"id"`
	CustomerID             string                    `json:"customerId"`
	PriceID                string                    `json:"priceId"`
	Status                 stripe.SubscriptionStatus `json:"status"`
	CancelAt               *time.Time                `json:"cancelAt,omitempty"`
	CanceledAt             *time.Time                `json:"canceledAt,omitempty"`
	CurrentPeriodEnd       time.Time                 `json:"currentPeriodEnd"`
	DefaultPaymentMethodID string                    `json:"defaultPaymentMethodId,omitempty"`
	ClientSecret           string                    `json:"clientSecret,omitempty"`
}

func NewSubscription() *Subscription {
	return &Subscription{}
}

func (s *Subscription) ConvertFromStripeSubscription(stripeSubscription *stripe.Subscription) *Subscription {
	if stripeSubscription == nil {
		return nil
	}

	s.ID = stripeSubscription.ID
	s.Status = stripeSubscription.Status
	if stripeSubscription.Customer != nil {
		s.CustomerID = stripeSubscription.Customer.ID
	}
	if stripeSubscription.Items != nil && len(stripeSubscription.Items.Data) > 0 {
		if price := stripeSubscription.Items.Data[0].Price; price != nil {
			s.PriceID = price.ID
		}
	}
	if stripeSubscription.CancelAt > 0 {
		cancelAt := time.Unix(stripeSubscription.CancelAt, 0)
		s.CancelAt = &cancelAt
	}
	if stripeSubscription.CanceledAt > 0 {
		canceledAt := time.Unix(stripeSubscription.CanceledAt, 0)
		s.CanceledAt = &canceledAt
	}
	if stripeSubscription.CurrentPeriodEnd > 0 {
		s.CurrentPeriodEnd = time.Unix(stripeSubscription.CurrentPeriodEnd, 0)
	}
	if stripeSubscription.DefaultPaymentMethod != nil {
		s.DefaultPaymentMethodID = stripeSubscription.DefaultPaymentMethod.ID
	}

	return s
}
