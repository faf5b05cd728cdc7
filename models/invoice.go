package models

import (
	"time"

	"github.com/stripe/stripe-go/v79"
)

// Invoice is the service's view of a Stripe invoice, used for installment
// billing and upcoming-invoice previews.
type Invoice struct {
	ID               string               `json:"id"`
	CustomerID       string               `json:"customerId"`
	SubscriptionID   string               `json:"subscriptionId,omitempty"`
	Status           stripe.InvoiceStatus `json:"status"`
	Currency         stripe.Currency      `json:"currency"`
	AmountDue        int64                `json:"amountDue"`
	AmountPaid       int64                `json:"amountPaid"`
	AmountRemaining  int64                `json:"amountRemaining"`
	DueDate          *time.Time           `json:"dueDate,omitempty"`
	HostedInvoiceURL string               `json:"hostedInvoiceUrl,omitempty"`
}

func NewInvoice() *Invoice {
	return &Invoice{}
}

func (i *Invoice) ConvertFromStripeInvoice(stripeInvoice *stripe.Invoice) *Invoice {
	if stripeInvoice == nil {
		return nil
	}

	i.ID = stripeInvoice.ID
	i.Status = stripeInvoice.Status
	i.Currency = stripe.Currency(stripeInvoice.Currency)
	i.AmountDue = stripeInvoice.AmountDue
	i.AmountPaid = stripeInvoice.AmountPaid
	i.AmountRemaining = stripeInvoice.AmountRemaining
	i.HostedInvoiceURL = stripeInvoice.HostedInvoiceURL
	if stripeInvoice.Customer != nil {
		i.CustomerID = stripeInvoice.Customer.ID
	}
	if stripeInvoice.Subscription != nil {
		i.SubscriptionID = stripeInvoice.Subscription.ID
	}
	if stripeInvoice.DueDate > 0 {
		dueDate := time.Unix(stripeInvoice.DueDate, 0)
		i.DueDate = &dueDate
	}

	return i
}
