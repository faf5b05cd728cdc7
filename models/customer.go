package models

import (
	"github.com/stripe/stripe-go/v79"
)

// Customer is the service's view of a Stripe customer. Stripe owns the
// record; nothing here is persisted locally.
type Customer struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	Address     Address `json:"address"`
}

type Address struct {
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	State   string `json:"state"`
	Country string `json:"country"`
}

func NewCustomer() *Customer {
	return &Customer{}
}

func (c *Customer) ConvertFromStripeCustomer(stripeCustomer *stripe.Customer) *Customer {
	if stripeCustomer == nil {
		return nil
	}

	c.ID = stripeCustomer.ID
	c.Name = stripeCustomer.Name
	c.Email = stripeCustomer.Email
	c.PhoneNumber = stripeCustomer.Phone
	if stripeCustomer.Address != nil {
		c.Address = Address{
			Street:  stripeCustomer.Address.Line1,
			Zip:     stripeCustomer.Address.PostalCode,
			State:   stripeCustomer.Address.State,
			Country: stripeCustomer.Address.Country,
		}
	}

	return c
}
