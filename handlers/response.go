package handlers

import (
	"errors"

	"github.com/stripe/stripe-go/v79"
)

// errorResponse is the error shape every handler answers with:
// {"error":{"message":"..."}}.
func errorResponse(message string) map[string]map[string]string {
	return map[string]map[string]string{
		"error": {
			"message": message,
		},
	}
}

// upstreamMessage prefers the human-readable Stripe error message over the
// wrapped Go error chain.
func upstreamMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
