// Package currency converts major-unit amounts into the minor units the
// Stripe API expects and provides the installment arithmetic used for
// payment-plan invoices.
package currency

import (
	"math"

	"github.com/stripe/stripe-go/v79"
)

// ISO 4217 currencies whose minor unit is not the usual two decimals.
var (
	zeroDecimal = map[stripe.Currency]struct{}{
		stripe.CurrencyBIF: {},
		stripe.CurrencyCLP: {},
		stripe.CurrencyDJF: {},
		stripe.CurrencyGNF: {},
		stripe.CurrencyJPY: {},
		stripe.CurrencyKMF: {},
		stripe.CurrencyKRW: {},
		stripe.CurrencyMGA: {},
		stripe.CurrencyPYG: {},
		stripe.CurrencyRWF: {},
		stripe.CurrencyVND: {},
		stripe.CurrencyVUV: {},
		stripe.CurrencyXAF: {},
		stripe.CurrencyXOF: {},
		stripe.CurrencyXPF: {},
	}

	// stripe-go defines no constants for these; use the literal ISO codes
	// in the library's lowercase convention.
	threeDecimal = map[stripe.Currency]struct{}{
		stripe.Currency("bhd"): {},
		stripe.Currency("jod"): {},
		stripe.Currency("kwd"): {},
		stripe.Currency("omr"): {},
		stripe.Currency("tnd"): {},
	}
)

// Exponent returns the number of minor-unit decimals for the currency.
func Exponent(cur stripe.Currency) int {
	if _, ok := zeroDecimal[cur]; ok {
		return 0
	}
	if _, ok := threeDecimal[cur]; ok {
		return 3
	}
	return 2
}

// MinorUnits scales a major-unit amount to the currency's minor unit,
// rounding to the nearest whole unit: 19.99 USD becomes 1999.
func MinorUnits(amount float64, cur stripe.Currency) int64 {
	return int64(math.Round(amount * math.Pow10(Exponent(cur))))
}

// CeilDiv splits amount into parts equal installments rounded up, so the
// installments always cover the full amount. Three-way splits can overshoot
// the original by up to two minor units; that is accepted.
func CeilDiv(amount, parts int64) int64 {
	if parts <= 0 {
		return amount
	}
	return (amount + parts - 1) / parts
}
