package checkout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/checkout/config"
	"goflare.io/checkout/models"
)

// stripeStub stands in for the Stripe API. It counts calls per
// "METHOD path" key and captures the last form body seen for each.
type stripeStub struct {
	mu        sync.Mutex
	calls     map[string]int
	lastForm  map[string]map[string][]string
	responses map[string]string
}

func newStripeStub() *stripeStub {
	return &stripeStub{
		calls:     make(map[string]int),
		lastForm:  make(map[string]map[string][]string),
		responses: make(map[string]string),
	}
}

func (s *stripeStub) respond(method, path, body string) {
	s.responses[method+" "+path] = body
}

func (s *stripeStub) count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

func (s *stripeStub) form(method, path string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm[method+" "+path]
}

func (s *stripeStub) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *stripeStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	key := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.calls[key]++
	s.lastForm[key] = r.Form
	body, ok := s.responses[key]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":{"type":"invalid_request_error","message":"no stub for %s"}}`, key)
		return
	}
	fmt.Fprint(w, body)
}

func newTestCheckout(t *testing.T, stub *stripeStub, webhookSecret string) *StripeCheckout {
	t.Helper()

	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)

	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", webhookSecret)

	appConfig, err := config.ProvideApplicationConfig()
	require.NoError(t, err)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:           stripe.String(ts.URL),
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	api := client.New(appConfig.Stripe.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return NewStripeCheckout(appConfig, api, zap.NewNop()).(*StripeCheckout)
}

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)

	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestCreateCustomerThenPaymentIntent(t *testing.T) {
	stub := newStripeStub()
	stub.respond("POST", "/v1/customers", `{"id":"cus_test_1","name":"Jane Doe","email":"jane@example.com"}`)
	stub.respond("POST", "/v1/payment_intents", `{"id":"pi_1","client_secret":"pi_1_secret_x","amount":1999,"currency":"eur","status":"requires_payment_method"}`)

	sc := newTestCheckout(t, stub, "")
	ctx := context.Background()

	customer, err := sc.CreateCustomer(ctx, &models.Customer{
		Name:        "Jane Doe",
		Email:       "jane@example.com",
		PhoneNumber: "555-0100",
		Address:     models.Address{Street: "1 Main St", Zip: "94105", State: "CA", Country: "US"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, customer.ID)

	form := stub.form("POST", "/v1/customers")
	assert.Equal(t, "1 Main St", form["address[line1]"][0])
	assert.Equal(t, "94105", form["address[postal_code]"][0])
	assert.Equal(t, "US", form["address[country]"][0])

	intent, err := sc.CreatePaymentIntent(ctx, 1999, stripe.CurrencyEUR, customer.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, intent.ClientSecret)

	form = stub.form("POST", "/v1/payment_intents")
	assert.Equal(t, customer.ID, form["customer"][0])
	assert.Equal(t, "off_session", form["setup_future_usage"][0])
	assert.Equal(t, "card", form["payment_method_types[0]"][0])
}

func TestCreatePaymentIntentValidation(t *testing.T) {
	stub := newStripeStub()
	sc := newTestCheckout(t, stub, "")
	ctx := context.Background()

	_, err := sc.CreatePaymentIntent(ctx, 0, stripe.CurrencyEUR, "")
	assert.Error(t, err)

	_, err = sc.CreatePaymentIntent(ctx, -5, stripe.CurrencyEUR, "")
	assert.Error(t, err)

	_, err = sc.CreatePaymentIntent(ctx, 1999, "euro", "")
	assert.Error(t, err)

	// Validation failures must not reach the API.
	assert.Zero(t, stub.totalCalls())
}

func TestCreatePaymentIntentSurfacesUpstreamMessage(t *testing.T) {
	stub := newStripeStub()
	sc := newTestCheckout(t, stub, "")

	// The stub answers 404 with a Stripe-shaped error for unknown routes.
	_, err := sc.CreatePaymentIntent(context.Background(), 1999, stripe.CurrencyEUR, "")
	require.Error(t, err)

	var stripeErr *stripe.Error
	require.ErrorAs(t, err, &stripeErr)
	assert.Contains(t, stripeErr.Msg, "no stub")
}

func TestCreateProductScalesMajorUnits(t *testing.T) {
	stub := newStripeStub()
	stub.respond("POST", "/v1/products", `{"id":"prod_1","name":"Premium"}`)
	stub.respond("POST", "/v1/prices", `{"id":"price_1","currency":"usd","unit_amount":1999}`)

	sc := newTestCheckout(t, stub, "")

	priceID, err := sc.CreateProduct(context.Background(), "Premium", 19.99, true)
	require.NoError(t, err)
	assert.Equal(t, "price_1", priceID)

	form := stub.form("POST", "/v1/prices")
	assert.Equal(t, "1999", form["unit_amount"][0])
	assert.Equal(t, "1999", form["currency_options[eur][unit_amount]"][0])
	assert.Equal(t, "month", form["recurring[interval]"][0])
}

func TestCreateQuarterlyInvoiceSplitsByCeiling(t *testing.T) {
	stub := newStripeStub()
	stub.respond("GET", "/v1/prices/price_1", `{"id":"price_1","currency":"usd","unit_amount":1999,"currency_options":{"eur":{"unit_amount":1999}}}`)
	stub.respond("POST", "/v1/invoices", `{"id":"in_1","status":"draft"}`)
	stub.respond("POST", "/v1/invoiceitems", `{"id":"ii_1"}`)

	sc := newTestCheckout(t, stub, "")

	invoiceID, err := sc.CreateQuarterlyInvoice(context.Background(), "price_1", stripe.CurrencyEUR, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "in_1", invoiceID)

	form := stub.form("POST", "/v1/invoices")
	for i := 0; i < 3; i++ {
		assert.Equal(t, "667", form[fmt.Sprintf("amounts_due[%d][amount]", i)][0])
	}
	assert.Equal(t, "1", form["amounts_due[0][days_until_due]"][0])
	assert.Equal(t, "30", form["amounts_due[1][days_until_due]"][0])
	assert.Equal(t, "60", form["amounts_due[2][days_until_due]"][0])
	assert.Equal(t, "exclude", form["pending_invoice_items_behavior"][0])

	itemForm := stub.form("POST", "/v1/invoiceitems")
	assert.Equal(t, "in_1", itemForm["invoice"][0])
	assert.Equal(t, "price_1", itemForm["price"][0])
}

func TestCreateQuarterlyInvoiceRejectsUnknownCurrency(t *testing.T) {
	stub := newStripeStub()
	stub.respond("GET", "/v1/prices/price_1", `{"id":"price_1","currency":"usd","unit_amount":1999,"currency_options":{"eur":{"unit_amount":1999}}}`)

	sc := newTestCheckout(t, stub, "")

	_, err := sc.CreateQuarterlyInvoice(context.Background(), "price_1", stripe.CurrencyGBP, "cus_1")
	assert.Error(t, err)
	assert.Zero(t, stub.count("POST", "/v1/invoices"))
}

func TestCreateSubscription(t *testing.T) {
	stub := newStripeStub()
	stub.respond("POST", "/v1/subscriptions", `{
		"id":"sub_1","status":"incomplete","customer":"cus_1","cancel_at":4102444800,
		"items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_1"}}]},
		"latest_invoice":{"id":"in_1","payment_intent":{"id":"pi_1","client_secret":"pi_1_secret_x"}}
	}`)

	sc := newTestCheckout(t, stub, "")

	subscription, err := sc.CreateSubscription(context.Background(), "cus_1", "price_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", subscription.ID)
	assert.Equal(t, "pi_1_secret_x", subscription.ClientSecret)
	assert.Equal(t, "price_1", subscription.PriceID)
	require.NotNil(t, subscription.CancelAt)

	form := stub.form("POST", "/v1/subscriptions")
	assert.Equal(t, "default_incomplete", form["payment_behavior"][0])
	assert.Equal(t, "price_1", form["items[0][price]"][0])

	// cancel_at lands three calendar months out.
	require.Contains(t, form, "cancel_at")
	assert.NotEmpty(t, form["cancel_at"][0])
	require.Contains(t, form, "expand[0]")
	assert.Equal(t, "latest_invoice.payment_intent", form["expand[0]"][0])
}

func TestListSubscriptions(t *testing.T) {
	stub := newStripeStub()
	stub.respond("GET", "/v1/subscriptions", `{
		"object":"list","has_more":false,
		"data":[{"id":"sub_1","status":"active","customer":"cus_1","default_payment_method":"pm_1",
		         "items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_1"}}]}}]
	}`)

	sc := newTestCheckout(t, stub, "")

	subscriptions, err := sc.ListSubscriptions(context.Background(), "cus_1")
	require.NoError(t, err)
	require.Len(t, subscriptions, 1)
	assert.Equal(t, "sub_1", subscriptions[0].ID)
	assert.Equal(t, "pm_1", subscriptions[0].DefaultPaymentMethodID)
}

func TestUpdateSubscriptionPrice(t *testing.T) {
	stub := newStripeStub()
	stub.respond("GET", "/v1/subscriptions/sub_1", `{"id":"sub_1","status":"active","customer":"cus_1",
		"items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_basic"}}]}}`)
	stub.respond("POST", "/v1/subscriptions/sub_1", `{"id":"sub_1","status":"active","customer":"cus_1",
		"items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_premium"}}]}}`)

	t.Setenv("PREMIUM", "price_premium")
	sc := newTestCheckout(t, stub, "")

	subscription, err := sc.UpdateSubscriptionPrice(context.Background(), "sub_1", "premium")
	require.NoError(t, err)
	assert.Equal(t, "price_premium", subscription.PriceID)

	form := stub.form("POST", "/v1/subscriptions/sub_1")
	assert.Equal(t, "si_1", form["items[0][id]"][0])
	assert.Equal(t, "price_premium", form["items[0][price]"][0])
}

func TestUpdateSubscriptionPriceUnknownLookupKey(t *testing.T) {
	stub := newStripeStub()
	sc := newTestCheckout(t, stub, "")

	_, err := sc.UpdateSubscriptionPrice(context.Background(), "sub_1", "no-such-plan")
	assert.Error(t, err)
	assert.Zero(t, stub.totalCalls())
}

func TestPreviewInvoice(t *testing.T) {
	stub := newStripeStub()
	stub.respond("GET", "/v1/subscriptions/sub_1", `{"id":"sub_1","status":"active","customer":"cus_1",
		"items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_basic"}}]}}`)
	stub.respond("GET", "/v1/invoices/upcoming", `{"id":"in_upcoming","customer":"cus_1","currency":"usd","amount_due":2999}`)

	t.Setenv("PREMIUM", "price_premium")
	sc := newTestCheckout(t, stub, "")

	invoice, err := sc.PreviewInvoice(context.Background(), "sub_1", "premium")
	require.NoError(t, err)
	assert.Equal(t, int64(2999), invoice.AmountDue)
}

func TestCancelSubscription(t *testing.T) {
	stub := newStripeStub()
	stub.respond("DELETE", "/v1/subscriptions/sub_1", `{"id":"sub_1","status":"canceled","customer":"cus_1","canceled_at":1700000000,
		"items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_1"}}]}}`)

	sc := newTestCheckout(t, stub, "")

	subscription, err := sc.CancelSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, stripe.SubscriptionStatusCanceled, subscription.Status)
	require.NotNil(t, subscription.CanceledAt)
}

func TestFindCustomerByEmail(t *testing.T) {
	stub := newStripeStub()
	stub.respond("GET", "/v1/customers", `{"object":"list","has_more":false,
		"data":[{"id":"cus_1","email":"jane@example.com"},{"id":"cus_2","email":"jane@example.com"}]}`)

	sc := newTestCheckout(t, stub, "")

	customer, err := sc.FindCustomerByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, "cus_1", customer.ID)

	form := stub.form("GET", "/v1/customers")
	assert.Equal(t, "jane@example.com", form["email"][0])
	assert.Equal(t, "100", form["limit"][0])
}

func TestFindCustomerByEmailNoMatch(t *testing.T) {
	stub := newStripeStub()
	stub.respond("GET", "/v1/customers", `{"object":"list","has_more":false,"data":[]}`)

	sc := newTestCheckout(t, stub, "")

	customer, err := sc.FindCustomerByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, customer)
}

func TestWebhookSubscriptionCreateAttachesPaymentMethod(t *testing.T) {
	stub := newStripeStub()
	stub.respond("GET", "/v1/payment_intents/pi_1", `{"id":"pi_1","payment_method":"pm_1","status":"succeeded"}`)
	stub.respond("POST", "/v1/subscriptions/sub_1", `{"id":"sub_1","status":"active"}`)

	sc := newTestCheckout(t, stub, "")

	payload := []byte(`{"id":"evt_1","type":"invoice.payment_succeeded","data":{"object":{
		"id":"in_1","object":"invoice","billing_reason":"subscription_create",
		"payment_intent":"pi_1","subscription":"sub_1"}}}`)

	require.NoError(t, sc.HandleWebhook(context.Background(), payload, ""))

	// Exactly one default-payment-method update, carrying the intent's method.
	assert.Equal(t, 1, stub.count("POST", "/v1/subscriptions/sub_1"))
	form := stub.form("POST", "/v1/subscriptions/sub_1")
	assert.Equal(t, "pm_1", form["default_payment_method"][0])
}

func TestWebhookSubscriptionCreateFailureIsSwallowed(t *testing.T) {
	stub := newStripeStub()
	// No stubs registered: every API call the handler makes fails.

	sc := newTestCheckout(t, stub, "")

	payload := []byte(`{"id":"evt_1","type":"invoice.payment_succeeded","data":{"object":{
		"id":"in_1","object":"invoice","billing_reason":"subscription_create",
		"payment_intent":"pi_1","subscription":"sub_1"}}}`)

	// Handler failures never bubble up; receipt is still acknowledged.
	assert.NoError(t, sc.HandleWebhook(context.Background(), payload, ""))
}

func TestWebhookUnrecognizedTypeIsIgnored(t *testing.T) {
	stub := newStripeStub()
	sc := newTestCheckout(t, stub, "")

	payload := []byte(`{"id":"evt_2","type":"plan.updated","data":{"object":{"id":"plan_1"}}}`)

	require.NoError(t, sc.HandleWebhook(context.Background(), payload, ""))
	assert.Zero(t, stub.totalCalls())
}

func TestWebhookSubscriptionDeletedBranches(t *testing.T) {
	stub := newStripeStub()
	sc := newTestCheckout(t, stub, "")

	requested := []byte(`{"id":"evt_3","type":"customer.subscription.deleted","request":{"id":"req_1"},
		"data":{"object":{"id":"sub_1","object":"subscription","status":"canceled"}}}`)
	automatic := []byte(`{"id":"evt_4","type":"customer.subscription.deleted",
		"data":{"object":{"id":"sub_1","object":"subscription","status":"canceled"}}}`)

	assert.NoError(t, sc.HandleWebhook(context.Background(), requested, ""))
	assert.NoError(t, sc.HandleWebhook(context.Background(), automatic, ""))
	assert.Zero(t, stub.totalCalls())
}

func TestWebhookSignatureVerification(t *testing.T) {
	const secret = "whsec_test_secret"

	stub := newStripeStub()
	stub.respond("GET", "/v1/payment_intents/pi_1", `{"id":"pi_1","payment_method":"pm_1"}`)
	stub.respond("POST", "/v1/subscriptions/sub_1", `{"id":"sub_1","status":"active"}`)

	sc := newTestCheckout(t, stub, secret)
	ctx := context.Background()

	payload := []byte(`{"id":"evt_1","api_version":"2024-06-20","type":"invoice.payment_succeeded","data":{"object":{
		"id":"in_1","object":"invoice","billing_reason":"subscription_create",
		"payment_intent":"pi_1","subscription":"sub_1"}}}`)

	// Valid signature: accepted and processed.
	require.NoError(t, sc.HandleWebhook(ctx, payload, signPayload(t, payload, secret)))
	assert.Equal(t, 1, stub.count("POST", "/v1/subscriptions/sub_1"))

	// Missing signature: rejected, no side effect.
	assert.Error(t, sc.HandleWebhook(ctx, payload, ""))

	// Signature minted with the wrong secret: rejected, no side effect.
	assert.Error(t, sc.HandleWebhook(ctx, payload, signPayload(t, payload, "whsec_other")))

	// Tampered body under a signature for the original: rejected.
	tampered := []byte(`{"id":"evt_1","api_version":"2024-06-20","type":"invoice.payment_succeeded","data":{"object":{
		"id":"in_1","object":"invoice","billing_reason":"subscription_create",
		"payment_intent":"pi_1","subscription":"sub_evil"}}}`)
	assert.Error(t, sc.HandleWebhook(ctx, tampered, signPayload(t, payload, secret)))

	assert.Equal(t, 1, stub.count("POST", "/v1/subscriptions/sub_1"))
	assert.Zero(t, stub.count("POST", "/v1/subscriptions/sub_evil"))
}

func TestWebhookMalformedUnverifiedPayload(t *testing.T) {
	stub := newStripeStub()
	sc := newTestCheckout(t, stub, "")

	assert.Error(t, sc.HandleWebhook(context.Background(), []byte("not json"), ""))
	assert.Zero(t, stub.totalCalls())
}
