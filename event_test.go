package checkout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBareCheckout() *StripeCheckout {
	logger := zap.NewNop()
	return &StripeCheckout{
		logger:       logger,
		eventManager: NewEventManager(nil, logger),
	}
}

func TestEventManagerRegistration(t *testing.T) {
	em := NewEventManager(nil, zap.NewNop())

	_, exists := em.GetHandler(stripe.EventTypeInvoicePaid)
	assert.False(t, exists)

	em.RegisterHandler(stripe.EventTypeInvoicePaid, func(context.Context, *stripe.Event) error {
		return nil
	})

	handler, exists := em.GetHandler(stripe.EventTypeInvoicePaid)
	require.True(t, exists)
	assert.NotNil(t, handler)
}

func TestEventManagerPublishWithoutConnection(t *testing.T) {
	em := NewEventManager(nil, zap.NewNop())

	err := em.PublishEvent(&stripe.Event{ID: "evt_1", Type: stripe.EventTypeInvoicePaid})
	assert.Error(t, err)
}

func TestRegisteredEventTypes(t *testing.T) {
	sc := newBareCheckout()
	sc.registerEventHandlers()

	recognized := []stripe.EventType{
		stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentProcessing,
		stripe.EventTypeInvoicePaid,
		stripe.EventTypeInvoicePaymentSucceeded,
		stripe.EventTypeInvoicePaymentFailed,
		stripe.EventTypeInvoiceFinalized,
		stripe.EventTypeCustomerSubscriptionDeleted,
	}
	for _, eventType := range recognized {
		_, exists := sc.eventManager.GetHandler(eventType)
		assert.True(t, exists, "expected a handler for %s", eventType)
	}

	_, exists := sc.eventManager.GetHandler(stripe.EventType("charge.refunded"))
	assert.False(t, exists)
}

func TestProcessEventSwallowsHandlerErrors(t *testing.T) {
	sc := newBareCheckout()

	var calls atomic.Int32
	sc.eventManager.RegisterHandler("test.failing", func(context.Context, *stripe.Event) error {
		calls.Add(1)
		return errors.New("boom")
	})

	// Must not panic or propagate; the delivery was already acknowledged.
	sc.ProcessEvent(context.Background(), &stripe.Event{ID: "evt_1", Type: "test.failing"})
	assert.Equal(t, int32(1), calls.Load())

	// Unrecognized types are a no-op.
	sc.ProcessEvent(context.Background(), &stripe.Event{ID: "evt_2", Type: "test.unknown"})
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcherProcessesSubmittedEvents(t *testing.T) {
	sc := newBareCheckout()

	const jobs = 16
	var processed atomic.Int32
	done := make(chan struct{}, jobs)
	sc.eventManager.RegisterHandler("test.dispatched", func(context.Context, *stripe.Event) error {
		processed.Add(1)
		done <- struct{}{}
		return nil
	})

	d := NewDispatcher(4, 8, sc)
	d.Run()
	defer d.Stop()

	for i := 0; i < jobs; i++ {
		d.Submit(context.Background(), &stripe.Event{ID: "evt_1", Type: "test.dispatched"})
	}

	for i := 0; i < jobs; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, jobs)
		}
	}
	assert.Equal(t, int32(jobs), processed.Load())
}

func TestDispatcherSubmitAfterContextCancel(t *testing.T) {
	sc := newBareCheckout()

	var processed atomic.Int32
	sc.eventManager.RegisterHandler("test.dispatched", func(context.Context, *stripe.Event) error {
		processed.Add(1)
		return nil
	})

	// No workers running: the queue fills and Submit must fall back to the
	// canceled context instead of blocking forever.
	d := NewDispatcher(0, 1, sc)

	ctx, cancel := context.WithCancel(context.Background())
	d.Submit(ctx, &stripe.Event{ID: "evt_1", Type: "test.dispatched"})
	cancel()
	d.Submit(ctx, &stripe.Event{ID: "evt_2", Type: "test.dispatched"})

	assert.Zero(t, processed.Load())
}
