package checkout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

type EventHandler func(context.Context, *stripe.Event) error

// EventManager maps event types to their handlers and, when a NATS
// connection is present, relays verified events so processing happens off
// the webhook request path.
type EventManager struct {
	natsConn *nats.Conn
	handlers map[stripe.EventType]EventHandler
	logger   *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		handlers: make(map[stripe.EventType]EventHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(eventType stripe.EventType, handler EventHandler) {
	em.handlers[eventType] = handler
}

// GetHandler returns the handler for an event type. The second return is
// false for every type this service does not recognize; callers treat that
// as the explicit "unknown" branch and ignore the event.
func (em *EventManager) GetHandler(eventType stripe.EventType) (EventHandler, bool) {
	handler, exists := em.handlers[eventType]
	return handler, exists
}

func (em *EventManager) PublishEvent(event *stripe.Event) error {
	if em.natsConn == nil {
		return fmt.Errorf("no nats connection")
	}

	subject := fmt.Sprintf("stripe.event.%s", event.Type)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return em.natsConn.Publish(subject, data)
}

func (em *EventManager) SubscribeToEvents(d *Dispatcher) error {
	_, err := em.natsConn.Subscribe("stripe.event.>", func(msg *nats.Msg) {
		var event stripe.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("failed to unmarshal relayed event", zap.Error(err))
			return
		}

		d.Submit(context.Background(), &event)
	})

	return err
}

// registerEventHandlers wires the closed set of event types this service
// reacts to. Anything else falls through GetHandler's unknown branch.
func (sc *StripeCheckout) registerEventHandlers() {

	eventHandlers := map[stripe.EventType]EventHandler{
		// Payment Intent
		stripe.EventTypePaymentIntentSucceeded:     sc.handlePaymentIntentEvent,
		stripe.EventTypePaymentIntentPaymentFailed: sc.handlePaymentIntentEvent,
		stripe.EventTypePaymentIntentProcessing:    sc.handlePaymentIntentEvent,

		// Invoice
		stripe.EventTypeInvoicePaid:             sc.handleInvoiceEvent,
		stripe.EventTypeInvoicePaymentSucceeded: sc.handleInvoiceEvent,
		stripe.EventTypeInvoicePaymentFailed:    sc.handleInvoiceEvent,
		stripe.EventTypeInvoiceFinalized:        sc.handleInvoiceEvent,

		// Subscription
		stripe.EventTypeCustomerSubscriptionDeleted: sc.handleSubscriptionEvent,
	}

	for eventType, handler := range eventHandlers {
		sc.eventManager.RegisterHandler(eventType, handler)
	}
}
