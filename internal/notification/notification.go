// Package notification fans out buyer and seller messages after settlement
// transitions. Delivery is fire-and-forget: a failed send never rolls back
// the state change that triggered it.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kraalmart/kraalmart/internal/providers/email"
	"go.uber.org/zap"
)

const (
	EventPaymentReceived = "payment_received"
	EventPaymentFailed   = "payment_failed"
	EventEscrowReleased  = "escrow_released"
	EventEscrowRefunded  = "escrow_refunded"
)

type Event struct {
	Type        string
	Recipient   string
	OrderID     snowflake.ID
	Reference   string
	AmountMinor int64
	Currency    string
	Reason      string
}

type Dispatcher interface {
	// Notify enqueues an event without blocking the caller. Events are
	// dropped with a warning when the buffer is full.
	Notify(ctx context.Context, event Event)
}

const sendTimeout = 10 * time.Second

type AsyncDispatcher struct {
	log    *zap.Logger
	email  email.Provider
	queue  chan Event
	done   chan struct{}
	closed chan struct{}
}

func NewDispatcher(log *zap.Logger, provider email.Provider) *AsyncDispatcher {
	return &AsyncDispatcher{
		log:    log.Named("notification"),
		email:  provider,
		queue:  make(chan Event, 256),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (d *AsyncDispatcher) Notify(ctx context.Context, event Event) {
	select {
	case d.queue <- event:
	default:
		d.log.Warn("notification queue full, dropping event",
			zap.String("type", event.Type),
			zap.Int64("order_id", int64(event.OrderID)),
		)
	}
}

// Start launches the worker; Stop drains the queue before returning.
func (d *AsyncDispatcher) Start() {
	go d.run()
}

func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	close(d.done)
	select {
	case <-d.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) run() {
	defer close(d.closed)
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *AsyncDispatcher) deliver(event Event) {
	if event.Recipient == "" {
		d.log.Debug("notification without recipient skipped", zap.String("type", event.Type))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	subject, body := render(event)
	if err := d.email.Send(ctx, []string{event.Recipient}, subject, body); err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("type", event.Type),
			zap.Int64("order_id", int64(event.OrderID)),
			zap.Error(err),
		)
		return
	}
	d.log.Info("notification delivered",
		zap.String("type", event.Type),
		zap.Int64("order_id", int64(event.OrderID)),
	)
}

func render(event Event) (string, string) {
	amount := fmt.Sprintf("%s %.2f", event.Currency, float64(event.AmountMinor)/100)
	switch event.Type {
	case EventPaymentReceived:
		return "Payment received",
			fmt.Sprintf("<p>Your payment of %s for order %d was received. Funds are held in escrow until delivery is confirmed.</p>", amount, event.OrderID)
	case EventPaymentFailed:
		return "Payment failed",
			fmt.Sprintf("<p>Your payment for order %d could not be completed: %s.</p>", event.OrderID, event.Reason)
	case EventEscrowReleased:
		return "Funds released",
			fmt.Sprintf("<p>Escrow of %s for order %d has been released to the seller.</p>", amount, event.OrderID)
	case EventEscrowRefunded:
		return "Refund processed",
			fmt.Sprintf("<p>Escrow of %s for order %d has been refunded: %s.</p>", amount, event.OrderID, event.Reason)
	default:
		return "Order update", fmt.Sprintf("<p>Order %d was updated.</p>", event.OrderID)
	}
}
