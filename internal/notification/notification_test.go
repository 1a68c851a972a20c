package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingEmail struct {
	mu       sync.Mutex
	err      error
	subjects []string
	bodies   []string
	to       [][]string
}

func (p *capturingEmail) Send(ctx context.Context, to []string, subject, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.to = append(p.to, to)
	p.subjects = append(p.subjects, subject)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *capturingEmail) sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subjects)
}

func TestDispatcher_DeliversQueuedEvents(t *testing.T) {
	provider := &capturingEmail{}
	d := NewDispatcher(zap.NewNop(), provider)
	d.Start()

	d.Notify(context.Background(), Event{
		Type:        EventPaymentReceived,
		Recipient:   "buyer@example.com",
		OrderID:     42,
		AmountMinor: 111105,
		Currency:    "ZAR",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	require.Equal(t, 1, provider.sent())
	assert.Equal(t, []string{"buyer@example.com"}, provider.to[0])
	assert.Equal(t, "Payment received", provider.subjects[0])
	assert.Contains(t, provider.bodies[0], "ZAR 1111.05")
	assert.Contains(t, provider.bodies[0], "order 42")
}

func TestDispatcher_SkipsEmptyRecipient(t *testing.T) {
	provider := &capturingEmail{}
	d := NewDispatcher(zap.NewNop(), provider)
	d.Start()

	d.Notify(context.Background(), Event{Type: EventEscrowReleased, OrderID: 7})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Zero(t, provider.sent())
}

func TestDispatcher_SendFailureIsSwallowed(t *testing.T) {
	provider := &capturingEmail{err: errors.New("smtp down")}
	d := NewDispatcher(zap.NewNop(), provider)
	d.Start()

	d.Notify(context.Background(), Event{
		Type:      EventPaymentFailed,
		Recipient: "buyer@example.com",
		OrderID:   7,
		Reason:    "card_declined",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestRender(t *testing.T) {
	cases := []struct {
		event       Event
		wantSubject string
		wantInBody  string
	}{
		{Event{Type: EventPaymentReceived, OrderID: 1, AmountMinor: 10000, Currency: "ZAR"}, "Payment received", "held in escrow"},
		{Event{Type: EventPaymentFailed, OrderID: 1, Reason: "card_declined"}, "Payment failed", "card_declined"},
		{Event{Type: EventEscrowReleased, OrderID: 1, AmountMinor: 10000, Currency: "ZAR"}, "Funds released", "released to the seller"},
		{Event{Type: EventEscrowRefunded, OrderID: 1, Reason: "not delivered"}, "Refund processed", "refunded"},
		{Event{Type: "unknown", OrderID: 1}, "Order update", "updated"},
	}
	for _, tc := range cases {
		subject, body := render(tc.event)
		assert.Equal(t, tc.wantSubject, subject)
		if !strings.Contains(body, tc.wantInBody) {
			t.Errorf("render(%s) body %q missing %q", tc.event.Type, body, tc.wantInBody)
		}
	}
}
