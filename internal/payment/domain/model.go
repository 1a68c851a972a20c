package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrInvalidSignature      = errors.New("invalid_webhook_signature")
	ErrMissingSignature      = errors.New("missing_webhook_signature")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrMissingOrderID        = errors.New("missing_order_id")
	ErrMalformedEvent        = errors.New("malformed_event")
	ErrPaymentInit           = errors.New("payment_initialization_failed")
	ErrVerifyFailed          = errors.New("payment_verification_failed")
	ErrProviderUnknown       = errors.New("unknown_payment_provider")
)

const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventRefundProcessed = "refund.processed"
)

// Event is a provider webhook normalized into gateway-neutral terms.
// OrderIDs comes from the transaction metadata stamped at initialization.
type Event struct {
	Provider        string
	ProviderEventID string
	Type            string
	Reference       string
	AmountMinor     int64
	Currency        string
	OrderIDs        []snowflake.ID
	FailureReason   string
	RawPayload      []byte
}

type InitializeInput struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	CallbackURL string
	// Metadata rides on the transaction and comes back on the webhook.
	Metadata map[string]any
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyResult struct {
	Reference   string
	Status      string
	AmountMinor int64
	Currency    string
	PaidAt      *time.Time
}

// Gateway abstracts one payment provider. Signature verification runs on the
// raw request body before any JSON decoding.
type Gateway interface {
	Name() string
	VerifySignature(body []byte, signature string) error
	ParseEvent(body []byte) (Event, error)
	Initialize(ctx context.Context, input InitializeInput) (InitializeResult, error)
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

// EventRecord is the stored copy of a received webhook. The unique
// (provider, provider_event_id) pair is the idempotency key.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	OrderID         snowflake.ID   `json:"order_id"`
	Reference       string         `json:"reference" gorm:"type:text"`
	AmountMinor     int64          `json:"amount_minor"`
	Currency        string         `json:"currency" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }
