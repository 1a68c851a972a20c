package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// IngestResult reports what a webhook delivery did. Duplicate deliveries
// are acknowledged, not errors: the provider must stop retrying.
type IngestResult struct {
	EventType string         `json:"event_type"`
	Reference string         `json:"reference"`
	OrderIDs  []snowflake.ID `json:"order_ids"`
	Duplicate bool           `json:"duplicate"`
}

type WebhookService interface {
	// Ingest verifies the signature over the raw body, records the event,
	// and dispatches it to settlement. Replays reach the same terminal state.
	Ingest(ctx context.Context, provider string, body []byte, signature string) (IngestResult, error)
}

type Repository interface {
	// InsertEvent stores the event unless (provider, provider_event_id) was
	// seen before. Returns false for the duplicate case.
	InsertEvent(ctx context.Context, db *gorm.DB, record *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
}
