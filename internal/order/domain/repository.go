package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	SetReference(ctx context.Context, db *gorm.DB, id snowflake.ID, reference string) error
	// MarkPaid is conditional on payment_status=pending so duplicate webhook
	// deliveries leave paid_at untouched.
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, completedAt time.Time) error
	MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	// ExpireStalePending fails pending orders created before the cutoff,
	// in batches. Returns the number of orders expired.
	ExpireStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) (int64, error)
}
