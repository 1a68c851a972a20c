package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// HandleSuccessfulPayment opens a held escrow for the order and marks it
	// paid. Safe under duplicate webhook deliveries: replays are no-ops.
	HandleSuccessfulPayment(ctx context.Context, orderID snowflake.ID, reference string, amountMinor int64, currency string) error
	// HandleFailedPayment records the failure without touching escrow.
	HandleFailedPayment(ctx context.Context, orderID snowflake.ID, reason string) error
	// Release moves held funds to the seller. Fails with ErrNoHeldEscrow
	// when the escrow was already settled.
	Release(ctx context.Context, orderID snowflake.ID, actor string) (Escrow, error)
	// Refund returns held funds to the buyer.
	Refund(ctx context.Context, orderID snowflake.ID, actor, reason string) (Escrow, error)
	GetByOrderID(ctx context.Context, orderID snowflake.ID) (Escrow, error)
	List(ctx context.Context, status string, limit int) ([]Escrow, error)
}

type Repository interface {
	// InsertHeld creates a held escrow unless one already exists for the
	// order. Returns false when the row was skipped.
	InsertHeld(ctx context.Context, db *gorm.DB, escrow *Escrow) (bool, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Escrow, error)
	// Release and Refund are compare-and-swap updates predicated on
	// status=held; false means no held escrow matched.
	Release(ctx context.Context, db *gorm.DB, orderID snowflake.ID, actor string, now time.Time) (bool, error)
	Refund(ctx context.Context, db *gorm.DB, orderID snowflake.ID, actor, reason string, now time.Time) (bool, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status string, limit int) ([]Escrow, error)
}
