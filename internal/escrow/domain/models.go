package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusHeld     = "held"
	StatusReleased = "released"
	StatusRefunded = "refunded"
)

var (
	ErrNotFound     = errors.New("escrow_not_found")
	ErrNoHeldEscrow = errors.New("no_held_escrow")
	ErrInvalidActor = errors.New("invalid_actor")
)

// Escrow holds a buyer's funds for one order until the platform releases
// them to the seller or refunds the buyer. order_id is unique: at most one
// escrow exists per order, and held is the only state transitions leave.
type Escrow struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID      snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex"`
	Reference    string       `json:"reference" gorm:"type:text;not null"`
	AmountMinor  int64        `json:"amount_minor" gorm:"not null"`
	Currency     string       `json:"currency" gorm:"type:text;not null"`
	Status       string       `json:"status" gorm:"type:text;not null;default:held"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	ReleasedBy   string       `json:"released_by" gorm:"type:text"`
	ReleasedAt   *time.Time   `json:"released_at"`
	RefundedBy   string       `json:"refunded_by" gorm:"type:text"`
	RefundedAt   *time.Time   `json:"refunded_at"`
	RefundReason string       `json:"refund_reason" gorm:"type:text"`
}

func (Escrow) TableName() string { return "escrows" }
