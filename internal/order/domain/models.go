package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "payment_failed"
	PaymentStatusRefunded = "refunded"
)

const (
	OrderStatusCreated   = "created"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusScheduled = "scheduled"
	DeliveryStatusDelivered = "delivered"
)

var ErrNotFound = errors.New("order_not_found")

// Order is owned by the checkout subsystem until paid; afterwards the
// fulfilment side reads it.
type Order struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	BuyerID          snowflake.ID   `json:"buyer_id" gorm:"not null;index"`
	BuyerEmail       string         `json:"buyer_email" gorm:"type:text;not null"`
	SellerID         snowflake.ID   `json:"seller_id" gorm:"not null"`
	Items            datatypes.JSON `json:"items" gorm:"type:jsonb;not null"`
	Currency         string         `json:"currency" gorm:"type:text;not null"`
	TotalAmountMinor int64          `json:"total_amount_minor" gorm:"not null"`
	FeeConfigID      snowflake.ID   `json:"fee_config_id"`
	PaymentStatus    string         `json:"payment_status" gorm:"type:text;not null;default:pending"`
	OrderStatus      string         `json:"order_status" gorm:"type:text;not null;default:created"`
	DeliveryStatus   string         `json:"delivery_status" gorm:"type:text;not null;default:pending"`
	Reference        string         `json:"reference" gorm:"type:text"`
	FailureReason    string         `json:"failure_reason" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null"`
	PaidAt           *time.Time     `json:"paid_at"`
	CompletedAt      *time.Time     `json:"completed_at"`
}

func (Order) TableName() string { return "orders" }
