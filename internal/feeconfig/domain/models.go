package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// FeeConfig is a versioned record of platform commission and fee rates.
// Percentages are expressed as 0..100; fixed fees in minor currency units.
// Once ACTIVE a config is immutable; changes require a new version.
type FeeConfig struct {
	ID                     snowflake.ID `json:"id" gorm:"primaryKey"`
	Label                  string       `json:"label" gorm:"type:text;not null"`
	PlatformCommissionPct  float64      `json:"platform_commission_pct" gorm:"not null"`
	SellerPayoutFeePct     float64      `json:"seller_payout_fee_pct" gorm:"not null"`
	BuyerProcessingFeePct  float64      `json:"buyer_processing_fee_pct" gorm:"not null"`
	EscrowFeeMinor         int64        `json:"escrow_fee_minor" gorm:"not null"`
	MinimumOrderValueMinor int64        `json:"minimum_order_value_minor"`
	MaximumOrderValueMinor int64        `json:"maximum_order_value_minor"`
	Status                 string       `json:"status" gorm:"type:text;not null;default:draft"`
	CreatedBy              string       `json:"created_by" gorm:"type:text"`
	CreatedAt              time.Time    `json:"created_at" gorm:"not null"`
	ActivatedAt            *time.Time   `json:"activated_at"`
	ArchivedAt             *time.Time   `json:"archived_at"`
}

func (FeeConfig) TableName() string { return "fee_configs" }

// CreateInput carries admin-supplied fields for a new draft config.
type CreateInput struct {
	Label                  string  `json:"label"`
	PlatformCommissionPct  float64 `json:"platform_commission_pct"`
	SellerPayoutFeePct     float64 `json:"seller_payout_fee_pct"`
	BuyerProcessingFeePct  float64 `json:"buyer_processing_fee_pct"`
	EscrowFeeMinor         int64   `json:"escrow_fee_minor"`
	MinimumOrderValueMinor int64   `json:"minimum_order_value_minor"`
	MaximumOrderValueMinor int64   `json:"maximum_order_value_minor"`
	CreatedBy              string  `json:"created_by"`
}
