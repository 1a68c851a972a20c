package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNoActiveConfig    = errors.New("no_active_fee_config")
	ErrNotFound          = errors.New("fee_config_not_found")
	ErrInvalidPercentage = errors.New("invalid_fee_percentage")
	ErrInvalidBounds     = errors.New("invalid_order_value_bounds")
	ErrInvalidEscrowFee  = errors.New("invalid_escrow_fee")
	ErrInvalidLabel      = errors.New("invalid_fee_config_label")
)

type Service interface {
	Create(ctx context.Context, input CreateInput) (FeeConfig, error)
	List(ctx context.Context) ([]FeeConfig, error)
	GetByID(ctx context.Context, id snowflake.ID) (FeeConfig, error)
	// GetActive returns the single ACTIVE config, served through the
	// read-through cache. Fails with ErrNoActiveConfig when none exists.
	GetActive(ctx context.Context) (FeeConfig, error)
	// Activate flips the target config to ACTIVE and archives any previously
	// active config in the same transaction.
	Activate(ctx context.Context, id snowflake.ID) (FeeConfig, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cfg *FeeConfig) error
	List(ctx context.Context, db *gorm.DB) ([]FeeConfig, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FeeConfig, error)
	FindActive(ctx context.Context, db *gorm.DB) (*FeeConfig, error)
	ArchiveActive(ctx context.Context, db *gorm.DB, exceptID snowflake.ID, now time.Time) error
	ActivateDraft(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}

// Validate rejects out-of-range percentages and inverted order value bounds.
func (in CreateInput) Validate() error {
	if in.Label == "" {
		return ErrInvalidLabel
	}
	for _, pct := range []float64{in.PlatformCommissionPct, in.SellerPayoutFeePct, in.BuyerProcessingFeePct} {
		if pct < 0 || pct > 100 {
			return ErrInvalidPercentage
		}
	}
	if in.EscrowFeeMinor < 0 {
		return ErrInvalidEscrowFee
	}
	if in.MinimumOrderValueMinor < 0 || in.MaximumOrderValueMinor < 0 {
		return ErrInvalidBounds
	}
	if in.MaximumOrderValueMinor > 0 && in.MinimumOrderValueMinor > in.MaximumOrderValueMinor {
		return ErrInvalidBounds
	}
	return nil
}
