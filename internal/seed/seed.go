package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	feeconfigdomain "github.com/kraalmart/kraalmart/internal/feeconfig/domain"
	"gorm.io/gorm"
)

const defaultLabel = "standard"

// EnsureDefaultFeeConfig seeds an active fee config for development
// bootstrap. Production rates are created and activated through the admin
// API; this only runs when no active config exists at all.
func EnsureDefaultFeeConfig(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(*) FROM fee_configs WHERE status = ?`,
			feeconfigdomain.StatusActive,
		).Scan(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		cfg := feeconfigdomain.FeeConfig{
			ID:                     node.Generate(),
			Label:                  defaultLabel,
			PlatformCommissionPct:  10,
			SellerPayoutFeePct:     2.5,
			BuyerProcessingFeePct:  1.5,
			EscrowFeeMinor:         2500,
			MinimumOrderValueMinor: 50000,
			MaximumOrderValueMinor: 50000000,
			Status:                 feeconfigdomain.StatusActive,
			CreatedBy:              "seed",
			CreatedAt:              now,
			ActivatedAt:            &now,
		}
		return tx.WithContext(ctx).Create(&cfg).Error
	})
}
