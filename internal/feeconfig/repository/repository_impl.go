package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kraalmart/kraalmart/internal/feeconfig/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cfg *domain.FeeConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO fee_configs (
			id, label, platform_commission_pct, seller_payout_fee_pct,
			buyer_processing_fee_pct, escrow_fee_minor,
			minimum_order_value_minor, maximum_order_value_minor,
			status, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID,
		cfg.Label,
		cfg.PlatformCommissionPct,
		cfg.SellerPayoutFeePct,
		cfg.BuyerProcessingFeePct,
		cfg.EscrowFeeMinor,
		cfg.MinimumOrderValueMinor,
		cfg.MaximumOrderValueMinor,
		cfg.Status,
		cfg.CreatedBy,
		cfg.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.FeeConfig, error) {
	var items []domain.FeeConfig
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM fee_configs ORDER BY created_at DESC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FeeConfig, error) {
	var item domain.FeeConfig
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM fee_configs WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB) (*domain.FeeConfig, error) {
	var item domain.FeeConfig
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM fee_configs WHERE status = ? LIMIT 1`,
		domain.StatusActive,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ArchiveActive(ctx context.Context, db *gorm.DB, exceptID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE fee_configs
		 SET status = ?, archived_at = ?
		 WHERE status = ? AND id <> ?`,
		domain.StatusArchived,
		now,
		domain.StatusActive,
		exceptID,
	).Error
}

// ActivateDraft flips a draft config to active. The status predicate makes
// the update a compare-and-swap; callers must check the returned flag.
func (r *repo) ActivateDraft(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE fee_configs
		 SET status = ?, activated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusActive,
		now,
		id,
		domain.StatusDraft,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
