package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kraalmart/kraalmart/internal/escrow/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// InsertHeld relies on the unique order_id index: a replayed webhook hits
// the conflict clause and affects zero rows.
func (r *repo) InsertHeld(ctx context.Context, db *gorm.DB, escrow *domain.Escrow) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO escrows (id, order_id, reference, amount_minor, currency, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (order_id) DO NOTHING`,
		escrow.ID,
		escrow.OrderID,
		escrow.Reference,
		escrow.AmountMinor,
		escrow.Currency,
		domain.StatusHeld,
		escrow.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Escrow, error) {
	var item domain.Escrow
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM escrows WHERE order_id = ? LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Release(ctx context.Context, db *gorm.DB, orderID snowflake.ID, actor string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE escrows
		 SET status = ?, released_by = ?, released_at = ?
		 WHERE order_id = ? AND status = ?`,
		domain.StatusReleased,
		actor,
		now,
		orderID,
		domain.StatusHeld,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Refund(ctx context.Context, db *gorm.DB, orderID snowflake.ID, actor, reason string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE escrows
		 SET status = ?, refunded_by = ?, refunded_at = ?, refund_reason = ?
		 WHERE order_id = ? AND status = ?`,
		domain.StatusRefunded,
		actor,
		now,
		reason,
		orderID,
		domain.StatusHeld,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status string, limit int) ([]domain.Escrow, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 250 {
		limit = 250
	}

	query := db.WithContext(ctx).Table("escrows")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var items []domain.Escrow
	err := query.Order("created_at DESC").Limit(limit).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
