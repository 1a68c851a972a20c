package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kraalmart/kraalmart/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, buyer_id, buyer_email, seller_id, items, currency, total_amount_minor,
			fee_config_id, payment_status, order_status, delivery_status,
			reference, failure_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.BuyerID,
		order.BuyerEmail,
		order.SellerID,
		order.Items,
		order.Currency,
		order.TotalAmountMinor,
		order.FeeConfigID,
		order.PaymentStatus,
		order.OrderStatus,
		order.DeliveryStatus,
		order.Reference,
		order.FailureReason,
		order.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders WHERE id = ? LIMIT 1`,
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

func (r *repo) SetReference(ctx context.Context, db *gorm.DB, id snowflake.ID, reference string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET reference = ? WHERE id = ?`,
		reference,
		id,
	).Error
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?, paid_at = ?
		 WHERE id = ? AND payment_status = ?`,
		domain.PaymentStatusPaid,
		paidAt,
		id,
		domain.PaymentStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkPaymentFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?, failure_reason = ?
		 WHERE id = ? AND payment_status = ?`,
		domain.PaymentStatusFailed,
		reason,
		id,
		domain.PaymentStatusPending,
	).Error
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, completedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET order_status = ?, completed_at = ?
		 WHERE id = ?`,
		domain.OrderStatusCompleted,
		completedAt,
		id,
	).Error
}

func (r *repo) ExpireStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?, failure_reason = ?
		 WHERE id IN (
			SELECT id FROM orders
			WHERE payment_status = ? AND created_at < ?
			ORDER BY created_at
			LIMIT ?
		 )`,
		domain.PaymentStatusFailed,
		"payment_timeout",
		domain.PaymentStatusPending,
		cutoff,
		limit,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?
		 WHERE id = ?`,
		domain.PaymentStatusRefunded,
		id,
	).Error
}
