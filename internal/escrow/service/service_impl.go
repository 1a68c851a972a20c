package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kraalmart/kraalmart/internal/audit/domain"
	"github.com/kraalmart/kraalmart/internal/clock"
	escrowdomain "github.com/kraalmart/kraalmart/internal/escrow/domain"
	"github.com/kraalmart/kraalmart/internal/notification"
	"github.com/kraalmart/kraalmart/internal/observability/metrics"
	orderdomain "github.com/kraalmart/kraalmart/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clk       clock.Clock
	Repo      escrowdomain.Repository
	OrderRepo orderdomain.Repository
	Audit     auditdomain.Service
	Notify    notification.Dispatcher
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clk       clock.Clock
	repo      escrowdomain.Repository
	orderRepo orderdomain.Repository
	audit     auditdomain.Service
	notify    notification.Dispatcher
	metrics   *metrics.Metrics
}

func NewService(p Params) escrowdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("escrow.service"),
		genID:     p.GenID,
		clk:       p.Clk,
		repo:      p.Repo,
		orderRepo: p.OrderRepo,
		audit:     p.Audit,
		notify:    p.Notify,
		metrics:   p.Metrics,
	}
}

func (s *Service) HandleSuccessfulPayment(ctx context.Context, orderID snowflake.ID, reference string, amountMinor int64, currency string) error {
	now := s.clk.Now()

	var (
		inserted bool
		order    *orderdomain.Order
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrNotFound
		}

		escrow := escrowdomain.Escrow{
			ID:          s.genID.Generate(),
			OrderID:     orderID,
			Reference:   reference,
			AmountMinor: amountMinor,
			Currency:    currency,
			CreatedAt:   now,
		}
		if escrow.AmountMinor == 0 {
			escrow.AmountMinor = order.TotalAmountMinor
		}
		if escrow.Currency == "" {
			escrow.Currency = order.Currency
		}

		inserted, err = s.repo.InsertHeld(ctx, tx, &escrow)
		if err != nil {
			return err
		}

		if _, err := s.orderRepo.MarkPaid(ctx, tx, orderID, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !inserted {
		s.log.Info("escrow already held, skipping replayed payment",
			zap.Int64("order_id", int64(orderID)),
			zap.String("reference", reference),
		)
		return nil
	}

	s.metrics.RecordEscrowTransition(ctx, "held")
	s.log.Info("escrow held",
		zap.Int64("order_id", int64(orderID)),
		zap.String("reference", reference),
		zap.Int64("amount_minor", amountMinor),
	)

	_ = s.audit.Record(ctx, "escrow.held", "order", orderID.String(), map[string]any{
		"reference":    reference,
		"amount_minor": amountMinor,
		"currency":     currency,
	})
	s.notify.Notify(ctx, notification.Event{
		Type:        notification.EventPaymentReceived,
		Recipient:   order.BuyerEmail,
		OrderID:     orderID,
		Reference:   reference,
		AmountMinor: amountMinor,
		Currency:    currency,
	})
	return nil
}

func (s *Service) HandleFailedPayment(ctx context.Context, orderID snowflake.ID, reason string) error {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return orderdomain.ErrNotFound
	}

	if err := s.orderRepo.MarkPaymentFailed(ctx, s.db, orderID, reason); err != nil {
		return err
	}

	s.log.Info("payment failed",
		zap.Int64("order_id", int64(orderID)),
		zap.String("reason", reason),
	)
	_ = s.audit.Record(ctx, "payment.failed", "order", orderID.String(), map[string]any{
		"reason": reason,
	})
	s.notify.Notify(ctx, notification.Event{
		Type:      notification.EventPaymentFailed,
		Recipient: order.BuyerEmail,
		OrderID:   orderID,
		Currency:  order.Currency,
		Reason:    reason,
	})
	return nil
}

func (s *Service) Release(ctx context.Context, orderID snowflake.ID, actor string) (escrowdomain.Escrow, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return escrowdomain.Escrow{}, escrowdomain.ErrInvalidActor
	}
	now := s.clk.Now()

	var escrow *escrowdomain.Escrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		released, err := s.repo.Release(ctx, tx, orderID, actor, now)
		if err != nil {
			return err
		}
		if !released {
			existing, err := s.repo.FindByOrderID(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if existing == nil {
				return escrowdomain.ErrNotFound
			}
			return escrowdomain.ErrNoHeldEscrow
		}

		if err := s.orderRepo.MarkCompleted(ctx, tx, orderID, now); err != nil {
			return err
		}

		escrow, err = s.repo.FindByOrderID(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return escrowdomain.Escrow{}, err
	}

	s.metrics.RecordEscrowTransition(ctx, "released")
	s.log.Info("escrow released",
		zap.Int64("order_id", int64(orderID)),
		zap.String("actor", actor),
	)
	_ = s.audit.Record(ctx, "escrow.released", "order", orderID.String(), map[string]any{
		"actor":        actor,
		"amount_minor": escrow.AmountMinor,
	})
	s.notify.Notify(ctx, notification.Event{
		Type:        notification.EventEscrowReleased,
		OrderID:     orderID,
		Reference:   escrow.Reference,
		AmountMinor: escrow.AmountMinor,
		Currency:    escrow.Currency,
	})
	return *escrow, nil
}

func (s *Service) Refund(ctx context.Context, orderID snowflake.ID, actor, reason string) (escrowdomain.Escrow, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return escrowdomain.Escrow{}, escrowdomain.ErrInvalidActor
	}
	reason = strings.TrimSpace(reason)
	now := s.clk.Now()

	var (
		escrow *escrowdomain.Escrow
		order  *orderdomain.Order
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refunded, err := s.repo.Refund(ctx, tx, orderID, actor, reason, now)
		if err != nil {
			return err
		}
		if !refunded {
			existing, err := s.repo.FindByOrderID(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if existing == nil {
				return escrowdomain.ErrNotFound
			}
			return escrowdomain.ErrNoHeldEscrow
		}

		if err := s.orderRepo.MarkRefunded(ctx, tx, orderID); err != nil {
			return err
		}

		order, err = s.orderRepo.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		escrow, err = s.repo.FindByOrderID(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return escrowdomain.Escrow{}, err
	}

	s.metrics.RecordEscrowTransition(ctx, "refunded")
	s.log.Info("escrow refunded",
		zap.Int64("order_id", int64(orderID)),
		zap.String("actor", actor),
		zap.String("reason", reason),
	)
	_ = s.audit.Record(ctx, "escrow.refunded", "order", orderID.String(), map[string]any{
		"actor":        actor,
		"reason":       reason,
		"amount_minor": escrow.AmountMinor,
	})

	recipient := ""
	if order != nil {
		recipient = order.BuyerEmail
	}
	s.notify.Notify(ctx, notification.Event{
		Type:        notification.EventEscrowRefunded,
		Recipient:   recipient,
		OrderID:     orderID,
		Reference:   escrow.Reference,
		AmountMinor: escrow.AmountMinor,
		Currency:    escrow.Currency,
		Reason:      reason,
	})
	return *escrow, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID snowflake.ID) (escrowdomain.Escrow, error) {
	escrow, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return escrowdomain.Escrow{}, err
	}
	if escrow == nil {
		return escrowdomain.Escrow{}, escrowdomain.ErrNotFound
	}
	return *escrow, nil
}

func (s *Service) List(ctx context.Context, status string, limit int) ([]escrowdomain.Escrow, error) {
	return s.repo.ListByStatus(ctx, s.db, status, limit)
}
