package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	auditdomain "github.com/kraalmart/kraalmart/internal/audit/domain"
	"github.com/kraalmart/kraalmart/internal/clock"
	orderdomain "github.com/kraalmart/kraalmart/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Orders   orderdomain.Repository
	AuditSvc auditdomain.Service
	Config   Config `optional:"true"`
}

// Scheduler sweeps orders that were created at checkout but never paid.
// The gateway stops retrying a stale transaction after a day, so a pending
// order past the TTL will never see a charge.success webhook.
type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	orders   orderdomain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Orders == nil || p.AuditSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		orders:   p.Orders,
		auditSvc: p.AuditSvc,
	}, nil
}

// RunForever sweeps on the configured interval until the context is
// cancelled. Each run is guarded so a panic cannot kill the loop.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runGuarded(ctx); err != nil {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) runGuarded(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
		}
	}()
	return s.RunOnce(ctx)
}

// RunOnce expires one batch of stale pending orders.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.PendingOrderTTL)

	expired, err := s.orders.ExpireStalePending(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if expired == 0 {
		return nil
	}

	s.log.Info("expired stale pending orders",
		zap.Int64("count", expired),
		zap.Time("cutoff", cutoff),
	)
	if err := s.auditSvc.Record(ctx, "order.payment_expired", "order", "", map[string]any{
		"count":  expired,
		"cutoff": cutoff.Format(time.RFC3339),
	}); err != nil {
		s.log.Warn("audit record failed", zap.Error(err))
	}
	return nil
}
