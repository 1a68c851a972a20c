package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/config"
	"github.com/kraalmart/kraalmart/internal/feeconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clk   clock.Clock
	Cfg   config.Config
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clk   clock.Clock
	repo  domain.Repository
	cache *ActiveCache
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("feeconfig.service"),
		genID: p.GenID,
		clk:   p.Clk,
		repo:  p.Repo,
		cache: NewActiveCache(p.Clk, p.Cfg.FeeConfigCacheTTL),
	}
}

func (s *Service) Create(ctx context.Context, input domain.CreateInput) (domain.FeeConfig, error) {
	input.Label = strings.TrimSpace(input.Label)
	if err := input.Validate(); err != nil {
		return domain.FeeConfig{}, err
	}

	cfg := domain.FeeConfig{
		ID:                     s.genID.Generate(),
		Label:                  input.Label,
		PlatformCommissionPct:  input.PlatformCommissionPct,
		SellerPayoutFeePct:     input.SellerPayoutFeePct,
		BuyerProcessingFeePct:  input.BuyerProcessingFeePct,
		EscrowFeeMinor:         input.EscrowFeeMinor,
		MinimumOrderValueMinor: input.MinimumOrderValueMinor,
		MaximumOrderValueMinor: input.MaximumOrderValueMinor,
		Status:                 domain.StatusDraft,
		CreatedBy:              strings.TrimSpace(input.CreatedBy),
		CreatedAt:              s.clk.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &cfg); err != nil {
		return domain.FeeConfig{}, err
	}

	s.log.Info("fee config created",
		zap.String("fee_config_id", cfg.ID.String()),
		zap.String("label", cfg.Label),
	)
	return cfg, nil
}

func (s *Service) List(ctx context.Context) ([]domain.FeeConfig, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.FeeConfig, error) {
	cfg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.FeeConfig{}, err
	}
	if cfg == nil {
		return domain.FeeConfig{}, domain.ErrNotFound
	}
	return *cfg, nil
}

func (s *Service) GetActive(ctx context.Context) (domain.FeeConfig, error) {
	cfg, err := s.cache.Get(ctx, func(ctx context.Context) (*domain.FeeConfig, error) {
		return s.repo.FindActive(ctx, s.db)
	})
	if err != nil {
		return domain.FeeConfig{}, err
	}
	if cfg == nil {
		return domain.FeeConfig{}, domain.ErrNoActiveConfig
	}
	return *cfg, nil
}

func (s *Service) Activate(ctx context.Context, id snowflake.ID) (domain.FeeConfig, error) {
	now := s.clk.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.ArchiveActive(ctx, tx, id, now); err != nil {
			return err
		}
		flipped, err := s.repo.ActivateDraft(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if flipped {
			return nil
		}
		// Zero rows: either the id is unknown, already active (a retried
		// admin call), or archived.
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.Status == domain.StatusActive {
			return nil
		}
		return domain.ErrNotFound
	})
	if err != nil {
		return domain.FeeConfig{}, err
	}

	s.cache.Invalidate()

	cfg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.FeeConfig{}, err
	}
	if cfg == nil {
		return domain.FeeConfig{}, domain.ErrNotFound
	}

	s.log.Info("fee config activated",
		zap.String("fee_config_id", cfg.ID.String()),
		zap.String("label", cfg.Label),
	)
	return *cfg, nil
}
