package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kraalmart/kraalmart/internal/audit/domain"
	"github.com/kraalmart/kraalmart/internal/audit/masking"
	"github.com/kraalmart/kraalmart/internal/checkout/calculator"
	checkoutdomain "github.com/kraalmart/kraalmart/internal/checkout/domain"
	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/config"
	feeconfigdomain "github.com/kraalmart/kraalmart/internal/feeconfig/domain"
	"github.com/kraalmart/kraalmart/internal/observability/metrics"
	orderdomain "github.com/kraalmart/kraalmart/internal/order/domain"
	"github.com/kraalmart/kraalmart/internal/payment/adapters"
	paymentdomain "github.com/kraalmart/kraalmart/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clk       clock.Clock
	Cfg       config.Config
	FeeConfig feeconfigdomain.Service
	OrderRepo orderdomain.Repository
	Registry  *adapters.Registry
	Audit     auditdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clk       clock.Clock
	cfg       config.Config
	feeConfig feeconfigdomain.Service
	orderRepo orderdomain.Repository
	registry  *adapters.Registry
	audit     auditdomain.Service
	metrics   *metrics.Metrics
}

func NewService(p Params) checkoutdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("checkout.service"),
		genID:     p.GenID,
		clk:       p.Clk,
		cfg:       p.Cfg,
		feeConfig: p.FeeConfig,
		orderRepo: p.OrderRepo,
		registry:  p.Registry,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

func (s *Service) Preview(ctx context.Context, cart []checkoutdomain.CartLine, currency string) (checkoutdomain.CheckoutPreview, error) {
	if strings.TrimSpace(currency) == "" {
		currency = s.cfg.DefaultCurrency
	}

	active, err := s.feeConfig.GetActive(ctx)
	if err != nil {
		return checkoutdomain.CheckoutPreview{}, err
	}

	preview, err := calculator.Compute(cart, active, currency)
	if err != nil {
		return checkoutdomain.CheckoutPreview{}, err
	}

	s.metrics.RecordCheckoutPreview(ctx, preview.Currency)
	return preview, nil
}

func (s *Service) Breakdown(ctx context.Context, amountMinor int64, species string, export bool) (checkoutdomain.BreakdownResult, error) {
	if amountMinor <= 0 {
		return checkoutdomain.BreakdownResult{}, checkoutdomain.ErrInvalidAmount
	}

	active, err := s.feeConfig.GetActive(ctx)
	if err != nil {
		return checkoutdomain.BreakdownResult{}, err
	}
	if active.MinimumOrderValueMinor > 0 && amountMinor < active.MinimumOrderValueMinor {
		return checkoutdomain.BreakdownResult{}, checkoutdomain.ErrBelowMinimum
	}
	if active.MaximumOrderValueMinor > 0 && amountMinor > active.MaximumOrderValueMinor {
		return checkoutdomain.BreakdownResult{}, checkoutdomain.ErrAboveMaximum
	}

	return checkoutdomain.BreakdownResult{
		Lines:       calculator.ComputeLines(amountMinor, 0, 0, active),
		FeeConfigID: active.ID,
		Label:       active.Label,
		Currency:    s.cfg.DefaultCurrency,
	}, nil
}

// Checkout quotes the cart, persists one pending order per seller group, and
// opens a single gateway transaction for the full buyer total. The order ids
// ride on the transaction metadata so the webhook can settle each order.
func (s *Service) Checkout(ctx context.Context, input checkoutdomain.CheckoutInput) (checkoutdomain.CheckoutResult, error) {
	if input.BuyerID == 0 {
		return checkoutdomain.CheckoutResult{}, checkoutdomain.ErrInvalidBuyer
	}
	email := strings.TrimSpace(input.Email)
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return checkoutdomain.CheckoutResult{}, checkoutdomain.ErrInvalidEmail
	}

	preview, err := s.Preview(ctx, input.Cart, input.Currency)
	if err != nil {
		return checkoutdomain.CheckoutResult{}, err
	}

	reference := fmt.Sprintf("km_%s", s.genID.Generate())
	now := s.clk.Now()

	linesBySeller := map[snowflake.ID][]checkoutdomain.CartLine{}
	for _, line := range input.Cart {
		linesBySeller[line.SellerID] = append(linesBySeller[line.SellerID], line)
	}

	orders := make([]*orderdomain.Order, 0, len(preview.PerSeller))
	summaries := make([]checkoutdomain.OrderSummary, 0, len(preview.PerSeller))
	orderIDs := make([]string, 0, len(preview.PerSeller))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, seller := range preview.PerSeller {
			items, err := json.Marshal(linesBySeller[seller.SellerID])
			if err != nil {
				return err
			}

			order := &orderdomain.Order{
				ID:               s.genID.Generate(),
				BuyerID:          input.BuyerID,
				BuyerEmail:       email,
				SellerID:         seller.SellerID,
				Items:            datatypes.JSON(items),
				Currency:         preview.Currency,
				TotalAmountMinor: seller.Lines.BuyerTotalMinor,
				FeeConfigID:      preview.FeeConfigID,
				PaymentStatus:    orderdomain.PaymentStatusPending,
				OrderStatus:      orderdomain.OrderStatusCreated,
				DeliveryStatus:   orderdomain.DeliveryStatusPending,
				Reference:        reference,
				CreatedAt:        now,
			}
			if err := s.orderRepo.Insert(ctx, tx, order); err != nil {
				return err
			}

			orders = append(orders, order)
			orderIDs = append(orderIDs, order.ID.String())
			summaries = append(summaries, checkoutdomain.OrderSummary{
				OrderID:         order.ID,
				SellerID:        seller.SellerID,
				BuyerTotalMinor: seller.Lines.BuyerTotalMinor,
				SellerNetMinor:  seller.Lines.SellerNetPayoutMinor,
			})
		}
		return nil
	})
	if err != nil {
		return checkoutdomain.CheckoutResult{}, err
	}

	init, err := s.registry.Default().Initialize(ctx, paymentdomain.InitializeInput{
		Email:       email,
		AmountMinor: preview.CartTotals.BuyerTotalMinor,
		Currency:    preview.Currency,
		Reference:   reference,
		CallbackURL: s.cfg.Paystack.CallbackURL,
		Metadata:    map[string]any{"order_ids": orderIDs},
	})
	if err != nil {
		for _, order := range orders {
			if failErr := s.orderRepo.MarkPaymentFailed(ctx, s.db, order.ID, "gateway_initialization_failed"); failErr != nil {
				s.log.Error("failed to fail order after gateway error",
					zap.Int64("order_id", int64(order.ID)),
					zap.Error(failErr),
				)
			}
		}
		return checkoutdomain.CheckoutResult{}, err
	}

	s.log.Info("checkout created",
		zap.String("reference", reference),
		zap.Int("orders", len(orders)),
		zap.Int64("buyer_total_minor", preview.CartTotals.BuyerTotalMinor),
	)
	_ = s.audit.Record(ctx, "checkout.created", "checkout", reference, map[string]any{
		"buyer_id":          input.BuyerID.String(),
		"buyer_email":       masking.MaskEmail(email),
		"order_ids":         orderIDs,
		"buyer_total_minor": preview.CartTotals.BuyerTotalMinor,
		"currency":          preview.Currency,
	})

	return checkoutdomain.CheckoutResult{
		Reference:        init.Reference,
		AuthorizationURL: init.AuthorizationURL,
		Orders:           summaries,
		Preview:          preview,
	}, nil
}
