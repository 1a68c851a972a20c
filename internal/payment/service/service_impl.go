package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kraalmart/kraalmart/internal/audit/domain"
	"github.com/kraalmart/kraalmart/internal/clock"
	escrowdomain "github.com/kraalmart/kraalmart/internal/escrow/domain"
	obscontext "github.com/kraalmart/kraalmart/internal/observability/context"
	"github.com/kraalmart/kraalmart/internal/observability/metrics"
	"github.com/kraalmart/kraalmart/internal/payment/adapters"
	paymentdomain "github.com/kraalmart/kraalmart/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clk      clock.Clock
	Repo     paymentdomain.Repository
	Registry *adapters.Registry
	Escrow   escrowdomain.Service
	Audit    auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clk      clock.Clock
	repo     paymentdomain.Repository
	registry *adapters.Registry
	escrow   escrowdomain.Service
	audit    auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.webhook"),
		genID:    p.GenID,
		clk:      p.Clk,
		repo:     p.Repo,
		registry: p.Registry,
		escrow:   p.Escrow,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

func (s *Service) Ingest(ctx context.Context, provider string, body []byte, signature string) (paymentdomain.IngestResult, error) {
	gateway, ok := s.registry.Get(provider)
	if !ok {
		return paymentdomain.IngestResult{}, paymentdomain.ErrProviderUnknown
	}

	if err := gateway.VerifySignature(body, signature); err != nil {
		sum := sha256.Sum256(body)
		payloadHash := hex.EncodeToString(sum[:])
		s.log.Warn("webhook signature rejected",
			zap.String("provider", provider),
			zap.String("payload_sha256", payloadHash),
			zap.String("source_ip", obscontext.SourceIPFromContext(ctx)),
			zap.Error(err),
		)
		if auditErr := s.audit.Record(ctx, "payment.signature_rejected", "webhook", provider, map[string]any{
			"payload_sha256": payloadHash,
			"reason":         err.Error(),
		}); auditErr != nil {
			s.log.Warn("failed to record signature rejection", zap.Error(auditErr))
		}
		return paymentdomain.IngestResult{}, err
	}

	event, err := gateway.ParseEvent(body)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Debug("webhook event ignored", zap.String("provider", provider))
		}
		return paymentdomain.IngestResult{}, err
	}

	record := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Reference:       event.Reference,
		AmountMinor:     event.AmountMinor,
		Currency:        event.Currency,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      s.clk.Now(),
	}
	if len(event.OrderIDs) == 1 {
		record.OrderID = event.OrderIDs[0]
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &record)
	if err != nil {
		return paymentdomain.IngestResult{}, err
	}

	result := paymentdomain.IngestResult{
		EventType: event.Type,
		Reference: event.Reference,
		OrderIDs:  event.OrderIDs,
		Duplicate: !inserted,
	}

	// Dispatch even for duplicates: the settlement handlers are themselves
	// idempotent, so a redelivery after a partial failure finishes the work
	// the first delivery started.
	if err := s.dispatch(ctx, event); err != nil {
		return result, err
	}

	if inserted {
		if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clk.Now()); err != nil {
			s.log.Warn("failed to mark event processed", zap.Error(err))
		}
	}

	s.metrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	s.log.Info("webhook processed",
		zap.String("provider", event.Provider),
		zap.String("event_type", event.Type),
		zap.String("reference", event.Reference),
		zap.Bool("duplicate", result.Duplicate),
	)
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, event paymentdomain.Event) error {
	for _, orderID := range event.OrderIDs {
		var err error
		switch event.Type {
		case paymentdomain.EventChargeSuccess:
			// Amount zero lets settlement hold each order's own total; the
			// charge covers the whole multi-seller cart.
			err = s.escrow.HandleSuccessfulPayment(ctx, orderID, event.Reference, 0, event.Currency)
		case paymentdomain.EventChargeFailed:
			err = s.escrow.HandleFailedPayment(ctx, orderID, event.FailureReason)
		case paymentdomain.EventRefundProcessed:
			_, err = s.escrow.Refund(ctx, orderID, event.Provider, event.FailureReason)
			if errors.Is(err, escrowdomain.ErrNoHeldEscrow) {
				// Already settled; gateway refund replays are no-ops.
				err = nil
			}
		}
		if err != nil {
			s.log.Error("settlement dispatch failed",
				zap.String("event_type", event.Type),
				zap.Int64("order_id", int64(orderID)),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}
