package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kraalmart/kraalmart/internal/audit"
	auditdomain "github.com/kraalmart/kraalmart/internal/audit/domain"
	"github.com/kraalmart/kraalmart/internal/checkout"
	checkoutdomain "github.com/kraalmart/kraalmart/internal/checkout/domain"
	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/config"
	"github.com/kraalmart/kraalmart/internal/escrow"
	escrowdomain "github.com/kraalmart/kraalmart/internal/escrow/domain"
	"github.com/kraalmart/kraalmart/internal/feeconfig"
	feeconfigdomain "github.com/kraalmart/kraalmart/internal/feeconfig/domain"
	"github.com/kraalmart/kraalmart/internal/notification"
	"github.com/kraalmart/kraalmart/internal/observability"
	obsmiddleware "github.com/kraalmart/kraalmart/internal/observability/logger"
	obsmetrics "github.com/kraalmart/kraalmart/internal/observability/metrics"
	obstracing "github.com/kraalmart/kraalmart/internal/observability/tracing"
	"github.com/kraalmart/kraalmart/internal/order"
	orderdomain "github.com/kraalmart/kraalmart/internal/order/domain"
	"github.com/kraalmart/kraalmart/internal/payment"
	paymentdomain "github.com/kraalmart/kraalmart/internal/payment/domain"
	"github.com/kraalmart/kraalmart/internal/providers"
	"github.com/kraalmart/kraalmart/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	providers.Module,
	notification.Module,
	feeconfig.Module,
	order.Module,
	payment.Module,
	escrow.Module,
	checkout.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal"
	}
	return payload.Type, payload.Message
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	clk         clock.Clock
	checkoutSvc checkoutdomain.Service
	feeConfig   feeconfigdomain.Service
	orderRepo   orderdomain.Repository
	escrowSvc   escrowdomain.Service
	webhookSvc  paymentdomain.WebhookService
	auditSvc    auditdomain.Service
	limiter     *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	Clk         clock.Clock
	CheckoutSvc checkoutdomain.Service
	FeeConfig   feeconfigdomain.Service
	OrderRepo   orderdomain.Repository
	EscrowSvc   escrowdomain.Service
	WebhookSvc  paymentdomain.WebhookService
	AuditSvc    auditdomain.Service
	Limiter     *ratelimit.Limiter
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		clk:         p.Clk,
		checkoutSvc: p.CheckoutSvc,
		feeConfig:   p.FeeConfig,
		orderRepo:   p.OrderRepo,
		escrowSvc:   p.EscrowSvc,
		webhookSvc:  p.WebhookSvc,
		auditSvc:    p.AuditSvc,
		limiter:     p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/checkout/preview", s.RateLimit("checkout_preview"), s.PreviewCheckout)
	api.POST("/checkout", s.RateLimit("checkout_create"), s.CreateCheckout)
	api.GET("/fees/breakdown", s.RateLimit("checkout_preview"), s.GetFeeBreakdown)
	api.GET("/fees/active", s.GetActiveFeeConfig)
	api.GET("/orders/:id", s.GetOrder)
	api.GET("/orders/:id/escrow", s.GetOrderEscrow)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payment/:provider", s.RateLimit("payment_webhook"), s.HandlePaymentWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/v1/admin", s.AdminRequired())

	admin.POST("/fee-configs", s.CreateFeeConfig)
	admin.GET("/fee-configs", s.ListFeeConfigs)
	admin.GET("/fee-configs/:id", s.GetFeeConfig)
	admin.POST("/fee-configs/:id/activate", s.ActivateFeeConfig)

	admin.GET("/escrows", s.ListEscrows)
	admin.POST("/escrows/:orderId/release", s.ReleaseEscrow)
	admin.POST("/escrows/:orderId/refund", s.RefundEscrow)

	admin.GET("/audit-logs", s.ListAuditLogs)
}
