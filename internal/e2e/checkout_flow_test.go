package e2e

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/kraalmart/kraalmart/internal/audit/domain"
	auditrepo "github.com/kraalmart/kraalmart/internal/audit/repository"
	auditservice "github.com/kraalmart/kraalmart/internal/audit/service"
	checkoutdomain "github.com/kraalmart/kraalmart/internal/checkout/domain"
	checkoutservice "github.com/kraalmart/kraalmart/internal/checkout/service"
	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/config"
	escrowdomain "github.com/kraalmart/kraalmart/internal/escrow/domain"
	escrowrepo "github.com/kraalmart/kraalmart/internal/escrow/repository"
	escrowservice "github.com/kraalmart/kraalmart/internal/escrow/service"
	feeconfigdomain "github.com/kraalmart/kraalmart/internal/feeconfig/domain"
	feeconfigrepo "github.com/kraalmart/kraalmart/internal/feeconfig/repository"
	feeconfigservice "github.com/kraalmart/kraalmart/internal/feeconfig/service"
	"github.com/kraalmart/kraalmart/internal/notification"
	orderdomain "github.com/kraalmart/kraalmart/internal/order/domain"
	orderrepo "github.com/kraalmart/kraalmart/internal/order/repository"
	"github.com/kraalmart/kraalmart/internal/payment/adapters"
	"github.com/kraalmart/kraalmart/internal/payment/adapters/paystack"
	paymentdomain "github.com/kraalmart/kraalmart/internal/payment/domain"
	paymentrepo "github.com/kraalmart/kraalmart/internal/payment/repository"
	paymentservice "github.com/kraalmart/kraalmart/internal/payment/service"
	"github.com/kraalmart/kraalmart/internal/ratelimit"
	"github.com/kraalmart/kraalmart/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	adminToken     = "e2e-admin-token"
	paystackSecret = "sk_test_e2e"
)

type capturingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *capturingNotifier) Notify(ctx context.Context, event notification.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *capturingNotifier) byType(eventType string) []notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var matched []notification.Event
	for _, event := range n.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type env struct {
	srv    *server.Server
	db     *gorm.DB
	notify *capturingNotifier
}

// newEnv assembles the real service stack on an in-memory database, with
// the gateway pointed at a stub that accepts every transaction.
func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&feeconfigdomain.FeeConfig{},
		&orderdomain.Order{},
		&escrowdomain.Escrow{},
		&paymentdomain.EventRecord{},
		&auditdomain.AuditLog{},
	))

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/e2e","access_code":"e2e_access","reference":"e2e_ref"}}`)
	}))
	t.Cleanup(gateway.Close)

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)

	clk := clock.NewSystemClock()
	log := zap.NewNop()
	notify := &capturingNotifier{}

	cfg := config.Config{
		AdminToken:      adminToken,
		DefaultCurrency: "ZAR",
		Paystack: config.PaystackConfig{
			SecretKey: paystackSecret,
			BaseURL:   gateway.URL,
			Timeout:   5 * time.Second,
		},
	}

	registry := adapters.NewRegistry(paystack.New(cfg.Paystack))
	orders := orderrepo.Provide()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clk: clk,
		Repo: auditrepo.Provide(),
	})
	feeConfigSvc := feeconfigservice.NewService(feeconfigservice.Params{
		DB: db, Log: log, GenID: node, Clk: clk,
		Cfg:  config.Config{FeeConfigCacheTTL: time.Minute},
		Repo: feeconfigrepo.Provide(),
	})
	escrowSvc := escrowservice.NewService(escrowservice.Params{
		DB: db, Log: log, GenID: node, Clk: clk,
		Repo:      escrowrepo.Provide(),
		OrderRepo: orders,
		Audit:     auditSvc,
		Notify:    notify,
	})
	webhookSvc := paymentservice.NewService(paymentservice.Params{
		DB: db, Log: log, GenID: node, Clk: clk,
		Repo:     paymentrepo.Provide(),
		Registry: registry,
		Escrow:   escrowSvc,
		Audit:    auditSvc,
	})
	checkoutSvc := checkoutservice.NewService(checkoutservice.Params{
		DB: db, Log: log, GenID: node, Clk: clk,
		Cfg:       cfg,
		FeeConfig: feeConfigSvc,
		OrderRepo: orders,
		Registry:  registry,
		Audit:     auditSvc,
	})

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())

	srv := server.NewServer(server.ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		DB:          db,
		GenID:       node,
		Clk:         clk,
		CheckoutSvc: checkoutSvc,
		FeeConfig:   feeConfigSvc,
		OrderRepo:   orders,
		EscrowSvc:   escrowSvc,
		WebhookSvc:  webhookSvc,
		AuditSvc:    auditSvc,
		Limiter:     ratelimit.NewLimiter(ratelimit.NewMemoryStore(), log, clk, nil),
	})

	return &env{srv: srv, db: db, notify: notify}
}

func (e *env) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(w, req)
	return w
}

func (e *env) admin(method, path, body string) *httptest.ResponseRecorder {
	return e.do(method, path, body, map[string]string{"X-Admin-Token": adminToken})
}

func signBody(body string) string {
	mac := hmac.New(sha512.New, []byte(paystackSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func (e *env) webhook(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(http.MethodPost, "/webhooks/payment/paystack", body, map[string]string{
		paystack.SignatureHeader: signBody(body),
	})
}

func (e *env) activateFeeConfig(t *testing.T) {
	t.Helper()

	w := e.admin(http.MethodPost, "/api/v1/admin/fee-configs", `{
		"label": "standard",
		"platform_commission_pct": 10,
		"seller_payout_fee_pct": 2.5,
		"buyer_processing_fee_pct": 1.5,
		"escrow_fee_minor": 2500,
		"minimum_order_value_minor": 50000,
		"maximum_order_value_minor": 50000000,
		"created_by": "ops@example.com"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created feeconfigdomain.FeeConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = e.admin(http.MethodPost, "/api/v1/admin/fee-configs/"+created.ID.String()+"/activate", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCheckoutToReleaseFlow(t *testing.T) {
	e := newEnv(t)
	e.activateFeeConfig(t)

	// Buyer checks out a two-seller cart.
	w := e.do(http.MethodPost, "/api/v1/checkout", `{
		"buyer_id": "100200300",
		"email": "buyer@example.com",
		"cart": [
			{"seller_id": "111", "merch_subtotal_minor": 90000, "delivery_minor": 5000, "species": "cattle"},
			{"seller_id": "222", "merch_subtotal_minor": 60000, "abattoir_minor": 2000, "species": "sheep"}
		]
	}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var checkout checkoutdomain.CheckoutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checkout))
	require.Len(t, checkout.Orders, 2)
	assert.Equal(t, "https://checkout.paystack.com/e2e", checkout.AuthorizationURL)
	assert.NotEmpty(t, checkout.Reference)

	// Gateway confirms the charge for the whole cart.
	orderIDs := []string{checkout.Orders[0].OrderID.String(), checkout.Orders[1].OrderID.String()}
	body := fmt.Sprintf(`{
		"event": "charge.success",
		"data": {
			"reference": %q,
			"amount": 170000,
			"currency": "ZAR",
			"metadata": {"order_ids": [%q, %q]}
		}
	}`, checkout.Reference, orderIDs[0], orderIDs[1])

	w = e.webhook(t, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"duplicate":false`)

	// Each order is paid with its own held escrow.
	for _, id := range orderIDs {
		w = e.do(http.MethodGet, "/api/v1/orders/"+id, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var order orderdomain.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
		assert.Equal(t, orderdomain.PaymentStatusPaid, order.PaymentStatus)

		w = e.do(http.MethodGet, "/api/v1/orders/"+id+"/escrow", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var escrow escrowdomain.Escrow
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &escrow))
		assert.Equal(t, escrowdomain.StatusHeld, escrow.Status)
		assert.Equal(t, order.TotalAmountMinor, escrow.AmountMinor)
	}

	// Redelivery is acknowledged without opening a second escrow.
	w = e.webhook(t, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicate":true`)

	var escrowCount int64
	require.NoError(t, e.db.Raw(`SELECT COUNT(*) FROM escrows`).Scan(&escrowCount).Error)
	assert.Equal(t, int64(2), escrowCount)

	assert.Len(t, e.notify.byType(notification.EventPaymentReceived), 2)

	// Admin releases the first escrow after delivery is confirmed.
	w = e.admin(http.MethodPost, "/api/v1/admin/escrows/"+orderIDs[0]+"/release", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var released escrowdomain.Escrow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &released))
	assert.Equal(t, escrowdomain.StatusReleased, released.Status)

	// A second release attempt conflicts.
	w = e.admin(http.MethodPost, "/api/v1/admin/escrows/"+orderIDs[0]+"/release", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// The other escrow is refunded with a reason.
	w = e.admin(http.MethodPost, "/api/v1/admin/escrows/"+orderIDs[1]+"/refund", `{"reason":"animal_not_delivered"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var refunded escrowdomain.Escrow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refunded))
	assert.Equal(t, escrowdomain.StatusRefunded, refunded.Status)
	assert.Equal(t, "animal_not_delivered", refunded.RefundReason)

	// The settlement trail is queryable.
	w = e.admin(http.MethodGet, "/api/v1/admin/audit-logs?action=escrow.released", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "escrow.released")
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	e := newEnv(t)
	e.activateFeeConfig(t)

	body := `{"event":"charge.success","data":{"reference":"km_x","metadata":{"order_ids":["1"]}}}`
	signature := signBody(body)

	w := e.do(http.MethodPost, "/webhooks/payment/paystack", body+" ", map[string]string{
		paystack.SignatureHeader: signature,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var eventCount int64
	require.NoError(t, e.db.Raw(`SELECT COUNT(*) FROM payment_events`).Scan(&eventCount).Error)
	assert.Zero(t, eventCount)
}

func TestCheckoutBelowMinimumRejected(t *testing.T) {
	e := newEnv(t)
	e.activateFeeConfig(t)

	w := e.do(http.MethodPost, "/api/v1/checkout/preview", `{
		"cart": [{"seller_id": "111", "merch_subtotal_minor": 100}]
	}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "amount_below_minimum")
}
