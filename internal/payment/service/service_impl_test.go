package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/kraalmart/kraalmart/internal/audit/domain"
	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/config"
	escrowdomain "github.com/kraalmart/kraalmart/internal/escrow/domain"
	"github.com/kraalmart/kraalmart/internal/payment/adapters"
	"github.com/kraalmart/kraalmart/internal/payment/adapters/paystack"
	paymentdomain "github.com/kraalmart/kraalmart/internal/payment/domain"
	"github.com/kraalmart/kraalmart/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "sk_test_webhook"

type settlementCall struct {
	kind    string
	orderID snowflake.ID
	reason  string
}

type fakeSettlement struct {
	calls   []settlementCall
	failErr error
}

func (f *fakeSettlement) HandleSuccessfulPayment(ctx context.Context, orderID snowflake.ID, reference string, amountMinor int64, currency string) error {
	f.calls = append(f.calls, settlementCall{kind: "success", orderID: orderID})
	return f.failErr
}

func (f *fakeSettlement) HandleFailedPayment(ctx context.Context, orderID snowflake.ID, reason string) error {
	f.calls = append(f.calls, settlementCall{kind: "failed", orderID: orderID, reason: reason})
	return f.failErr
}

func (f *fakeSettlement) Release(ctx context.Context, orderID snowflake.ID, actor string) (escrowdomain.Escrow, error) {
	return escrowdomain.Escrow{}, nil
}

func (f *fakeSettlement) Refund(ctx context.Context, orderID snowflake.ID, actor, reason string) (escrowdomain.Escrow, error) {
	f.calls = append(f.calls, settlementCall{kind: "refund", orderID: orderID, reason: reason})
	if f.failErr != nil {
		return escrowdomain.Escrow{}, f.failErr
	}
	return escrowdomain.Escrow{OrderID: orderID, Status: escrowdomain.StatusRefunded}, nil
}

func (f *fakeSettlement) GetByOrderID(ctx context.Context, orderID snowflake.ID) (escrowdomain.Escrow, error) {
	return escrowdomain.Escrow{}, escrowdomain.ErrNotFound
}

func (f *fakeSettlement) List(ctx context.Context, status string, limit int) ([]escrowdomain.Escrow, error) {
	return nil, nil
}

type auditCall struct {
	action   string
	metadata map[string]any
}

type recordingAudit struct {
	calls []auditCall
}

func (r *recordingAudit) Record(ctx context.Context, action, targetType, targetID string, metadata map[string]any) error {
	r.calls = append(r.calls, auditCall{action: action, metadata: metadata})
	return nil
}

func (r *recordingAudit) List(ctx context.Context, filter auditdomain.ListFilter) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type webhookFixture struct {
	svc        paymentdomain.WebhookService
	settlement *fakeSettlement
	audit      *recordingAudit
	db         *gorm.DB
}

func newWebhookFixture(t *testing.T) (paymentdomain.WebhookService, *fakeSettlement, *gorm.DB) {
	f := newWebhookFixtureFull(t)
	return f.svc, f.settlement, f.db
}

func newWebhookFixtureFull(t *testing.T) webhookFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paymentdomain.EventRecord{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	adapter := paystack.New(config.PaystackConfig{SecretKey: testSecret, Timeout: 5 * time.Second})
	settlement := &fakeSettlement{}
	audit := &recordingAudit{}

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clk:      clock.NewFakeClock(time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Registry: adapters.NewRegistry(adapter),
		Escrow:   settlement,
		Audit:    audit,
	})
	return webhookFixture{svc: svc, settlement: settlement, audit: audit, db: db}
}

func chargeSuccessBody(orderIDs ...string) []byte {
	ids := ""
	for i, id := range orderIDs {
		if i > 0 {
			ids += ","
		}
		ids += fmt.Sprintf("%q", id)
	}
	return []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"reference":"km_ref_1","amount":111105,"currency":"ZAR","metadata":{"order_ids":[%s]}}}`,
		ids,
	))
}

func TestIngest_ChargeSuccess(t *testing.T) {
	svc, settlement, db := newWebhookFixture(t)
	body := chargeSuccessBody("1111", "2222")

	result, err := svc.Ingest(context.Background(), "paystack", body, sign(body))
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, paymentdomain.EventChargeSuccess, result.EventType)
	require.Len(t, result.OrderIDs, 2)

	// One settlement call per order in the cart.
	require.Len(t, settlement.calls, 2)
	assert.Equal(t, "success", settlement.calls[0].kind)
	assert.Equal(t, snowflake.ID(1111), settlement.calls[0].orderID)
	assert.Equal(t, snowflake.ID(2222), settlement.calls[1].orderID)

	var record paymentdomain.EventRecord
	require.NoError(t, db.Table("payment_events").Where("provider = ?", "paystack").First(&record).Error)
	assert.Equal(t, paymentdomain.EventChargeSuccess, record.EventType)
	require.NotNil(t, record.ProcessedAt)
}

func TestIngest_DuplicateDelivery(t *testing.T) {
	svc, settlement, db := newWebhookFixture(t)
	body := chargeSuccessBody("1111")

	first, err := svc.Ingest(context.Background(), "paystack", body, sign(body))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.Ingest(context.Background(), "paystack", body, sign(body))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	var count int64
	require.NoError(t, db.Table("payment_events").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Redelivery re-runs the idempotent handlers.
	assert.Len(t, settlement.calls, 2)
}

func TestIngest_RejectsBadSignature(t *testing.T) {
	svc, settlement, db := newWebhookFixture(t)
	body := chargeSuccessBody("1111")

	_, err := svc.Ingest(context.Background(), "paystack", body, "deadbeef")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = svc.Ingest(context.Background(), "paystack", body, "")
	assert.ErrorIs(t, err, paymentdomain.ErrMissingSignature)

	var count int64
	require.NoError(t, db.Table("payment_events").Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, settlement.calls)
}

func TestIngest_BadSignatureWritesAuditTrail(t *testing.T) {
	f := newWebhookFixtureFull(t)
	body := chargeSuccessBody("1111")

	_, err := f.svc.Ingest(context.Background(), "paystack", body, "deadbeef")
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	require.Len(t, f.audit.calls, 1)
	call := f.audit.calls[0]
	assert.Equal(t, "payment.signature_rejected", call.action)

	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), call.metadata["payload_sha256"])
	assert.NotEmpty(t, call.metadata["reason"])
}

func TestIngest_UnknownProvider(t *testing.T) {
	svc, _, _ := newWebhookFixture(t)
	_, err := svc.Ingest(context.Background(), "stripe", []byte(`{}`), "sig")
	assert.ErrorIs(t, err, paymentdomain.ErrProviderUnknown)
}

func TestIngest_IgnoredEventType(t *testing.T) {
	svc, settlement, _ := newWebhookFixture(t)
	body := []byte(`{"event":"transfer.success","data":{"reference":"km_x"}}`)

	_, err := svc.Ingest(context.Background(), "paystack", body, sign(body))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
	assert.Empty(t, settlement.calls)
}

func TestIngest_ChargeFailed(t *testing.T) {
	svc, settlement, _ := newWebhookFixture(t)
	body := []byte(`{"event":"charge.failed","data":{"reference":"km_ref_2","amount":5000,"currency":"ZAR","gateway_response":"Insufficient funds","metadata":{"order_ids":["3333"]}}}`)

	result, err := svc.Ingest(context.Background(), "paystack", body, sign(body))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.EventChargeFailed, result.EventType)

	require.Len(t, settlement.calls, 1)
	assert.Equal(t, "failed", settlement.calls[0].kind)
	assert.Equal(t, "Insufficient funds", settlement.calls[0].reason)
}

func TestIngest_RefundAlreadySettledIsNoOp(t *testing.T) {
	svc, settlement, _ := newWebhookFixture(t)
	settlement.failErr = escrowdomain.ErrNoHeldEscrow
	body := []byte(`{"event":"refund.processed","data":{"reference":"km_ref_3","amount":5000,"currency":"ZAR","metadata":{"order_ids":["4444"]}}}`)

	_, err := svc.Ingest(context.Background(), "paystack", body, sign(body))
	require.NoError(t, err)
	require.Len(t, settlement.calls, 1)
	assert.Equal(t, "refund", settlement.calls[0].kind)
}
