package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kraalmart/kraalmart/internal/config"
	paymentdomain "github.com/kraalmart/kraalmart/internal/payment/domain"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func testAdapter(secret, baseURL string) *Adapter {
	return New(config.PaystackConfig{
		SecretKey: secret,
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
	})
}

func TestVerifySignature(t *testing.T) {
	secret := "sk_test_secret"
	body := []byte(`{"event":"charge.success","data":{"reference":"km_1"}}`)
	adapter := testAdapter(secret, "")

	if err := adapter.VerifySignature(body, signBody(secret, body)); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}
	if err := adapter.VerifySignature(body, signBody("wrong_secret", body)); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := adapter.VerifySignature(body, ""); !errors.Is(err, paymentdomain.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}

	// A single flipped byte in the body invalidates the signature.
	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01
	if err := adapter.VerifySignature(tampered, signBody(secret, body)); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for tampered body, got %v", err)
	}
}

func TestParseEvent(t *testing.T) {
	adapter := testAdapter("sk_test", "")

	tests := []struct {
		name      string
		event     map[string]any
		wantType  string
		wantErr   error
		wantCount int
	}{{
		name: "charge.success",
		event: map[string]any{
			"event": "charge.success",
			"data": map[string]any{
				"reference": "km_ref_1",
				"amount":    111105,
				"currency":  "ZAR",
				"metadata":  map[string]any{"order_ids": []any{"1234567890123456789", "1234567890123456790"}},
			},
		},
		wantType:  paymentdomain.EventChargeSuccess,
		wantCount: 2,
	}, {
		name: "charge.failed",
		event: map[string]any{
			"event": "charge.failed",
			"data": map[string]any{
				"reference":        "km_ref_2",
				"amount":           5000,
				"currency":         "ZAR",
				"gateway_response": "Insufficient funds",
				"metadata":         map[string]any{"order_ids": "1234567890123456789"},
			},
		},
		wantType:  paymentdomain.EventChargeFailed,
		wantCount: 1,
	}, {
		name: "unhandled event type",
		event: map[string]any{
			"event": "transfer.success",
			"data":  map[string]any{"reference": "km_ref_3"},
		},
		wantErr: paymentdomain.ErrEventIgnored,
	}, {
		name: "missing order ids",
		event: map[string]any{
			"event": "charge.success",
			"data":  map[string]any{"reference": "km_ref_4", "metadata": map[string]any{}},
		},
		wantErr: paymentdomain.ErrMissingOrderID,
	}, {
		name: "missing reference",
		event: map[string]any{
			"event": "charge.success",
			"data":  map[string]any{"metadata": map[string]any{"order_ids": []any{"1"}}},
		},
		wantErr: paymentdomain.ErrMalformedEvent,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, err := json.Marshal(tc.event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			event, err := adapter.ParseEvent(body)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if event.Type != tc.wantType {
				t.Fatalf("expected type %s, got %s", tc.wantType, event.Type)
			}
			if len(event.OrderIDs) != tc.wantCount {
				t.Fatalf("expected %d order ids, got %d", tc.wantCount, len(event.OrderIDs))
			}
			if event.Provider != "paystack" {
				t.Fatalf("expected provider paystack, got %s", event.Provider)
			}
			if event.ProviderEventID == "" {
				t.Fatalf("expected provider event id")
			}
		})
	}
}

func TestParseEvent_DuplicateDeliveriesShareEventID(t *testing.T) {
	adapter := testAdapter("sk_test", "")
	body := []byte(`{"event":"charge.success","data":{"reference":"km_dup","amount":100,"currency":"ZAR","metadata":{"order_ids":["42"]}}}`)

	first, err := adapter.ParseEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	second, err := adapter.ParseEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if first.ProviderEventID != second.ProviderEventID {
		t.Fatalf("redelivered event changed id: %s vs %s", first.ProviderEventID, second.ProviderEventID)
	}
}

func TestInitialize(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Fatalf("missing authorization header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         "km_ref_9",
			},
		})
	}))
	defer server.Close()

	adapter := testAdapter("sk_test", server.URL)
	result, err := adapter.Initialize(context.Background(), paymentdomain.InitializeInput{
		Email:       "buyer@example.com",
		AmountMinor: 111105,
		Currency:    "ZAR",
		Reference:   "km_ref_9",
		Metadata:    map[string]any{"order_ids": []string{"42"}},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if result.AuthorizationURL != "https://checkout.paystack.com/abc123" {
		t.Fatalf("unexpected authorization url %s", result.AuthorizationURL)
	}
	if captured["amount"] != float64(111105) {
		t.Fatalf("expected minor-unit amount in request, got %v", captured["amount"])
	}
	if _, ok := captured["metadata"]; !ok {
		t.Fatalf("expected metadata forwarded to gateway")
	}
}

func TestInitialize_GatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "Invalid amount"})
	}))
	defer server.Close()

	adapter := testAdapter("sk_test", server.URL)
	_, err := adapter.Initialize(context.Background(), paymentdomain.InitializeInput{
		Email: "buyer@example.com", AmountMinor: 0, Currency: "ZAR",
	})
	if !errors.Is(err, paymentdomain.ErrPaymentInit) {
		t.Fatalf("expected ErrPaymentInit, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/km_ref_9" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"status":   "success",
				"amount":   111105,
				"currency": "ZAR",
				"paid_at":  "2026-08-25T10:30:00Z",
			},
		})
	}))
	defer server.Close()

	adapter := testAdapter("sk_test", server.URL)
	result, err := adapter.Verify(context.Background(), "km_ref_9")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Status != "success" || result.AmountMinor != 111105 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.PaidAt == nil {
		t.Fatalf("expected paid_at parsed")
	}
}
