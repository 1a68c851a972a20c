// Package paystack implements the Paystack payment gateway: transaction
// initialization, verification, and webhook parsing. Webhooks are signed with
// HMAC-SHA512 over the raw body; verification runs before any JSON decoding.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kraalmart/kraalmart/internal/config"
	paymentdomain "github.com/kraalmart/kraalmart/internal/payment/domain"
)

const (
	// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
	SignatureHeader = "x-paystack-signature"

	providerName = "paystack"
)

type Adapter struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func New(cfg config.PaystackConfig) *Adapter {
	return &Adapter{
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Adapter) Name() string { return providerName }

// VerifySignature compares the header value against the HMAC-SHA512 of the
// raw body in constant time.
func (a *Adapter) VerifySignature(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return paymentdomain.ErrMissingSignature
	}

	mac := hmac.New(sha512.New, []byte(a.secretKey))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) ParseEvent(body []byte) (paymentdomain.Event, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return paymentdomain.Event{}, paymentdomain.ErrMalformedEvent
	}

	eventType := strings.TrimSpace(event.Event)
	switch eventType {
	case paymentdomain.EventChargeSuccess, paymentdomain.EventChargeFailed, paymentdomain.EventRefundProcessed:
	default:
		return paymentdomain.Event{}, paymentdomain.ErrEventIgnored
	}

	reference := strings.TrimSpace(event.Data.Reference)
	if reference == "" {
		return paymentdomain.Event{}, paymentdomain.ErrMalformedEvent
	}

	orderIDs, err := parseOrderIDs(event.Data.Metadata)
	if err != nil {
		return paymentdomain.Event{}, err
	}

	// Paystack has no top-level event id; the (event, reference) pair is
	// stable across redeliveries and serves as the idempotency key.
	return paymentdomain.Event{
		Provider:        providerName,
		ProviderEventID: eventType + ":" + reference,
		Type:            eventType,
		Reference:       reference,
		AmountMinor:     event.Data.Amount,
		Currency:        strings.ToUpper(strings.TrimSpace(event.Data.Currency)),
		OrderIDs:        orderIDs,
		FailureReason:   strings.TrimSpace(event.Data.GatewayResponse),
		RawPayload:      body,
	}, nil
}

// Initialize creates a transaction and returns the hosted payment page URL.
func (a *Adapter) Initialize(ctx context.Context, input paymentdomain.InitializeInput) (paymentdomain.InitializeResult, error) {
	payload := map[string]any{
		"email":    input.Email,
		"amount":   input.AmountMinor,
		"currency": input.Currency,
	}
	if input.Reference != "" {
		payload["reference"] = input.Reference
	}
	if input.CallbackURL != "" {
		payload["callback_url"] = input.CallbackURL
	}
	if len(input.Metadata) > 0 {
		payload["metadata"] = input.Metadata
	}

	var response struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := a.post(ctx, "/transaction/initialize", payload, &response); err != nil {
		return paymentdomain.InitializeResult{}, fmt.Errorf("%w: %v", paymentdomain.ErrPaymentInit, err)
	}
	if !response.Status {
		return paymentdomain.InitializeResult{}, fmt.Errorf("%w: %s", paymentdomain.ErrPaymentInit, response.Message)
	}

	return paymentdomain.InitializeResult{
		AuthorizationURL: response.Data.AuthorizationURL,
		AccessCode:       response.Data.AccessCode,
		Reference:        response.Data.Reference,
	}, nil
}

// Verify fetches the transaction status by reference.
func (a *Adapter) Verify(ctx context.Context, reference string) (paymentdomain.VerifyResult, error) {
	var response struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status   string `json:"status"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			PaidAt   string `json:"paid_at"`
		} `json:"data"`
	}
	if err := a.get(ctx, "/transaction/verify/"+reference, &response); err != nil {
		return paymentdomain.VerifyResult{}, fmt.Errorf("%w: %v", paymentdomain.ErrVerifyFailed, err)
	}
	if !response.Status {
		return paymentdomain.VerifyResult{}, fmt.Errorf("%w: %s", paymentdomain.ErrVerifyFailed, response.Message)
	}

	result := paymentdomain.VerifyResult{
		Reference:   reference,
		Status:      strings.TrimSpace(response.Data.Status),
		AmountMinor: response.Data.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(response.Data.Currency)),
	}
	if raw := strings.TrimSpace(response.Data.PaidAt); raw != "" {
		if paidAt, err := time.Parse(time.RFC3339, raw); err == nil {
			paidAt = paidAt.UTC()
			result.PaidAt = &paidAt
		}
	}
	return result, nil
}

func (a *Adapter) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, out)
}

func (a *Adapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	return a.do(req, out)
}

func (a *Adapter) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+a.secretKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paystack: status %d: %s", resp.StatusCode, truncate(data, 256))
	}
	return json.Unmarshal(data, out)
}

func truncate(data []byte, limit int) string {
	if len(data) > limit {
		data = data[:limit]
	}
	return string(data)
}

type webhookEvent struct {
	Event string           `json:"event"`
	Data  webhookEventData `json:"data"`
}

type webhookEventData struct {
	Reference       string         `json:"reference"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	GatewayResponse string         `json:"gateway_response"`
	Metadata        map[string]any `json:"metadata"`
}

// parseOrderIDs reads the order_ids list stamped on the transaction at
// initialization. Paystack may round-trip metadata values as strings or
// numbers depending on the channel.
func parseOrderIDs(metadata map[string]any) ([]snowflake.ID, error) {
	if metadata == nil {
		return nil, paymentdomain.ErrMissingOrderID
	}
	raw, ok := metadata["order_ids"]
	if !ok {
		return nil, paymentdomain.ErrMissingOrderID
	}

	var values []any
	switch cast := raw.(type) {
	case []any:
		values = cast
	case string:
		for _, piece := range strings.Split(cast, ",") {
			if piece = strings.TrimSpace(piece); piece != "" {
				values = append(values, piece)
			}
		}
	default:
		return nil, paymentdomain.ErrMissingOrderID
	}

	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		var text string
		switch cast := value.(type) {
		case string:
			text = strings.TrimSpace(cast)
		case float64:
			text = strconv.FormatInt(int64(cast), 10)
		case json.Number:
			text = cast.String()
		default:
			return nil, paymentdomain.ErrMissingOrderID
		}
		id, err := snowflake.ParseString(text)
		if err != nil {
			return nil, paymentdomain.ErrMissingOrderID
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, paymentdomain.ErrMissingOrderID
	}
	return ids, nil
}
