package domain

import "github.com/bwmarrin/snowflake"

// CartLine is one seller's portion of a buyer cart. Monetary fields are
// minor units (cents); floats never enter the fee math.
type CartLine struct {
	SellerID           snowflake.ID `json:"seller_id"`
	MerchSubtotalMinor int64        `json:"merch_subtotal_minor"`
	DeliveryMinor      int64        `json:"delivery_minor"`
	AbattoirMinor      int64        `json:"abattoir_minor"`
	Species            string       `json:"species"`
	Export             bool         `json:"export"`
}

// SellerLines is the fee breakdown for one seller group.
type SellerLines struct {
	MerchSubtotalMinor      int64 `json:"merch_subtotal_minor"`
	DeliveryMinor           int64 `json:"delivery_minor"`
	AbattoirMinor           int64 `json:"abattoir_minor"`
	BuyerProcessingFeeMinor int64 `json:"buyer_processing_fee_minor"`
	EscrowServiceFeeMinor   int64 `json:"escrow_service_fee_minor"`
	PlatformCommissionMinor int64 `json:"platform_commission_minor"`
	SellerPayoutFeeMinor    int64 `json:"seller_payout_fee_minor"`
	SellerNetPayoutMinor    int64 `json:"seller_net_payout_minor"`
	BuyerTotalMinor         int64 `json:"buyer_total_minor"`
}

type SellerBreakdown struct {
	SellerID snowflake.ID `json:"seller_id"`
	Species  []string     `json:"species,omitempty"`
	Export   bool         `json:"export"`
	Lines    SellerLines  `json:"lines"`
}

type CartTotals struct {
	BuyerTotalMinor              int64 `json:"buyer_total_minor"`
	SellerTotalNetPayoutMinor    int64 `json:"seller_total_net_payout_minor"`
	PlatformRevenueEstimateMinor int64 `json:"platform_revenue_estimate_minor"`
}

// CheckoutPreview is the quote shown to the buyer before payment. It is
// never persisted; fee_config_id and currency are stamped for audit.
type CheckoutPreview struct {
	PerSeller   []SellerBreakdown `json:"per_seller"`
	CartTotals  CartTotals        `json:"cart_totals"`
	FeeConfigID snowflake.ID      `json:"fee_config_id"`
	Currency    string            `json:"currency"`
}

// CheckoutInput starts a payment for a previewed cart.
type CheckoutInput struct {
	BuyerID  snowflake.ID `json:"buyer_id"`
	Email    string       `json:"email"`
	Cart     []CartLine   `json:"cart"`
	Currency string       `json:"currency"`
}

type OrderSummary struct {
	OrderID         snowflake.ID `json:"order_id"`
	SellerID        snowflake.ID `json:"seller_id"`
	BuyerTotalMinor int64        `json:"buyer_total_minor"`
	SellerNetMinor  int64        `json:"seller_net_payout_minor"`
}

type CheckoutResult struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	Orders           []OrderSummary  `json:"orders"`
	Preview          CheckoutPreview `json:"preview"`
}

// BreakdownResult is the single-amount fee breakdown.
type BreakdownResult struct {
	Lines       SellerLines  `json:"breakdown"`
	FeeConfigID snowflake.ID `json:"fee_config_id"`
	Label       string       `json:"label"`
	Currency    string       `json:"currency"`
}
