// Package calculator implements the per-seller fee math behind checkout
// quotes. Compute is a pure function over a cart and a fee config: no I/O,
// no clock, integer minor-unit arithmetic only.
package calculator

import (
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/kraalmart/kraalmart/internal/checkout/domain"
	feeconfigdomain "github.com/kraalmart/kraalmart/internal/feeconfig/domain"
)

// Compute produces the fee breakdown for a cart. Lines sharing a seller_id
// are merged into one seller group before percentages apply; the flat escrow
// service fee is charged once per seller group.
func Compute(lines []checkoutdomain.CartLine, cfg feeconfigdomain.FeeConfig, currency string) (checkoutdomain.CheckoutPreview, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return checkoutdomain.CheckoutPreview{}, checkoutdomain.ErrInvalidCurrency
	}
	if len(lines) == 0 {
		return checkoutdomain.CheckoutPreview{}, checkoutdomain.ErrEmptyCart
	}

	groups, orderIndex, err := groupBySeller(lines)
	if err != nil {
		return checkoutdomain.CheckoutPreview{}, err
	}

	preview := checkoutdomain.CheckoutPreview{
		PerSeller:   make([]checkoutdomain.SellerBreakdown, 0, len(orderIndex)),
		FeeConfigID: cfg.ID,
		Currency:    currency,
	}

	for _, sellerID := range orderIndex {
		group := groups[sellerID]

		if cfg.MinimumOrderValueMinor > 0 && group.merch < cfg.MinimumOrderValueMinor {
			return checkoutdomain.CheckoutPreview{}, checkoutdomain.ErrBelowMinimum
		}
		if cfg.MaximumOrderValueMinor > 0 && group.merch > cfg.MaximumOrderValueMinor {
			return checkoutdomain.CheckoutPreview{}, checkoutdomain.ErrAboveMaximum
		}

		result := ComputeLines(group.merch, group.delivery, group.abattoir, cfg)

		preview.PerSeller = append(preview.PerSeller, checkoutdomain.SellerBreakdown{
			SellerID: sellerID,
			Species:  group.species,
			Export:   group.export,
			Lines:    result,
		})

		preview.CartTotals.BuyerTotalMinor += result.BuyerTotalMinor
		preview.CartTotals.SellerTotalNetPayoutMinor += result.SellerNetPayoutMinor
		preview.CartTotals.PlatformRevenueEstimateMinor += result.PlatformCommissionMinor +
			result.SellerPayoutFeeMinor +
			result.BuyerProcessingFeeMinor +
			result.EscrowServiceFeeMinor
	}

	return preview, nil
}

// ComputeLines applies the fee config to one seller group.
func ComputeLines(merchMinor, deliveryMinor, abattoirMinor int64, cfg feeconfigdomain.FeeConfig) checkoutdomain.SellerLines {
	gross := merchMinor + deliveryMinor + abattoirMinor

	commission := roundHalfUpPct(merchMinor, cfg.PlatformCommissionPct)
	payoutFee := roundHalfUpPct(merchMinor, cfg.SellerPayoutFeePct)
	processingFee := roundHalfUpPct(gross, cfg.BuyerProcessingFeePct)
	escrowFee := cfg.EscrowFeeMinor

	return checkoutdomain.SellerLines{
		MerchSubtotalMinor:      merchMinor,
		DeliveryMinor:           deliveryMinor,
		AbattoirMinor:           abattoirMinor,
		BuyerProcessingFeeMinor: processingFee,
		EscrowServiceFeeMinor:   escrowFee,
		PlatformCommissionMinor: commission,
		SellerPayoutFeeMinor:    payoutFee,
		SellerNetPayoutMinor:    gross - commission - payoutFee,
		BuyerTotalMinor:         gross + processingFee + escrowFee,
	}
}

type sellerGroup struct {
	merch    int64
	delivery int64
	abattoir int64
	species  []string
	export   bool
}

func groupBySeller(lines []checkoutdomain.CartLine) (map[snowflake.ID]*sellerGroup, []snowflake.ID, error) {
	groups := map[snowflake.ID]*sellerGroup{}
	orderIndex := []snowflake.ID{}

	for _, line := range lines {
		if line.SellerID == 0 {
			return nil, nil, checkoutdomain.ErrInvalidSeller
		}
		if line.MerchSubtotalMinor < 0 || line.DeliveryMinor < 0 || line.AbattoirMinor < 0 {
			return nil, nil, checkoutdomain.ErrInvalidAmount
		}

		group, ok := groups[line.SellerID]
		if !ok {
			group = &sellerGroup{}
			groups[line.SellerID] = group
			orderIndex = append(orderIndex, line.SellerID)
		}
		group.merch += line.MerchSubtotalMinor
		group.delivery += line.DeliveryMinor
		group.abattoir += line.AbattoirMinor
		group.export = group.export || line.Export
		if species := strings.TrimSpace(line.Species); species != "" {
			group.species = appendUnique(group.species, species)
		}
	}

	return groups, orderIndex, nil
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

// roundHalfUpPct applies a percentage (0..100, at most two decimal places)
// to a minor-unit amount, rounding half-up at this step so fractional cents
// never carry forward. The percentage is converted to basis points and the
// arithmetic stays in integers.
func roundHalfUpPct(amountMinor int64, pct float64) int64 {
	bps := int64(math.Round(pct * 100))
	if bps <= 0 || amountMinor <= 0 {
		return 0
	}
	return (amountMinor*bps + 5000) / 10000
}
