package domain

import (
	"context"
	"errors"
)

var (
	ErrEmptyCart       = errors.New("empty_cart")
	ErrInvalidSeller   = errors.New("invalid_seller")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrBelowMinimum    = errors.New("amount_below_minimum")
	ErrAboveMaximum    = errors.New("amount_above_maximum")
	ErrInvalidBuyer    = errors.New("invalid_buyer")
	ErrInvalidEmail    = errors.New("invalid_email")
)

type Service interface {
	// Preview quotes a cart against the active fee config. Deterministic and
	// side-effect free: identical input yields identical output.
	Preview(ctx context.Context, cart []CartLine, currency string) (CheckoutPreview, error)
	// Breakdown quotes a single merchandise amount.
	Breakdown(ctx context.Context, amountMinor int64, species string, export bool) (BreakdownResult, error)
	// Checkout persists one pending order per seller group and initializes a
	// gateway transaction for the buyer total.
	Checkout(ctx context.Context, input CheckoutInput) (CheckoutResult, error)
}
