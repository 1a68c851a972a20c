// Package ratelimit implements per-caller sliding-window rate limiting with
// a burst sub-window. The store keeps one timestamp per accepted request;
// a request is admitted only when both windows have headroom, and admission
// itself records the timestamp so concurrent callers cannot overshoot.
package ratelimit

import (
	"context"
	"time"

	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	ReasonWindow   = "window_exceeded"
	ReasonBurst    = "burst_exceeded"
	ReasonFailOpen = "store_unavailable"
)

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Reason     string
}

// Result reports the store-side outcome of one admission attempt.
type Result struct {
	Allowed     bool
	WindowCount int
	BurstCount  int
	OldestInWin time.Time
}

// Store records accepted request timestamps per key. Take atomically checks
// both windows and records the request when admitted.
type Store interface {
	Take(ctx context.Context, key string, now time.Time, policy Policy) (Result, error)
}

type Limiter struct {
	store   Store
	log     *zap.Logger
	clk     clock.Clock
	metrics *metrics.Metrics
}

func NewLimiter(store Store, log *zap.Logger, clk clock.Clock, m *metrics.Metrics) *Limiter {
	return &Limiter{
		store:   store,
		log:     log.Named("ratelimit"),
		clk:     clk,
		metrics: m,
	}
}

// Check admits or rejects one request for a caller key on an endpoint.
// Store failures fail open: availability of checkout beats strictness here.
func (l *Limiter) Check(ctx context.Context, endpoint, key string) Decision {
	policy, ok := PolicyFor(endpoint)
	if !ok || key == "" {
		return Decision{Allowed: true}
	}

	now := l.clk.Now()
	result, err := l.store.Take(ctx, endpoint+":"+key, now, policy)
	if err != nil {
		l.log.Warn("rate limit store unavailable, failing open",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
		return Decision{Allowed: true, Limit: policy.Limit, Reason: ReasonFailOpen}
	}

	if result.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
		remaining := policy.Limit - result.WindowCount
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: true, Limit: policy.Limit, Remaining: remaining}
	}

	reason := ReasonWindow
	retryAfter := policy.Window
	if result.BurstCount >= policy.Burst && result.WindowCount < policy.Limit {
		reason = ReasonBurst
		retryAfter = BurstWindow
	} else if !result.OldestInWin.IsZero() {
		retryAfter = result.OldestInWin.Add(policy.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	l.metrics.RecordRateLimitDenied(ctx, endpoint, reason)
	l.log.Info("rate limit exceeded",
		zap.String("endpoint", endpoint),
		zap.String("reason", reason),
		zap.Int("window_count", result.WindowCount),
		zap.Int("burst_count", result.BurstCount),
	)
	return Decision{
		Allowed:    false,
		Limit:      policy.Limit,
		RetryAfter: retryAfter,
		Reason:     reason,
	}
}
