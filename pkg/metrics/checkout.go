package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as the "outcome" label.
const (
	OutcomeSuccess           = "success"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeValidation        = "validation"
	OutcomeTransactionFailed = "transaction_failed"
	OutcomeError             = "error"
)

// CheckoutMetrics records checkout attempts and coupon usage.
type CheckoutMetrics struct {
	attempts    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	redemptions *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	redemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_redemptions_total",
		Help: "Coupons redeemed by committed orders.",
	}, []string{"code"})
	reg.MustRegister(attempts, duration, redemptions)
	return &CheckoutMetrics{
		attempts:    attempts,
		duration:    duration,
		redemptions: redemptions,
	}
}

// ObserveAttempt counts one checkout and records how long it took.
func (c *CheckoutMetrics) ObserveAttempt(outcome string, elapsed time.Duration) {
	if c == nil || c.attempts == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	c.attempts.WithLabelValues(outcome).Inc()
	c.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// IncCouponRedeemed increments the redemption counter for the coupon code.
func (c *CheckoutMetrics) IncCouponRedeemed(code string) {
	if c == nil || c.redemptions == nil {
		return
	}
	c.redemptions.WithLabelValues(normalizeLabel(code)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
