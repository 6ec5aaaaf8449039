package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	AffiliatesRegistered prometheus.Counter
	CreditsApplied       prometheus.Counter
	CreditedAmount       prometheus.Counter
	PayoutsRequested     prometheus.Counter
	PayoutsResolved      *prometheus.CounterVec
	PaidOutAmount        prometheus.Counter
	VerificationReviews  *prometheus.CounterVec
	NameCheckResults     *prometheus.CounterVec

	// Webhook metrics
	WebhookDeliveries *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		AffiliatesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "affiliates_registered_total",
			Help: "Total number of affiliates registered",
		}),
		CreditsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_credits_total",
			Help: "Total number of ledger credits applied",
		}),
		CreditedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_credited_rupiah_total",
			Help: "Total amount credited, in Rupiah",
		}),
		PayoutsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payouts_requested_total",
			Help: "Total number of payout requests submitted",
		}),
		PayoutsResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payouts_resolved_total",
				Help: "Total number of payout requests resolved",
			},
			[]string{"outcome"}, // paid, rejected
		),
		PaidOutAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payouts_paid_rupiah_total",
			Help: "Total amount paid out, in Rupiah",
		}),
		VerificationReviews: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verification_reviews_total",
				Help: "Total number of verification reviews",
			},
			[]string{"decision"}, // approve, reject
		),
		NameCheckResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "name_check_results_total",
				Help: "Total number of KTP name checks performed at settlement",
			},
			[]string{"result"}, // match, mismatch
		),

		WebhookDeliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"status"}, // success, failed
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // Use route pattern, not actual path

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordAffiliateRegistered increments the registration counter
func (m *Metrics) RecordAffiliateRegistered() {
	m.AffiliatesRegistered.Inc()
}

// RecordCredit records an applied ledger credit
func (m *Metrics) RecordCredit(amount int64) {
	m.CreditsApplied.Inc()
	m.CreditedAmount.Add(float64(amount))
}

// RecordPayoutRequested increments the payout request counter
func (m *Metrics) RecordPayoutRequested() {
	m.PayoutsRequested.Inc()
}

// RecordPayoutResolved records a payout resolution
func (m *Metrics) RecordPayoutResolved(outcome string, amount int64) {
	m.PayoutsResolved.WithLabelValues(outcome).Inc()
	if outcome == "paid" {
		m.PaidOutAmount.Add(float64(amount))
	}
}

// RecordVerificationReview increments the review counter
func (m *Metrics) RecordVerificationReview(decision string) {
	m.VerificationReviews.WithLabelValues(decision).Inc()
}

// RecordNameCheck records a settlement-time name check result
func (m *Metrics) RecordNameCheck(result string) {
	m.NameCheckResults.WithLabelValues(result).Inc()
}
