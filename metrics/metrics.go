// Package metrics exposes Prometheus collectors for the API and the
// billing engine.
package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	metricPrefix = "tuition_"

	statusOK = "ok"
)

var (
	registerOnce sync.Once

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec

	paymentsTotal     *prometheus.CounterVec
	paymentAmount     *prometheus.CounterVec
	paymentRejections *prometheus.CounterVec

	penaltiesAssessed prometheus.Counter
	penaltyRuns       *prometheus.CounterVec
)

// Init registers the collectors with the default registry. A nil db skips
// the connection pool gauges.
func Init(db *sql.DB) {
	registerOnce.Do(func() {
		apiRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "api_requests_total",
				Help: "Total API requests by action and HTTP status",
			},
			[]string{"action", "status"},
		)
		apiLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "api_latency_seconds",
				Help:    "API action latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		)

		paymentsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_total",
				Help: "Recorded payments by payment mode",
			},
			[]string{"mode"},
		)
		paymentAmount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_amount_total",
				Help: "Sum of recorded payment amounts by payment mode",
			},
			[]string{"mode"},
		)
		paymentRejections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_rejections_total",
				Help: "Rejected payments by reason",
			},
			[]string{"reason"},
		)

		penaltiesAssessed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "penalties_assessed_total",
				Help: "Late payment penalty billings raised",
			},
		)
		penaltyRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "penalty_runs_total",
				Help: "Penalty job runs by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			apiRequests,
			apiLatency,
			paymentsTotal,
			paymentAmount,
			paymentRejections,
			penaltiesAssessed,
			penaltyRuns,
		)

		if db != nil {
			registerDBMetrics(db)
		}
	})
}

func registerDBMetrics(db *sql.DB) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open database connections",
		},
		func() float64 { return float64(db.Stats().OpenConnections) },
	))
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_wait_count",
			Help: "Total waits for a database connection",
		},
		func() float64 { return float64(db.Stats().WaitCount) },
	))
}

// ObserveAction records one API action.
func ObserveAction(action string, status int, duration time.Duration) {
	if action == "" {
		action = "unknown"
	}
	if apiRequests != nil {
		apiRequests.WithLabelValues(action, statusLabel(status)).Inc()
	}
	if apiLatency != nil {
		apiLatency.WithLabelValues(action).Observe(duration.Seconds())
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return statusOK
	}
}

// ObservePayment records an accepted payment.
func ObservePayment(mode string, amount decimal.Decimal) {
	if paymentsTotal != nil {
		paymentsTotal.WithLabelValues(mode).Inc()
	}
	if paymentAmount != nil {
		paymentAmount.WithLabelValues(mode).Add(amount.InexactFloat64())
	}
}

// IncPaymentRejected records a rejected payment.
func IncPaymentRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if paymentRejections != nil {
		paymentRejections.WithLabelValues(reason).Inc()
	}
}

// ObservePenaltyRun records a penalty job run.
func ObservePenaltyRun(assessed int, err error) {
	result := statusOK
	if err != nil {
		result = "error"
	}
	if penaltyRuns != nil {
		penaltyRuns.WithLabelValues(result).Inc()
	}
	if penaltiesAssessed != nil && assessed > 0 {
		penaltiesAssessed.Add(float64(assessed))
	}
}
