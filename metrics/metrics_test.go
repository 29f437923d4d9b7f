package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	Init(nil)
	Init(nil) // second call is a no-op

	ObserveAction("create_payment", 201, 20*time.Millisecond)
	ObserveAction("create_payment", 400, time.Millisecond)
	ObserveAction("", 500, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(apiRequests.WithLabelValues("create_payment", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(apiRequests.WithLabelValues("create_payment", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(apiRequests.WithLabelValues("unknown", "5xx")))

	ObservePayment("GCash", decimal.RequireFromString("1500.50"))
	assert.Equal(t, 1.0, testutil.ToFloat64(paymentsTotal.WithLabelValues("GCash")))
	assert.Equal(t, 1500.5, testutil.ToFloat64(paymentAmount.WithLabelValues("GCash")))

	IncPaymentRejected("balance_exceeded")
	assert.Equal(t, 1.0, testutil.ToFloat64(paymentRejections.WithLabelValues("balance_exceeded")))

	ObservePenaltyRun(3, nil)
	ObservePenaltyRun(0, errors.New("db down"))
	assert.Equal(t, 3.0, testutil.ToFloat64(penaltiesAssessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(penaltyRuns.WithLabelValues("error")))
}
