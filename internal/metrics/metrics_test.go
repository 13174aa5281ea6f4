package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.OrderCreated(true)
	m.OrderCreated(false)
	m.OrderCreated(false)
	m.SweepFinished("timer", 3, nil)
	m.SweepFinished("manual", 0, errors.New("boom"))
	m.VoucherValidated("ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreated.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersCreated.WithLabelValues("false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OrdersExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sweeps.WithLabelValues("manual", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VoucherValidations.WithLabelValues("ok")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated(true)
		m.SweepFinished("timer", 1, nil)
		m.VoucherValidated("not_found")
		m.StatusChanged("completed")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.OrderCreated(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `topup_orders_created_total{voucher="false"} 1`)
}
