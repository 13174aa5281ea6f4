package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "topup"

// Metrics owns a private registry so tests can build as many as they like.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	OrdersCreated      *prometheus.CounterVec
	OrdersExpired      prometheus.Counter
	Sweeps             *prometheus.CounterVec
	VoucherValidations *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders created, split by whether a voucher was applied.",
		}, []string{"voucher"}),
		OrdersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_expired_total",
			Help:      "Pending orders failed by the expiry sweep.",
		}),
		Sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_sweeps_total",
			Help:      "Expiry sweeps run, by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		VoucherValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voucher_validations_total",
			Help:      "Voucher validations by result.",
		}, []string{"result"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Administrative status changes by target status.",
		}, []string{"status"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OrdersCreated,
		m.OrdersExpired,
		m.Sweeps,
		m.VoucherValidations,
		m.StatusTransitions,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) OrderCreated(withVoucher bool) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(strconv.FormatBool(withVoucher)).Inc()
}

func (m *Metrics) SweepFinished(trigger string, expired int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Sweeps.WithLabelValues(trigger, outcome).Inc()
	m.OrdersExpired.Add(float64(expired))
}

func (m *Metrics) VoucherValidated(result string) {
	if m == nil {
		return
	}
	m.VoucherValidations.WithLabelValues(result).Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}
