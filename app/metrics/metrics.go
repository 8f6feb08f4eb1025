package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TransitionsTotal      *prometheus.CounterVec
	ReceiptsTotal         *prometheus.CounterVec
	NotificationsTotal    *prometheus.CounterVec
	IPNTotal              *prometheus.CounterVec
	GatewayRequestSeconds *prometheus.HistogramVec
	CatalogCacheTotal     *prometheus.CounterVec
	ExpirySweepTotal      *prometheus.CounterVec
	RPCSeconds            *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberships_ledger_transitions_total",
				Help: "Membership ledger transitions by kind and outcome",
			},
			[]string{"transition", "outcome"},
		),
		ReceiptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberships_receipts_total",
				Help: "Receipts generated by payment method",
			},
			[]string{"payment_method"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberships_notifications_total",
				Help: "Notification deliveries by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		IPNTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberships_paypal_ipn_total",
				Help: "PayPal IPN messages by outcome",
			},
			[]string{"outcome"},
		),
		GatewayRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memberships_gateway_request_duration_seconds",
				Help:    "Payment gateway call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		CatalogCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberships_catalog_cache_total",
				Help: "Catalog cache lookups by result",
			},
			[]string{"result"},
		),
		ExpirySweepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberships_expiry_sweep_total",
				Help: "Scheduled expiry firings by outcome",
			},
			[]string{"outcome"},
		),
		RPCSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memberships_grpc_request_duration_seconds",
				Help:    "gRPC handler latency by method and status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
	}

	registry.MustRegister(
		m.TransitionsTotal,
		m.ReceiptsTotal,
		m.NotificationsTotal,
		m.IPNTotal,
		m.GatewayRequestSeconds,
		m.CatalogCacheTotal,
		m.ExpirySweepTotal,
		m.RPCSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Transition(kind, outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Receipt(paymentMethod string) {
	if m == nil {
		return
	}
	m.ReceiptsTotal.WithLabelValues(paymentMethod).Inc()
}

func (m *Metrics) Notification(channel, outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) IPN(outcome string) {
	if m == nil {
		return
	}
	m.IPNTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewayRequest(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayRequestSeconds.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) CatalogCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CatalogCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ExpirySweep(outcome string) {
	if m == nil {
		return
	}
	m.ExpirySweepTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RPC(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RPCSeconds.WithLabelValues(method, code).Observe(elapsed.Seconds())
}
