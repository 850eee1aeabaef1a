// Package observability exposes Prometheus metrics for the terminal: HTTP
// traffic of the local API and the engine's sale and register counters.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	salesTotal      prometheus.Counter
	salesAmount     prometheus.Counter
	saleFailures    *prometheus.CounterVec
	registerChanges *prometheus.CounterVec
	breakerState    prometheus.Gauge
	wsClients       prometheus.GaugeFunc
}

// NewMetrics builds the registry. clients, when set, reports the number of
// connected websocket clients.
func NewMetrics(clients func() int) *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		salesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_completed_total",
			Help: "Sales acknowledged by the backend.",
		}),
		salesAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_amount_total",
			Help: "Sum of grand totals of completed sales.",
		}),
		saleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sale_failures_total",
			Help: "Sale submissions that did not complete, by reason.",
		}, []string{"reason"}),
		registerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_register_transitions_total",
			Help: "Register session transitions by target status.",
		}, []string{"status"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_backend_circuit_state",
			Help: "Backend circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),
	}
	registry.MustRegister(
		m.requestsTotal, m.requestDuration,
		m.salesTotal, m.salesAmount, m.saleFailures, m.registerChanges,
		m.breakerState,
		collectors.NewGoCollector(),
	)
	if clients != nil {
		m.wsClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pos_ws_clients",
			Help: "Connected websocket clients.",
		}, func() float64 { return float64(clients()) })
		registry.MustRegister(m.wsClients)
	}
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per matched gin route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// SaleCompleted implements service.Metrics.
func (m *Metrics) SaleCompleted(total decimal.Decimal) {
	m.salesTotal.Inc()
	m.salesAmount.Add(total.InexactFloat64())
}

func (m *Metrics) SaleFailed(reason string) {
	m.saleFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RegisterTransition(to model.RegisterStatus) {
	m.registerChanges.WithLabelValues(string(to)).Inc()
}

// SetBreakerState records the circuit breaker state as its numeric value.
func (m *Metrics) SetBreakerState(state int) {
	m.breakerState.Set(float64(state))
}
