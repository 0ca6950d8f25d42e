package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Realtime
	SubscriptionsActive *prometheus.GaugeVec
	SnapshotsDelivered  *prometheus.CounterVec
	MessagesSent        prometheus.Counter
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tutorhub",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tutorhub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tutorhub",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tutorhub",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tutorhub",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		SubscriptionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tutorhub",
				Subsystem: "realtime",
				Name:      "subscriptions_active",
				Help:      "Open live subscriptions by kind.",
			},
			[]string{"kind"}, // kind=messages|auth
		),
		SnapshotsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tutorhub",
				Subsystem: "realtime",
				Name:      "snapshots_delivered_total",
				Help:      "Snapshots pushed to subscribers by kind.",
			},
			[]string{"kind"},
		),
		MessagesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tutorhub",
				Subsystem: "chat",
				Name:      "messages_sent_total",
				Help:      "Chat messages accepted.",
			},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.SubscriptionsActive, p.SnapshotsDelivered, p.MessagesSent,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// The realtime helpers are nil-safe so stores and the facade can run without metrics.

func (p *Prom) SubscriptionOpened(kind string) {
	if p != nil {
		p.SubscriptionsActive.WithLabelValues(kind).Inc()
	}
}

func (p *Prom) SubscriptionClosed(kind string) {
	if p != nil {
		p.SubscriptionsActive.WithLabelValues(kind).Dec()
	}
}

func (p *Prom) SnapshotDelivered(kind string) {
	if p != nil {
		p.SnapshotsDelivered.WithLabelValues(kind).Inc()
	}
}

func (p *Prom) MessageSent() {
	if p != nil {
		p.MessagesSent.Inc()
	}
}
