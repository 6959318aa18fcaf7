package infra

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LedgerWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cards_ledger_writes_total",
			Help: "Backend calls made by ledger grids",
		},
		[]string{"op", "result"},
	)
	PinVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cards_pin_verifications_total",
			Help: "PIN verification attempts",
		},
		[]string{"result"},
	)
	SessionExpirations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cards_session_expirations_total",
			Help: "Device sessions ended by inactivity",
		},
	)
	ArchivedRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cards_archived_rows_total",
			Help: "Transactions moved to the archive by the daily reset",
		},
	)
	OpenGrids = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cards_open_grids",
			Help: "Ledger grids held in memory",
		},
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cards_circuit_breaker_state",
			Help: "0 closed, 1 open, 2 half-open",
		},
		[]string{"name"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cards_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		LedgerWrites,
		PinVerifications,
		SessionExpirations,
		ArchivedRows,
		OpenGrids,
		BreakerState,
		HTTPDuration,
	)
}

// ObserveLedgerWrite is the grid OnPersist hook.
func ObserveLedgerWrite(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	LedgerWrites.WithLabelValues(op, result).Inc()
}

// MetricsMiddleware records request latency per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
