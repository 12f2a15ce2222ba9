package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renovo_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "renovo_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ledgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renovo_ledger_operations_total",
		Help: "Ledger operations by kind and outcome",
	}, []string{"op", "result"})

	creditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renovo_ledger_credits_total",
		Help: "Credits added or spent, by transaction type",
	}, []string{"type"})

	reconciliationDrift = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renovo_ledger_reconciliation_drift",
		Help: "Balance minus ledger sum for contractors whose ledger does not reconcile",
	}, []string{"contractor"})

	bidDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renovo_bid_decisions_total",
		Help: "Bid status changes by target status and outcome",
	}, []string{"status", "result"})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "renovo_messages_sent_total",
		Help: "Messages appended to conversations",
	})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "renovo_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by backend",
	}, []string{"backend"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveLedger counts an unlock, purchase or refund attempt.
func ObserveLedger(op, result string) {
	ledgerOperations.WithLabelValues(op, result).Inc()
}

func AddCredits(txType string, amount int) {
	creditsMoved.WithLabelValues(txType).Add(float64(amount))
}

// SetDrift exports a contractor's reconciliation drift; zero clears the series.
func SetDrift(contractor string, drift int) {
	if drift == 0 {
		reconciliationDrift.DeleteLabelValues(contractor)
		return
	}
	reconciliationDrift.WithLabelValues(contractor).Set(float64(drift))
}

func ObserveBidDecision(status, result string) {
	bidDecisions.WithLabelValues(status, result).Inc()
}

func IncMessagesSent() { messagesSent.Inc() }

func IncRateLimited(backend string) { rateLimited.WithLabelValues(backend).Inc() }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
