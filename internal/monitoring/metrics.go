package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x402_payments_total",
			Help: "Total number of payment attempts by outcome",
		},
		[]string{"status"},
	)

	RateLimitDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x402_rate_limit_denials_total",
			Help: "Total number of requests denied by the sliding-window rate limiter",
		},
		[]string{"endpoint_id"},
	)

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "x402_upstream_latency_seconds",
			Help:    "Latency of proxied upstream calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint_id"},
	)

	FacilitatorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "x402_facilitator_latency_seconds",
			Help:    "Latency of verify/settle calls to the facilitator",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"rpc"},
	)
)

// InitMetrics registers every collector with the default registry. Call
// once at startup before serving /metrics.
func InitMetrics() {
	for _, c := range []prometheus.Collector{PaymentsTotal, RateLimitDenialsTotal, UpstreamLatency, FacilitatorLatency} {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msg("monitoring: failed to register metric")
		}
	}
}
