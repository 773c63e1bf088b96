package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// LotteryMetrics tracks transaction outcomes and round progress.
type LotteryMetrics struct {
	transactions *prometheus.CounterVec
	rounds       prometheus.Counter
	entries      prometheus.Histogram
	payoutPool   prometheus.Gauge
	chainHeight  prometheus.Gauge
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	lotteryMetricsOnce sync.Once
	lotteryRegistry    *LotteryMetrics
)

// RPC returns the lazily-initialised registry used to record JSON-RPC
// activity.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lottery",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lottery",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and JSON-RPC error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lottery",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lottery",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of a request. code is the JSON-RPC error code,
// zero on success.
func (m *rpcMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// Lottery returns the singleton lottery metrics registry.
func Lottery() *LotteryMetrics {
	lotteryMetricsOnce.Do(func() {
		lotteryRegistry = &LotteryMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lottery",
				Subsystem: "node",
				Name:      "transactions_total",
				Help:      "Applied transactions segmented by type and failure kind.",
			}, []string{"type", "outcome"}),
			rounds: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lottery",
				Subsystem: "engine",
				Name:      "rounds_closed_total",
				Help:      "Number of lottery rounds closed.",
			}),
			entries: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "lottery",
				Subsystem: "engine",
				Name:      "round_entries",
				Help:      "Entries per closed round.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			}),
			payoutPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lottery",
				Subsystem: "engine",
				Name:      "payout_pool",
				Help:      "Tokens currently pooled in the open round.",
			}),
			chainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lottery",
				Subsystem: "node",
				Name:      "chain_height",
				Help:      "Height of the latest committed block.",
			}),
		}
		prometheus.MustRegister(
			lotteryRegistry.transactions,
			lotteryRegistry.rounds,
			lotteryRegistry.entries,
			lotteryRegistry.payoutPool,
			lotteryRegistry.chainHeight,
		)
	})
	return lotteryRegistry
}

// RecordTransaction counts an applied transaction. kind is empty for
// successful transactions and the failure kind otherwise.
func (m *LotteryMetrics) RecordTransaction(txType, kind string) {
	if m == nil {
		return
	}
	outcome := "success"
	if kind = strings.TrimSpace(kind); kind != "" {
		outcome = kind
	}
	m.transactions.WithLabelValues(txType, outcome).Inc()
}

func (m *LotteryMetrics) RecordRoundClosed(entries uint64) {
	if m == nil {
		return
	}
	m.rounds.Inc()
	m.entries.Observe(float64(entries))
}

func (m *LotteryMetrics) SetPayoutPool(pool *big.Int) {
	if m == nil {
		return
	}
	m.payoutPool.Set(bigToFloat(pool))
}

func (m *LotteryMetrics) SetChainHeight(height uint64) {
	if m == nil {
		return
	}
	m.chainHeight.Set(float64(height))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
