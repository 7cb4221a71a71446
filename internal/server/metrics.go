package server

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry     *prometheus.Registry
	locksTotal   *prometheus.CounterVec
	mintsTotal   *prometheus.CounterVec
	burnsTotal   *prometheus.CounterVec
	refundsTotal *prometheus.CounterVec
	unlocksTotal *prometheus.CounterVec
	dlqDepth     prometheus.Gauge
	totalLocked  prometheus.Gauge
	totalMinted  prometheus.Gauge
	totalBurned  prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	locks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkbridge_locks_total",
		Help: "Lock submissions by outcome",
	}, []string{"status"})

	mints := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkbridge_mints_total",
		Help: "Mint submissions by outcome",
	}, []string{"status"})

	burns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkbridge_burns_total",
		Help: "Burn submissions by outcome",
	}, []string{"status"})

	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkbridge_refunds_total",
		Help: "Refund submissions by outcome",
	}, []string{"status"})

	unlocks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkbridge_unlocks_total",
		Help: "Unlock submissions by outcome",
	}, []string{"status"})

	dlq := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zkbridge_relayer_dlq_depth",
		Help: "Number of submissions parked in the relayer DLQ",
	})

	totalLocked := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zkbridge_total_locked",
		Help: "Value escrowed on the lock ledger",
	})
	totalMinted := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zkbridge_total_minted",
		Help: "Wrapped value minted on the mint ledger",
	})
	totalBurned := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zkbridge_total_burned",
		Help: "Wrapped value burned on the mint ledger",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(locks, mints, burns, refunds, unlocks, dlq, totalLocked, totalMinted, totalBurned)

	return &metricsRegistry{
		registry:     r,
		locksTotal:   locks,
		mintsTotal:   mints,
		burnsTotal:   burns,
		refundsTotal: refunds,
		unlocksTotal: unlocks,
		dlqDepth:     dlq,
		totalLocked:  totalLocked,
		totalMinted:  totalMinted,
		totalBurned:  totalBurned,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incLock(status string)   { m.locksTotal.WithLabelValues(status).Inc() }
func (m *metricsRegistry) incMint(status string)   { m.mintsTotal.WithLabelValues(status).Inc() }
func (m *metricsRegistry) incBurn(status string)   { m.burnsTotal.WithLabelValues(status).Inc() }
func (m *metricsRegistry) incRefund(status string) { m.refundsTotal.WithLabelValues(status).Inc() }
func (m *metricsRegistry) incUnlock(status string) { m.unlocksTotal.WithLabelValues(status).Inc() }

func (m *metricsRegistry) setDLQDepth(depth int) {
	m.dlqDepth.Set(float64(depth))
}

func (m *metricsRegistry) setTotals(locked, minted, burned *big.Int) {
	m.totalLocked.Set(bigFloat(locked))
	m.totalMinted.Set(bigFloat(minted))
	m.totalBurned.Set(bigFloat(burned))
}

func bigFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
