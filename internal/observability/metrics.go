package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	ledgerSavesTotal      *prometheus.CounterVec
	ledgerLoadsTotal      *prometheus.CounterVec
	ledgerMutationsTotal  *prometheus.CounterVec
	overviewRequestsTotal *prometheus.CounterVec
	overviewBuildSeconds  prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors for the progress
// core. The host application exposes the default registry; this module
// never opens a scrape endpoint itself.
func RegisterMetrics() {
	registerOnce.Do(func() {
		ledgerSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_ledger_saves_total",
			Help: "Total number of ledger write-through saves.",
		}, []string{"status"})

		ledgerLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_ledger_loads_total",
			Help: "Total number of ledger loads by outcome.",
		}, []string{"outcome"})

		ledgerMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_ledger_mutations_total",
			Help: "Total number of ledger mutations by kind.",
		}, []string{"kind"})

		overviewRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_overview_requests_total",
			Help: "Total number of overview reads by cache result.",
		}, []string{"result"})

		overviewBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "progress_overview_build_seconds",
			Help:    "Latency distribution for building the overview read model.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		})

		prometheus.MustRegister(ledgerSavesTotal, ledgerLoadsTotal, ledgerMutationsTotal, overviewRequestsTotal, overviewBuildSeconds)
	})
}

// LedgerSaves exposes the counter for write-through saves.
func LedgerSaves() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerSavesTotal
}

// LedgerLoads exposes the counter for ledger loads.
func LedgerLoads() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerLoadsTotal
}

// LedgerMutations exposes the counter for ledger mutations.
func LedgerMutations() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerMutationsTotal
}

// OverviewRequests exposes the counter for overview reads.
func OverviewRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return overviewRequestsTotal
}

// OverviewBuildLatency exposes the histogram for overview builds.
func OverviewBuildLatency() prometheus.Histogram {
	RegisterMetrics()
	return overviewBuildSeconds
}
