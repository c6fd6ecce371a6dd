// Package metrics exposes ledger activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Klingon-tech/powledger/pkg/block"
)

const namespace = "powledger"

// Solution results used as the "result" label.
const (
	ResultAccepted = "accepted"
)

// Collector records ledger events. It implements chain.Observer.
type Collector struct {
	now func() time.Time

	transactions prometheus.Counter
	jobs         prometheus.Counter
	solutions    *prometheus.CounterVec
	height       prometheus.Gauge
	pending      prometheus.Gauge
	difficulty   prometheus.Gauge
	solveTime    prometheus.Histogram
}

// NewCollector registers the ledger collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	transactionsOpts := prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_submitted_total",
		Help:      "number of transactions accepted into the pending pool",
	}
	jobsOpts := prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_issued_total",
		Help:      "number of mining jobs handed out",
	}
	solutionsOpts := prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "solutions_total",
		Help:      "number of submitted solutions by result",
	}
	heightOpts := prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chain_height",
		Help:      "index of the latest sealed block",
	}
	pendingOpts := prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_transactions",
		Help:      "number of transactions waiting in the pool",
	}
	difficultyOpts := prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "difficulty",
		Help:      "leading hex zeros required of the last issued job",
	}
	solveOpts := prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "solve_seconds",
		Help:      "time from job issue to accepted solution",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}

	return &Collector{
		now:          time.Now,
		transactions: factory.NewCounter(transactionsOpts),
		jobs:         factory.NewCounter(jobsOpts),
		solutions:    factory.NewCounterVec(solutionsOpts, []string{"result"}),
		height:       factory.NewGauge(heightOpts),
		pending:      factory.NewGauge(pendingOpts),
		difficulty:   factory.NewGauge(difficultyOpts),
		solveTime:    factory.NewHistogram(solveOpts),
	}
}

// TransactionAccepted implements chain.Observer.
func (c *Collector) TransactionAccepted(pending int) {
	c.transactions.Inc()
	c.pending.Set(float64(pending))
}

// JobIssued implements chain.Observer.
func (c *Collector) JobIssued(_ uint64, difficulty int) {
	c.jobs.Inc()
	c.difficulty.Set(float64(difficulty))
}

// SolutionAccepted implements chain.Observer.
func (c *Collector) SolutionAccepted(blk *block.Block, pending int) {
	c.solutions.WithLabelValues(ResultAccepted).Inc()
	c.height.Set(float64(blk.Index))
	c.pending.Set(float64(pending))
	if d := c.now().Sub(blk.Time()); d >= 0 {
		c.solveTime.Observe(d.Seconds())
	}
}

// SolutionRejected implements chain.Observer.
func (c *Collector) SolutionRejected(reason string) {
	c.solutions.WithLabelValues(reason).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
