package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports refresh-cycle and fetch metrics for the dashboard service.
type Collector struct {
	refreshCyclesTotal   *prometheus.CounterVec
	refreshDuration      prometheus.Histogram
	staleResultsTotal    prometheus.Counter
	conversationsFetched prometheus.Gauge
	snapshotTotalLeads   prometheus.Gauge
}

// NewCollector creates a collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "funnelboard_refresh_cycles_total",
			Help: "Total refresh cycles by outcome",
		}, []string{"status"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "funnelboard_refresh_duration_seconds",
			Help:    "Duration of full fetch-and-aggregate cycles",
			Buckets: prometheus.DefBuckets,
		}),
		staleResultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "funnelboard_stale_results_total",
			Help: "Cycle results discarded because parameters changed mid-flight",
		}),
		conversationsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "funnelboard_conversations_fetched",
			Help: "Conversations returned by the last successful fetch",
		}),
		snapshotTotalLeads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "funnelboard_snapshot_total_leads",
			Help: "Total leads in the current snapshot's global window",
		}),
	}

	reg.MustRegister(
		c.refreshCyclesTotal,
		c.refreshDuration,
		c.staleResultsTotal,
		c.conversationsFetched,
		c.snapshotTotalLeads,
	)
	return c
}

// ObserveCycle records one completed cycle.
func (c *Collector) ObserveCycle(status string, duration time.Duration) {
	c.refreshCyclesTotal.WithLabelValues(status).Inc()
	c.refreshDuration.Observe(duration.Seconds())
}

// ObserveStaleResult records a discarded cycle result.
func (c *Collector) ObserveStaleResult() {
	c.staleResultsTotal.Inc()
}

// ObserveSnapshot records gauges from a freshly applied snapshot.
func (c *Collector) ObserveSnapshot(conversations, totalLeads int) {
	c.conversationsFetched.Set(float64(conversations))
	c.snapshotTotalLeads.Set(float64(totalLeads))
}
