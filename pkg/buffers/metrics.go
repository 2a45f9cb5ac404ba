package buffers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks buffer core activity. A nil *Metrics records nothing.
type Metrics struct {
	buffersCreated  *prometheus.CounterVec
	backfills       *prometheus.CounterVec
	backfillLatency prometheus.Histogram
	fetchFailures   *prometheus.CounterVec
	memberRequests  prometheus.Counter
	nicklistLoads   prometheus.Counter
	renames         prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		buffersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guildbuf",
			Name:      "buffers_created_total",
			Help:      "Buffers materialized, by key kind.",
		}, []string{"kind"}),
		backfills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guildbuf",
			Name:      "backfills_total",
			Help:      "History backfills completed, by result.",
		}, []string{"result"}),
		backfillLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "guildbuf",
			Name:      "backfill_duration_seconds",
			Help:      "Time from backfill start to insertion.",
			Buckets:   prometheus.DefBuckets,
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guildbuf",
			Name:      "fetch_failures_total",
			Help:      "Remote fetches that failed and were skipped, by operation.",
		}, []string{"op"}),
		memberRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "guildbuf",
			Name:      "member_requests_total",
			Help:      "Member lookups emitted for unknown message authors.",
		}),
		nicklistLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "guildbuf",
			Name:      "nicklist_loads_total",
			Help:      "Nicklists built.",
		}),
		renames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "guildbuf",
			Name:      "nicklist_renames_total",
			Help:      "Nicklist entries replaced after a member rename.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.buffersCreated, m.backfills, m.backfillLatency,
			m.fetchFailures, m.memberRequests, m.nicklistLoads, m.renames)
	}
	return m
}

// RecordBufferCreated counts a new buffer
func (m *Metrics) RecordBufferCreated(kind string) {
	if m == nil {
		return
	}
	m.buffersCreated.WithLabelValues(kind).Inc()
}

// RecordBackfill counts a finished backfill and its duration
func (m *Metrics) RecordBackfill(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.backfills.WithLabelValues(result).Inc()
	m.backfillLatency.Observe(took.Seconds())
}

// RecordFetchFailure counts a swallowed fetch error
func (m *Metrics) RecordFetchFailure(op string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordMemberRequest() {
	if m == nil {
		return
	}
	m.memberRequests.Inc()
}

func (m *Metrics) RecordNicklistLoad() {
	if m == nil {
		return
	}
	m.nicklistLoads.Inc()
}

func (m *Metrics) RecordRename() {
	if m == nil {
		return
	}
	m.renames.Inc()
}
