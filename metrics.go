package foggytcp

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
)

// DropReason labels why an inbound datagram was discarded by Decode or the
// ingress classifier, used as the "reason" label on the dropped-segments
// counter.
type DropReason string

const (
	DropReasonShortHeader DropReason = "short_header"
	DropReasonBadHdrLen   DropReason = "bad_hdr_len"
	DropReasonBadPlen     DropReason = "bad_plen"
	DropReasonStale       DropReason = "stale"
	DropReasonWindowFull  DropReason = "window_full"
	DropReasonDuplicate   DropReason = "duplicate"
)

// connStats is the live counter/gauge state for one Connection, read by the
// Collector under its own lock on every Collect call.
type connStats struct {
	id     xid.ID
	labels []string

	mu             sync.Mutex
	segmentsDropped map[DropReason]uint64
	retransmits     uint64
	cwnd            float64
	renoState       RenoState
}

// Collector is a Prometheus collector over a dynamic set of live
// connections, grounded in runZeroInc-sockstats/pkg/exporter/exporter.go's
// TCPInfoCollector: Describe/Collect walk a map guarded by a mutex, and
// Add/Remove let Connections register and unregister themselves as they are
// opened and closed. Where TCPInfoCollector pulls kernel tcp_info via
// syscall on every Collect, this collector instead reads in-memory counters
// each Connection updates directly, since there is no kernel socket backing
// a Foggy TCP connection to query.
type Collector struct {
	mu    sync.Mutex
	conns map[xid.ID]*connStats

	segmentsDropped *prometheus.Desc
	retransmits     *prometheus.Desc
	cwndBytes       *prometheus.Desc
	renoState       *prometheus.Desc

	labelNames []string
}

// NewCollector builds a Collector. labelNames are the extra label
// dimensions every registered connection must supply a value for (e.g.
// "local_addr", "remote_addr"); "conn_id" and, for the dropped-segments
// metric, "reason" are always appended.
func NewCollector(labelNames []string) *Collector {
	withConnID := append(append([]string(nil), labelNames...), "conn_id")
	withReason := append(append([]string(nil), withConnID...), "reason")
	return &Collector{
		conns:      make(map[xid.ID]*connStats),
		labelNames: labelNames,
		segmentsDropped: prometheus.NewDesc(
			"foggytcp_segments_dropped_total",
			"Datagrams discarded by decode validation or the ingress classifier.",
			withReason, nil,
		),
		retransmits: prometheus.NewDesc(
			"foggytcp_retransmits_total",
			"Segments retransmitted, by fast retransmit or RTO.",
			withConnID, nil,
		),
		cwndBytes: prometheus.NewDesc(
			"foggytcp_cwnd_bytes",
			"Current congestion window size in bytes.",
			withConnID, nil,
		),
		renoState: prometheus.NewDesc(
			"foggytcp_reno_state",
			"Current Reno state: 0=slow-start, 1=congestion-avoidance, 2=fast-recovery.",
			withConnID, nil,
		),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.segmentsDropped
	descs <- c.retransmits
	descs <- c.cwndBytes
	descs <- c.renoState
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	entries := make([]*connStats, 0, len(c.conns))
	for _, e := range c.conns {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		labels := append(append([]string(nil), e.labels...), e.id.String())
		for reason, n := range e.segmentsDropped {
			reasonLabels := append(append([]string(nil), labels...), string(reason))
			metrics <- prometheus.MustNewConstMetric(c.segmentsDropped, prometheus.CounterValue, float64(n), reasonLabels...)
		}
		metrics <- prometheus.MustNewConstMetric(c.retransmits, prometheus.CounterValue, float64(e.retransmits), labels...)
		metrics <- prometheus.MustNewConstMetric(c.cwndBytes, prometheus.GaugeValue, e.cwnd, labels...)
		metrics <- prometheus.MustNewConstMetric(c.renoState, prometheus.GaugeValue, float64(e.renoState), labels...)
		e.mu.Unlock()
	}
}

// Add registers a new connection's stats under id, returning the connStats
// the connection should update directly as it runs.
func (c *Collector) Add(id xid.ID, labels []string) *connStats {
	e := &connStats{id: id, labels: labels, segmentsDropped: make(map[DropReason]uint64)}
	c.mu.Lock()
	c.conns[id] = e
	c.mu.Unlock()
	return e
}

// Remove unregisters a closed connection's stats.
func (c *Collector) Remove(id xid.ID) {
	c.mu.Lock()
	delete(c.conns, id)
	c.mu.Unlock()
}

func (e *connStats) recordDrop(reason DropReason) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.segmentsDropped[reason]++
	e.mu.Unlock()
}

func (e *connStats) recordRetransmit() {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.retransmits++
	e.mu.Unlock()
}

func (e *connStats) setCongestionState(cwnd Size, state RenoState) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.cwnd = float64(cwnd)
	e.renoState = state
	e.mu.Unlock()
}
