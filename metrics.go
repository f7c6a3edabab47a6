package axi4bus

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/axi4bus/internal/constants"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a write or read
// engine. One instance is normally shared by both engines of a Manager.
type Metrics struct {
	// Request-level counters
	WriteRequests atomic.Uint64
	ReadRequests  atomic.Uint64

	// Burst- and beat-level counters
	BurstsIssued     atomic.Uint64
	BeatsTransferred atomic.Uint64
	BurstBytes       atomic.Uint64

	// Byte counters
	WriteBytes atomic.Uint64
	ReadBytes  atomic.Uint64

	// Response-code counters
	OkayBeats   atomic.Uint64
	ExOkayBeats atomic.Uint64
	SlvErrBeats atomic.Uint64
	DecErrBeats atomic.Uint64

	// Credit-pool contention
	CreditWaitCount    atomic.Uint64
	CreditWaitTotalNs  atomic.Uint64

	// Performance tracking
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// Latency histogram buckets (cumulative counts)
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Lifecycle
	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordBurstIssued records a burst the issue task has driven on AW/AR,
// including the burst's bus-level byte count (beats * 2^size_log2, not the
// caller's logical request length).
func (m *Metrics) RecordBurstIssued(beats int, bytes uint64) {
	m.BurstsIssued.Add(1)
	m.BeatsTransferred.Add(uint64(beats))
	m.BurstBytes.Add(bytes)
}

// RecordBeat records one B or R beat's response code.
func (m *Metrics) RecordBeat(resp constants.ResponseCode) {
	switch resp {
	case constants.RespOkay:
		m.OkayBeats.Add(1)
	case constants.RespExOkay:
		m.ExOkayBeats.Add(1)
	case constants.RespSlvErr:
		m.SlvErrBeats.Add(1)
	case constants.RespDecErr:
		m.DecErrBeats.Add(1)
	}
}

// RecordCreditWait records time spent suspended acquiring a free ID.
func (m *Metrics) RecordCreditWait(waitedNs uint64) {
	if waitedNs == 0 {
		return
	}
	m.CreditWaitCount.Add(1)
	m.CreditWaitTotalNs.Add(waitedNs)
}

// RecordRequest records a completed write or read request.
func (m *Metrics) RecordRequest(isWrite bool, bytes uint64, latencyNs uint64) {
	if isWrite {
		m.WriteRequests.Add(1)
		m.WriteBytes.Add(bytes)
	} else {
		m.ReadRequests.Add(1)
		m.ReadBytes.Add(bytes)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the owning engine as stopped, freezing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics with derived stats.
type MetricsSnapshot struct {
	WriteRequests uint64
	ReadRequests  uint64

	BurstsIssued     uint64
	BeatsTransferred uint64
	BurstBytes       uint64

	WriteBytes uint64
	ReadBytes  uint64

	OkayBeats   uint64
	ExOkayBeats uint64
	SlvErrBeats uint64
	DecErrBeats uint64

	CreditWaitCount   uint64
	AvgCreditWaitNs   uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	WriteIOPS      float64
	ReadIOPS       float64
	WriteBandwidth float64
	ReadBandwidth  float64
	TotalOps       uint64
	TotalBytes     uint64
	ErrorRate      float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		WriteRequests:    m.WriteRequests.Load(),
		ReadRequests:     m.ReadRequests.Load(),
		BurstsIssued:     m.BurstsIssued.Load(),
		BeatsTransferred: m.BeatsTransferred.Load(),
		BurstBytes:       m.BurstBytes.Load(),
		WriteBytes:       m.WriteBytes.Load(),
		ReadBytes:        m.ReadBytes.Load(),
		OkayBeats:        m.OkayBeats.Load(),
		ExOkayBeats:      m.ExOkayBeats.Load(),
		SlvErrBeats:      m.SlvErrBeats.Load(),
		DecErrBeats:      m.DecErrBeats.Load(),
		CreditWaitCount:  m.CreditWaitCount.Load(),
	}

	snap.TotalOps = snap.WriteRequests + snap.ReadRequests
	snap.TotalBytes = snap.WriteBytes + snap.ReadBytes

	if snap.CreditWaitCount > 0 {
		snap.AvgCreditWaitNs = m.CreditWaitTotalNs.Load() / snap.CreditWaitCount
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.WriteIOPS = float64(snap.WriteRequests) / uptimeSeconds
		snap.ReadIOPS = float64(snap.ReadRequests) / uptimeSeconds
		snap.WriteBandwidth = float64(snap.WriteBytes) / uptimeSeconds
		snap.ReadBandwidth = float64(snap.ReadBytes) / uptimeSeconds
	}

	totalErrBeats := snap.SlvErrBeats + snap.DecErrBeats
	totalBeats := snap.OkayBeats + snap.ExOkayBeats + totalErrBeats
	if totalBeats > 0 {
		snap.ErrorRate = float64(totalErrBeats) / float64(totalBeats) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.WriteRequests.Store(0)
	m.ReadRequests.Store(0)
	m.BurstsIssued.Store(0)
	m.BeatsTransferred.Store(0)
	m.BurstBytes.Store(0)
	m.WriteBytes.Store(0)
	m.ReadBytes.Store(0)
	m.OkayBeats.Store(0)
	m.ExOkayBeats.Store(0)
	m.SlvErrBeats.Store(0)
	m.DecErrBeats.Store(0)
	m.CreditWaitCount.Store(0)
	m.CreditWaitTotalNs.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, implemented over
// interfaces.Observer so engine packages don't import the root package.
type Observer interface {
	ObserveBurstIssued(beats int, bytes uint64)
	ObserveBeatTransferred(resp constants.ResponseCode)
	ObserveCreditWait(waitedNs uint64)
	ObserveRequestComplete(isWrite bool, bytes uint64, latencyNs uint64)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveBurstIssued(int, uint64)                {}
func (NoOpObserver) ObserveBeatTransferred(constants.ResponseCode) {}
func (NoOpObserver) ObserveCreditWait(uint64)                      {}
func (NoOpObserver) ObserveRequestComplete(bool, uint64, uint64)   {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveBurstIssued(beats int, bytes uint64) {
	o.metrics.RecordBurstIssued(beats, bytes)
}

func (o *MetricsObserver) ObserveBeatTransferred(resp constants.ResponseCode) {
	o.metrics.RecordBeat(resp)
}

func (o *MetricsObserver) ObserveCreditWait(waitedNs uint64) {
	o.metrics.RecordCreditWait(waitedNs)
}

func (o *MetricsObserver) ObserveRequestComplete(isWrite bool, bytes uint64, latencyNs uint64) {
	o.metrics.RecordRequest(isWrite, bytes, latencyNs)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = NoOpObserver{}
