package axi4bus

import (
	"testing"
	"time"

	"github.com/behrlich/axi4bus/internal/constants"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("expected 0 initial ops, got %d", snap.TotalOps)
	}

	m.RecordRequest(true, 1024, 1_000_000)  // 1KB write, 1ms
	m.RecordRequest(false, 2048, 2_000_000) // 2KB read, 2ms

	snap = m.Snapshot()
	if snap.WriteRequests != 1 {
		t.Errorf("WriteRequests = %d, want 1", snap.WriteRequests)
	}
	if snap.ReadRequests != 1 {
		t.Errorf("ReadRequests = %d, want 1", snap.ReadRequests)
	}
	if snap.WriteBytes != 1024 {
		t.Errorf("WriteBytes = %d, want 1024", snap.WriteBytes)
	}
	if snap.ReadBytes != 2048 {
		t.Errorf("ReadBytes = %d, want 2048", snap.ReadBytes)
	}
}

func TestMetricsBeats(t *testing.T) {
	m := NewMetrics()

	m.RecordBeat(constants.RespOkay)
	m.RecordBeat(constants.RespOkay)
	m.RecordBeat(constants.RespSlvErr)
	m.RecordBeat(constants.RespDecErr)

	snap := m.Snapshot()
	if snap.OkayBeats != 2 {
		t.Errorf("OkayBeats = %d, want 2", snap.OkayBeats)
	}
	if snap.SlvErrBeats != 1 {
		t.Errorf("SlvErrBeats = %d, want 1", snap.SlvErrBeats)
	}
	if snap.DecErrBeats != 1 {
		t.Errorf("DecErrBeats = %d, want 1", snap.DecErrBeats)
	}

	expectedErrRate := float64(2) / float64(4) * 100.0
	if snap.ErrorRate < expectedErrRate-0.1 || snap.ErrorRate > expectedErrRate+0.1 {
		t.Errorf("ErrorRate = %.2f, want ~%.2f", snap.ErrorRate, expectedErrRate)
	}
}

func TestMetricsCreditWait(t *testing.T) {
	m := NewMetrics()

	m.RecordCreditWait(1000)
	m.RecordCreditWait(3000)

	snap := m.Snapshot()
	if snap.CreditWaitCount != 2 {
		t.Errorf("CreditWaitCount = %d, want 2", snap.CreditWaitCount)
	}
	if snap.AvgCreditWaitNs != 2000 {
		t.Errorf("AvgCreditWaitNs = %d, want 2000", snap.AvgCreditWaitNs)
	}
}

func TestMetricsBurstsAndBeats(t *testing.T) {
	m := NewMetrics()

	m.RecordBurstIssued(4, 16)
	m.RecordBurstIssued(2, 8)

	snap := m.Snapshot()
	if snap.BurstsIssued != 2 {
		t.Errorf("BurstsIssued = %d, want 2", snap.BurstsIssued)
	}
	if snap.BeatsTransferred != 6 {
		t.Errorf("BeatsTransferred = %d, want 6", snap.BeatsTransferred)
	}
	if snap.BurstBytes != 24 {
		t.Errorf("BurstBytes = %d, want 24", snap.BurstBytes)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)
	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)
	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest(true, 1024, 1_000_000)
	m.RecordBeat(constants.RespOkay)

	snap := m.Snapshot()
	if snap.TotalOps == 0 {
		t.Fatal("expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("expected 0 ops after reset, got %d", snap.TotalOps)
	}
	if snap.TotalBytes != 0 {
		t.Errorf("expected 0 bytes after reset, got %d", snap.TotalBytes)
	}
}

func TestObserver(t *testing.T) {
	observer := NoOpObserver{}
	observer.ObserveBurstIssued(4, 16)
	observer.ObserveBeatTransferred(constants.RespOkay)
	observer.ObserveCreditWait(100)
	observer.ObserveRequestComplete(true, 1024, 1000)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveBurstIssued(2, 8)
	metricsObserver.ObserveBeatTransferred(constants.RespOkay)
	metricsObserver.ObserveRequestComplete(true, 1024, 1_000_000)

	snap := m.Snapshot()
	if snap.BurstsIssued != 1 {
		t.Errorf("BurstsIssued = %d, want 1", snap.BurstsIssued)
	}
	if snap.WriteRequests != 1 {
		t.Errorf("WriteRequests = %d, want 1", snap.WriteRequests)
	}
	if snap.WriteBytes != 1024 {
		t.Errorf("WriteBytes = %d, want 1024", snap.WriteBytes)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordRequest(false, 1024, 500_000) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordRequest(true, 1024, 5_000_000) // 5ms
	}
	m.RecordRequest(true, 1024, 50_000_000) // 50ms

	snap := m.Snapshot()
	if snap.TotalOps != 100 {
		t.Errorf("expected 100 total ops, got %d", snap.TotalOps)
	}
	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}
}
