package metrics

import (
	"sync"
	"testing"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("client-1")

	c.IncSnapshotReceived()
	c.IncSnapshotReceived()
	c.IncSnapshotDeduped()
	c.IncReportSent()
	c.IncReportDropped()
	c.IncReportRejected()
	c.IncTransportError()
	c.IncReconnectScheduled()
	c.IncReconnectSucceeded()
	c.IncReconnectFailed()
	c.IncDecodeError()
	c.IncNotifyPublished()
	c.IncNotifyFailed()

	snap := c.Snapshot()

	if snap.SnapshotsReceived != 2 {
		t.Errorf("SnapshotsReceived = %d, want 2", snap.SnapshotsReceived)
	}
	if snap.SnapshotsDeduped != 1 {
		t.Errorf("SnapshotsDeduped = %d, want 1", snap.SnapshotsDeduped)
	}
	if snap.ReportsSent != 1 || snap.ReportsDropped != 1 || snap.ReportsRejected != 1 {
		t.Errorf("report counters = %d/%d/%d, want 1/1/1",
			snap.ReportsSent, snap.ReportsDropped, snap.ReportsRejected)
	}
	if snap.ReconnectsScheduled != 1 || snap.ReconnectsSucceeded != 1 || snap.ReconnectsFailed != 1 {
		t.Errorf("reconnect counters = %d/%d/%d, want 1/1/1",
			snap.ReconnectsScheduled, snap.ReconnectsSucceeded, snap.ReconnectsFailed)
	}
	if snap.ClientID != "client-1" {
		t.Errorf("ClientID = %q, want %q", snap.ClientID, "client-1")
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	// Must not panic, for every counter.
	c.IncSnapshotReceived()
	c.IncSnapshotDeduped()
	c.IncReportSent()
	c.IncReportDropped()
	c.IncReportRejected()
	c.IncTransportError()
	c.IncReconnectScheduled()
	c.IncReconnectSucceeded()
	c.IncReconnectFailed()
	c.IncDecodeError()
	c.IncNotifyPublished()
	c.IncNotifyFailed()

	snap := c.Snapshot()
	if snap.SnapshotsReceived != 0 {
		t.Errorf("nil collector SnapshotsReceived = %d, want 0", snap.SnapshotsReceived)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("client-1")
	c.IncReportSent()

	before := c.Snapshot()
	c.IncReportSent()
	after := c.Snapshot()

	if before.ReportsSent != 1 {
		t.Errorf("earlier snapshot mutated: ReportsSent = %d, want 1", before.ReportsSent)
	}
	if after.ReportsSent != 2 {
		t.Errorf("ReportsSent = %d, want 2", after.ReportsSent)
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector("client-1")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncSnapshotReceived()
		}()
	}
	wg.Wait()

	if got := c.Snapshot().SnapshotsReceived; got != 50 {
		t.Errorf("SnapshotsReceived = %d, want 50", got)
	}
}
