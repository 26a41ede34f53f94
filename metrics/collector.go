// Package metrics provides per-process metrics collection.
//
// The Collector accumulates counters for the lifetime of one herald run. It
// is a leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so callers never need to guard against a missing
// collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Observation
	SnapshotsReceived int64
	SnapshotsDeduped  int64

	// Reporting
	ReportsSent     int64
	ReportsDropped  int64
	ReportsRejected int64

	// Channel lifecycle
	TransportErrors      int64
	ReconnectsScheduled  int64
	ReconnectsSucceeded  int64
	ReconnectsFailed     int64

	// Decoding
	DecodeErrors int64

	// Downstream fanout
	NotifyPublished int64
	NotifyFailed    int64

	// Dimensions (informational, set at construction)
	ClientID string
}

// Collector accumulates counters for a single herald run.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	snapshotsReceived int64
	snapshotsDeduped  int64

	reportsSent     int64
	reportsDropped  int64
	reportsRejected int64

	transportErrors     int64
	reconnectsScheduled int64
	reconnectsSucceeded int64
	reconnectsFailed    int64

	decodeErrors int64

	notifyPublished int64
	notifyFailed    int64

	clientID string
}

// NewCollector creates a Collector with the client identity dimension.
func NewCollector(clientID string) *Collector {
	return &Collector{clientID: clientID}
}

// The nil guard must run before any field is touched: &c.<field> on a
// nil receiver already dereferences it, so every exported method checks
// for nil itself instead of delegating the check to inc.

// IncSnapshotReceived records one inbound track snapshot.
func (c *Collector) IncSnapshotReceived() {
	if c == nil {
		return
	}
	c.inc(&c.snapshotsReceived)
}

// IncSnapshotDeduped records a snapshot suppressed by the deduplicator.
func (c *Collector) IncSnapshotDeduped() {
	if c == nil {
		return
	}
	c.inc(&c.snapshotsDeduped)
}

// IncReportSent records a successfully acknowledged activity report.
func (c *Collector) IncReportSent() {
	if c == nil {
		return
	}
	c.inc(&c.reportsSent)
}

// IncReportDropped records a report abandoned before acknowledgement
// (missing connection, serialization failure, or transport error).
func (c *Collector) IncReportDropped() {
	if c == nil {
		return
	}
	c.inc(&c.reportsDropped)
}

// IncReportRejected records a protocol-level SET_ACTIVITY rejection.
func (c *Collector) IncReportRejected() {
	if c == nil {
		return
	}
	c.inc(&c.reportsRejected)
}

// IncTransportError records a connection-invalidating channel error.
func (c *Collector) IncTransportError() {
	if c == nil {
		return
	}
	c.inc(&c.transportErrors)
}

// IncReconnectScheduled records one scheduled background connection attempt.
func (c *Collector) IncReconnectScheduled() {
	if c == nil {
		return
	}
	c.inc(&c.reconnectsScheduled)
}

// IncReconnectSucceeded records a connection attempt that installed a handle.
func (c *Collector) IncReconnectSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.reconnectsSucceeded)
}

// IncReconnectFailed records a connection attempt that left the slot empty.
func (c *Collector) IncReconnectFailed() {
	if c == nil {
		return
	}
	c.inc(&c.reconnectsFailed)
}

// IncDecodeError records a malformed payload that did not invalidate
// the stream it arrived on.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// IncNotifyPublished records a successful downstream notification.
func (c *Collector) IncNotifyPublished() {
	if c == nil {
		return
	}
	c.inc(&c.notifyPublished)
}

// IncNotifyFailed records a failed downstream notification.
func (c *Collector) IncNotifyFailed() {
	if c == nil {
		return
	}
	c.inc(&c.notifyFailed)
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// Snapshot returns an immutable view of all counters.
// Safe to call on a nil collector (returns zero Snapshot).
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SnapshotsReceived:   c.snapshotsReceived,
		SnapshotsDeduped:    c.snapshotsDeduped,
		ReportsSent:         c.reportsSent,
		ReportsDropped:      c.reportsDropped,
		ReportsRejected:     c.reportsRejected,
		TransportErrors:     c.transportErrors,
		ReconnectsScheduled: c.reconnectsScheduled,
		ReconnectsSucceeded: c.reconnectsSucceeded,
		ReconnectsFailed:    c.reconnectsFailed,
		DecodeErrors:        c.decodeErrors,
		NotifyPublished:     c.notifyPublished,
		NotifyFailed:        c.notifyFailed,
		ClientID:            c.clientID,
	}
}
