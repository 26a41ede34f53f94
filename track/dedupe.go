package track

import "sync"

// Deduper suppresses redundant track reports. The watcher emits a snapshot
// on a fixed timer whether or not anything changed; without this gate every
// tick would contact the presence service again.
//
// The zero value is ready to use: the remembered snapshot starts out with
// all fields absent, so the first observation of a real track reports.
type Deduper struct {
	mu   sync.Mutex
	last Snapshot
}

// ShouldReport compares the incoming snapshot against the last remembered
// one and returns true when at least one field differs (including
// transitions to or from absence). The remembered snapshot is always
// replaced, whether or not a report is due.
func (d *Deduper) ShouldReport(incoming Snapshot) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	changed := !d.last.Equal(incoming)
	d.last = incoming
	return changed
}

// Last returns the most recently remembered snapshot.
func (d *Deduper) Last() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
