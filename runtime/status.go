package runtime

import (
	"github.com/calliope-io/herald/metrics"
	"github.com/calliope-io/herald/track"
)

// StatusUpdate is a point-in-time view of the run, pushed after each
// processed snapshot. Consumers (the TUI status view) read from a buffered
// channel; updates are dropped rather than blocking the ingest path.
type StatusUpdate struct {
	// Track is the most recently observed snapshot.
	Track track.Snapshot
	// Reported is true when the snapshot was sent and acknowledged.
	Reported bool
	// Deduped is true when the snapshot matched the previous one.
	Deduped bool
	// Err holds the report error message, if any.
	Err string
	// Metrics is the current counter state.
	Metrics metrics.Snapshot
}
