// Package notify defines the downstream notification boundary.
//
// Notifiers publish track change events to external systems. The runtime
// owns notifier lifecycle; users provide configuration only. Notification
// failures never affect presence reporting.
package notify

import (
	"context"
	"time"

	"github.com/calliope-io/herald/track"
)

// TrackChangedEventType is the event_type value for track change events.
const TrackChangedEventType = "track_changed"

// TrackChangedEvent is the payload published when the reported track changes.
type TrackChangedEvent struct {
	EventType string `json:"event_type"` // always "track_changed"
	ClientID  string `json:"client_id"`
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
	AlbumArt  string `json:"album_art,omitempty"`
	Duration  uint64 `json:"duration,omitempty"`
	Timestamp string `json:"timestamp"` // ISO 8601
}

// NewTrackChangedEvent builds an event from a reported snapshot.
func NewTrackChangedEvent(clientID string, snap track.Snapshot, now time.Time) *TrackChangedEvent {
	event := &TrackChangedEvent{
		EventType: TrackChangedEventType,
		ClientID:  clientID,
		Title:     snap.TitleText(),
		Artist:    snap.ArtistText(),
		AlbumArt:  snap.AlbumArtText(),
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	if duration, ok := snap.DurationSeconds(); ok {
		event.Duration = duration
	}
	return event
}

// Notifier publishes track change events to a downstream system.
// Implementations must be safe for reuse across events.
type Notifier interface {
	// Publish sends a track change event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *TrackChangedEvent) error

	// Close releases notifier resources.
	Close() error
}
