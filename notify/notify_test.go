package notify

import (
	"testing"
	"time"

	"github.com/calliope-io/herald/track"
)

func strPtr(s string) *string { return &s }
func u64Ptr(v uint64) *uint64 { return &v }

func TestNewTrackChangedEvent(t *testing.T) {
	snap := track.Snapshot{
		Title:    strPtr("Song A"),
		Artist:   strPtr("Artist X"),
		AlbumArt: strPtr("http://x/a.png"),
		Duration: u64Ptr(200),
	}
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

	event := NewTrackChangedEvent("123456789", snap, now)

	if event.EventType != TrackChangedEventType {
		t.Errorf("EventType = %q, want %q", event.EventType, TrackChangedEventType)
	}
	if event.ClientID != "123456789" {
		t.Errorf("ClientID = %q, want 123456789", event.ClientID)
	}
	if event.Title != "Song A" || event.Artist != "Artist X" {
		t.Errorf("Title/Artist = %q/%q", event.Title, event.Artist)
	}
	if event.Duration != 200 {
		t.Errorf("Duration = %d, want 200", event.Duration)
	}
	if event.Timestamp != "2026-02-07T12:00:00Z" {
		t.Errorf("Timestamp = %q", event.Timestamp)
	}
}

func TestNewTrackChangedEvent_AbsentFields(t *testing.T) {
	snap := track.Snapshot{Title: strPtr("Solo")}
	event := NewTrackChangedEvent("c", snap, time.Unix(0, 0))

	if event.Artist != "" || event.AlbumArt != "" {
		t.Errorf("absent fields must map to empty strings, got %q/%q", event.Artist, event.AlbumArt)
	}
	if event.Duration != 0 {
		t.Errorf("absent duration must map to 0, got %d", event.Duration)
	}
}
