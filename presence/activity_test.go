package presence

import (
	"testing"
	"time"

	"github.com/calliope-io/herald/track"
)

func strPtr(s string) *string { return &s }
func u64Ptr(v uint64) *uint64 { return &v }

var testClock = time.Unix(1_700_000_000, 0)

func TestBuildActivity_FullSnapshot(t *testing.T) {
	snap := track.Snapshot{
		Title:    strPtr("Song A"),
		Artist:   strPtr("Artist X"),
		AlbumArt: strPtr("http://x/a.png"),
		Duration: u64Ptr(200),
	}

	activity, ok := BuildActivity(snap, testClock, DefaultBranding())
	if !ok {
		t.Fatal("BuildActivity returned ok=false for a displayable snapshot")
	}

	if activity.Timestamps.Start != testClock.Unix() {
		t.Errorf("Start = %d, want %d", activity.Timestamps.Start, testClock.Unix())
	}
	if activity.Timestamps.End == nil || *activity.Timestamps.End != testClock.Unix()+200 {
		t.Errorf("End = %v, want %d", activity.Timestamps.End, testClock.Unix()+200)
	}
	if activity.Details == nil || *activity.Details != "Song A" {
		t.Errorf("Details = %v, want Song A", activity.Details)
	}
	if activity.State == nil || *activity.State != "by Artist X" {
		t.Errorf("State = %v, want %q", activity.State, "by Artist X")
	}
	if activity.Assets.LargeImage == nil || *activity.Assets.LargeImage != "http://x/a.png" {
		t.Errorf("LargeImage = %v, want album art URL", activity.Assets.LargeImage)
	}
	if activity.Type != ActivityTypeListening {
		t.Errorf("Type = %d, want %d", activity.Type, ActivityTypeListening)
	}
	if len(activity.Buttons) != 1 {
		t.Fatalf("Buttons = %d entries, want 1", len(activity.Buttons))
	}
}

func TestBuildActivity_NoTitleNoArtist(t *testing.T) {
	tests := []struct {
		name string
		snap track.Snapshot
	}{
		{"all absent", track.Snapshot{}},
		{"empty strings", track.Snapshot{Title: strPtr(""), Artist: strPtr("")}},
		{
			"art and duration only",
			track.Snapshot{AlbumArt: strPtr("http://x/a.png"), Duration: u64Ptr(90)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := BuildActivity(tt.snap, testClock, DefaultBranding()); ok {
				t.Error("BuildActivity should return ok=false when title and artist are both missing")
			}
		})
	}
}

func TestBuildActivity_OptionalFieldsOmitted(t *testing.T) {
	snap := track.Snapshot{Title: strPtr("Song A")}

	activity, ok := BuildActivity(snap, testClock, DefaultBranding())
	if !ok {
		t.Fatal("BuildActivity returned ok=false")
	}
	if activity.Timestamps.End != nil {
		t.Error("End should be absent without a duration")
	}
	if activity.State != nil {
		t.Error("State should be absent without an artist")
	}
	if activity.Assets.LargeImage != nil {
		t.Error("LargeImage should be absent without album art")
	}
}

func TestBuildActivity_EndRecomputedFromNow(t *testing.T) {
	snap := track.Snapshot{Title: strPtr("Song A"), Duration: u64Ptr(210)}

	later := testClock.Add(42 * time.Second)
	activity, _ := BuildActivity(snap, later, DefaultBranding())

	if activity.Timestamps.Start != later.Unix() {
		t.Errorf("Start = %d, want %d", activity.Timestamps.Start, later.Unix())
	}
	if *activity.Timestamps.End != later.Unix()+210 {
		t.Errorf("End = %d, want start+210", *activity.Timestamps.End)
	}
}
