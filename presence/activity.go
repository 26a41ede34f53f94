// Package presence owns the presence session: the supervised connection
// slot and the activity reporter that feeds it.
package presence

import (
	"time"

	"github.com/calliope-io/herald/track"
)

// ActivityTypeListening is the activity type marker for music playback.
const ActivityTypeListening = 2

// Branding holds the fixed presentation values attached to every activity.
// Injected once at construction; never read from mutable globals.
type Branding struct {
	Name        string
	SmallImage  string
	SmallText   string
	ButtonLabel string
	ButtonURL   string
	// ActivityType is the activity type marker (default listening).
	ActivityType int
}

// DefaultBranding returns the stock herald presentation.
func DefaultBranding() Branding {
	return Branding{
		Name:         "herald",
		SmallImage:   "herald",
		SmallText:    "herald",
		ButtonLabel:  "herald",
		ButtonURL:    "https://github.com/calliope-io/herald",
		ActivityType: ActivityTypeListening,
	}
}

// Activity is the transient presence payload derived from one track
// snapshot. Never persisted; recomputed on every report attempt.
type Activity struct {
	Timestamps Timestamps `json:"timestamps"`
	Assets     Assets     `json:"assets"`
	Details    *string    `json:"details,omitempty"`
	State      *string    `json:"state,omitempty"`
	Type       int        `json:"type"`
	Name       string     `json:"name"`
	Buttons    []Button   `json:"buttons"`
}

// Timestamps holds the activity time window in epoch seconds.
type Timestamps struct {
	Start int64  `json:"start"`
	End   *int64 `json:"end,omitempty"`
}

// Assets holds the activity image references.
type Assets struct {
	LargeImage *string `json:"large_image,omitempty"`
	SmallImage string  `json:"small_image"`
	SmallText  string  `json:"small_text"`
}

// Button is one external-link button on the activity card.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// BuildActivity derives the presence payload from a track snapshot.
// Returns false when the snapshot has neither title nor artist: there is
// nothing meaningful to show and the caller must not send anything.
//
// start is the current wall clock; end is start+duration when the track
// length is known.
func BuildActivity(snap track.Snapshot, now time.Time, branding Branding) (*Activity, bool) {
	if !snap.Displayable() {
		return nil, false
	}

	start := now.Unix()
	activity := &Activity{
		Timestamps: Timestamps{Start: start},
		Assets: Assets{
			SmallImage: branding.SmallImage,
			SmallText:  branding.SmallText,
		},
		Type:    branding.ActivityType,
		Name:    branding.Name,
		Buttons: []Button{{Label: branding.ButtonLabel, URL: branding.ButtonURL}},
	}

	if duration, ok := snap.DurationSeconds(); ok {
		end := start + int64(duration)
		activity.Timestamps.End = &end
	}
	if art := snap.AlbumArtText(); art != "" {
		activity.Assets.LargeImage = &art
	}
	if title := snap.TitleText(); title != "" {
		activity.Details = &title
	}
	if artist := snap.ArtistText(); artist != "" {
		state := "by " + artist
		activity.State = &state
	}

	return activity, true
}
