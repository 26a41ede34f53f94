// Package track defines the track snapshot model and change detection.
package track

// Snapshot is one immutable observation of currently playing track metadata.
// Every field is optional; a nil pointer means the watcher could not extract
// the field and is distinct from an empty string.
//
// Tags cover both wire encodings: msgpack on the watcher channel, JSON in
// notifier payloads.
type Snapshot struct {
	Title    *string `json:"title,omitempty" msgpack:"title,omitempty"`
	Artist   *string `json:"artist,omitempty" msgpack:"artist,omitempty"`
	AlbumArt *string `json:"album_art,omitempty" msgpack:"album_art,omitempty"`
	// Duration is the track length in whole seconds.
	Duration *uint64 `json:"duration,omitempty" msgpack:"duration,omitempty"`
}

// Equal reports whether two snapshots agree on all four fields.
// Absence (nil) is a distinct value from any present value.
func (s Snapshot) Equal(other Snapshot) bool {
	return strPtrEqual(s.Title, other.Title) &&
		strPtrEqual(s.Artist, other.Artist) &&
		strPtrEqual(s.AlbumArt, other.AlbumArt) &&
		u64PtrEqual(s.Duration, other.Duration)
}

// Displayable reports whether the snapshot carries anything worth showing:
// at least one of title or artist is present and non-empty.
func (s Snapshot) Displayable() bool {
	return s.TitleText() != "" || s.ArtistText() != ""
}

// TitleText returns the title or "" when absent.
func (s Snapshot) TitleText() string { return strValue(s.Title) }

// ArtistText returns the artist or "" when absent.
func (s Snapshot) ArtistText() string { return strValue(s.Artist) }

// AlbumArtText returns the album art URL or "" when absent.
func (s Snapshot) AlbumArtText() string { return strValue(s.AlbumArt) }

// DurationSeconds returns the duration and whether it is present.
func (s Snapshot) DurationSeconds() (uint64, bool) {
	if s.Duration == nil {
		return 0, false
	}
	return *s.Duration, true
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u64PtrEqual(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
