package track

import "testing"

func strPtr(s string) *string { return &s }
func u64Ptr(v uint64) *uint64 { return &v }

func TestSnapshot_Equal(t *testing.T) {
	base := Snapshot{
		Title:    strPtr("Song A"),
		Artist:   strPtr("Artist X"),
		AlbumArt: strPtr("http://x/a.png"),
		Duration: u64Ptr(200),
	}

	tests := []struct {
		name  string
		other Snapshot
		want  bool
	}{
		{
			name: "identical values",
			other: Snapshot{
				Title:    strPtr("Song A"),
				Artist:   strPtr("Artist X"),
				AlbumArt: strPtr("http://x/a.png"),
				Duration: u64Ptr(200),
			},
			want: true,
		},
		{
			name: "title differs",
			other: Snapshot{
				Title:    strPtr("Song B"),
				Artist:   strPtr("Artist X"),
				AlbumArt: strPtr("http://x/a.png"),
				Duration: u64Ptr(200),
			},
			want: false,
		},
		{
			name: "duration absent vs present",
			other: Snapshot{
				Title:    strPtr("Song A"),
				Artist:   strPtr("Artist X"),
				AlbumArt: strPtr("http://x/a.png"),
			},
			want: false,
		},
		{
			name: "duration value differs",
			other: Snapshot{
				Title:    strPtr("Song A"),
				Artist:   strPtr("Artist X"),
				AlbumArt: strPtr("http://x/a.png"),
				Duration: u64Ptr(210),
			},
			want: false,
		},
		{
			name: "absent title vs empty title",
			other: Snapshot{
				Title:    strPtr(""),
				Artist:   strPtr("Artist X"),
				AlbumArt: strPtr("http://x/a.png"),
				Duration: u64Ptr(200),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("two empty snapshots are equal", func(t *testing.T) {
		if !(Snapshot{}).Equal(Snapshot{}) {
			t.Error("empty snapshots should compare equal")
		}
	})
}

func TestSnapshot_Displayable(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"title only", Snapshot{Title: strPtr("Song A")}, true},
		{"artist only", Snapshot{Artist: strPtr("Artist X")}, true},
		{"neither", Snapshot{AlbumArt: strPtr("http://x/a.png"), Duration: u64Ptr(90)}, false},
		{"empty strings", Snapshot{Title: strPtr(""), Artist: strPtr("")}, false},
		{"zero value", Snapshot{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Displayable(); got != tt.want {
				t.Errorf("Displayable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_DurationSeconds(t *testing.T) {
	if _, ok := (Snapshot{}).DurationSeconds(); ok {
		t.Error("absent duration should report ok=false")
	}
	if d, ok := (Snapshot{Duration: u64Ptr(180)}).DurationSeconds(); !ok || d != 180 {
		t.Errorf("DurationSeconds() = (%d, %v), want (180, true)", d, ok)
	}
}
