package observer

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/calliope-io/herald/track"
)

// Event command discriminants.
const (
	// TrackUpdateCmd identifies a track snapshot event.
	TrackUpdateCmd = "track_update"
	// LogCmd identifies a watcher diagnostic log event.
	LogCmd = "log"
)

// TrackUpdateEvent carries one observed track snapshot from the watcher.
// All metadata fields are optional; an absent field means the watcher could
// not observe it.
type TrackUpdateEvent struct {
	Cmd      string  `msgpack:"cmd"`
	Title    *string `msgpack:"title"`
	Artist   *string `msgpack:"artist"`
	AlbumArt *string `msgpack:"album_art"`
	Duration *uint64 `msgpack:"duration"`
}

// Snapshot converts the event into a track snapshot.
func (e *TrackUpdateEvent) Snapshot() track.Snapshot {
	return track.Snapshot{
		Title:    e.Title,
		Artist:   e.Artist,
		AlbumArt: e.AlbumArt,
		Duration: e.Duration,
	}
}

// LogEvent carries a diagnostic message from the watcher, forwarded to the
// host logger instead of polluting the watcher's stderr.
type LogEvent struct {
	Cmd     string `msgpack:"cmd"`
	Level   string `msgpack:"level"`
	Message string `msgpack:"message"`
}

// UnknownEvent represents an event with an unrecognized command.
// Unknown commands are tolerated so watcher versions can evolve
// independently of the host.
type UnknownEvent struct {
	Cmd string
}

// eventProbe is used to peek at the cmd field without full decode.
type eventProbe struct {
	Cmd string `msgpack:"cmd"`
}

// DecodeEvent decodes a frame payload into one of the event types.
// Discriminates on the cmd field: returns *TrackUpdateEvent, *LogEvent,
// or *UnknownEvent.
func DecodeEvent(payload []byte) (any, error) {
	var probe eventProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode event command",
			Err:  err,
		}
	}

	switch probe.Cmd {
	case TrackUpdateCmd:
		var event TrackUpdateEvent
		if err := msgpack.Unmarshal(payload, &event); err != nil {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Msg:  "failed to decode track update",
				Err:  err,
			}
		}
		return &event, nil
	case LogCmd:
		var event LogEvent
		if err := msgpack.Unmarshal(payload, &event); err != nil {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Msg:  "failed to decode log event",
				Err:  err,
			}
		}
		return &event, nil
	default:
		return &UnknownEvent{Cmd: probe.Cmd}, nil
	}
}
