package observer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeFrame encodes a payload with length prefix (matches watcher output).
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

// encodeEventFrame encodes an event as a framed msgpack payload.
func encodeEventFrame(t *testing.T, event any) []byte {
	t.Helper()
	payload, err := msgpack.Marshal(event)
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	return encodeFrame(payload)
}

func testStrPtr(s string) *string { return &s }
func testU64Ptr(v uint64) *uint64 { return &v }

func TestFrameDecoder_SingleTrackUpdate(t *testing.T) {
	event := &TrackUpdateEvent{
		Cmd:      TrackUpdateCmd,
		Title:    testStrPtr("Song A"),
		Artist:   testStrPtr("Artist X"),
		AlbumArt: testStrPtr("http://x/a.png"),
		Duration: testU64Ptr(200),
	}

	frame := encodeEventFrame(t, event)

	decoder := NewFrameDecoder(bytes.NewReader(frame))
	payload, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	decoded, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	update, ok := decoded.(*TrackUpdateEvent)
	if !ok {
		t.Fatalf("decoded type = %T, want *TrackUpdateEvent", decoded)
	}
	snap := update.Snapshot()
	if snap.TitleText() != "Song A" {
		t.Errorf("Title = %q, want Song A", snap.TitleText())
	}
	if snap.ArtistText() != "Artist X" {
		t.Errorf("Artist = %q, want Artist X", snap.ArtistText())
	}
	if d, ok := snap.DurationSeconds(); !ok || d != 200 {
		t.Errorf("Duration = %d (present=%v), want 200", d, ok)
	}
}

func TestFrameDecoder_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeEventFrame(t, &TrackUpdateEvent{Cmd: TrackUpdateCmd, Title: testStrPtr("One")}))
	buf.Write(encodeEventFrame(t, &LogEvent{Cmd: LogCmd, Level: "info", Message: "polling"}))
	buf.Write(encodeEventFrame(t, &TrackUpdateEvent{Cmd: TrackUpdateCmd, Title: testStrPtr("Two")}))

	decoder := NewFrameDecoder(&buf)

	wantTitles := []string{"One", "", "Two"}
	for i, want := range wantTitles {
		payload, err := decoder.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		decoded, err := DecodeEvent(payload)
		if err != nil {
			t.Fatalf("DecodeEvent %d failed: %v", i, err)
		}
		if update, ok := decoded.(*TrackUpdateEvent); ok {
			if got := update.Snapshot().TitleText(); got != want {
				t.Errorf("frame %d: Title = %q, want %q", i, got, want)
			}
		}
	}

	if _, err := decoder.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("after last frame: err = %v, want io.EOF", err)
	}
}

func TestFrameDecoder_PartialLengthPrefix(t *testing.T) {
	decoder := NewFrameDecoder(bytes.NewReader([]byte{0x00, 0x00}))
	_, err := decoder.ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("err = %v, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %d, want FrameErrorPartial", frameErr.Kind)
	}
	if !IsFatalFrameError(err) {
		t.Error("partial frame must be fatal")
	}
}

func TestFrameDecoder_TruncatedPayload(t *testing.T) {
	frame := encodeEventFrame(t, &LogEvent{Cmd: LogCmd, Message: "hello"})
	decoder := NewFrameDecoder(bytes.NewReader(frame[:len(frame)-3]))

	_, err := decoder.ReadFrame()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("err = %v, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %d, want FrameErrorPartial", frameErr.Kind)
	}
}

func TestFrameDecoder_OversizedFrame(t *testing.T) {
	var header [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(header[:], MaxPayloadSize+1)

	decoder := NewFrameDecoder(bytes.NewReader(header[:]))
	_, err := decoder.ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("err = %v, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("Kind = %d, want FrameErrorTooLarge", frameErr.Kind)
	}
	if !IsFatalFrameError(err) {
		t.Error("oversized frame must be fatal")
	}
}

func TestDecodeEvent_UnknownCommand(t *testing.T) {
	payload, err := msgpack.Marshal(map[string]any{"cmd": "seek", "position": 42})
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}

	decoded, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	unknown, ok := decoded.(*UnknownEvent)
	if !ok {
		t.Fatalf("decoded type = %T, want *UnknownEvent", decoded)
	}
	if unknown.Cmd != "seek" {
		t.Errorf("Cmd = %q, want seek", unknown.Cmd)
	}
}

func TestDecodeEvent_MalformedPayload(t *testing.T) {
	_, err := DecodeEvent([]byte{0xc1})

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("err = %v, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorDecode {
		t.Errorf("Kind = %d, want FrameErrorDecode", frameErr.Kind)
	}
	if IsFatalFrameError(err) {
		t.Error("decode error must not be fatal")
	}
}

func TestWriteFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload, err := msgpack.Marshal(&LogEvent{Cmd: LogCmd, Level: "warn", Message: "slow poll"})
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	decoder := NewFrameDecoder(&buf)
	got, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("round-tripped payload differs")
	}
}
