// Package ipc implements the local presence channel: opcode-tagged message
// framing, connection establishment with bounded retry, and the asynchronous
// handshake that turns a raw duplex channel into a usable session.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"unicode/utf8"
)

// Opcode tags a message frame on the presence channel.
type Opcode uint32

// Opcodes defined by the presence wire protocol.
const (
	// OpHandshake carries the version/client-id negotiation.
	OpHandshake Opcode = 0
	// OpFrame carries commands and their dispatch responses.
	OpFrame Opcode = 1
	// OpClose signals orderly channel shutdown.
	OpClose Opcode = 2
	// OpPing and OpPong are keepalive probes. The service may send them;
	// herald never initiates them.
	OpPing Opcode = 3
	OpPong Opcode = 4
)

// Frame size constants.
const (
	// HeaderSize is the fixed frame header: opcode then payload length,
	// both little-endian uint32.
	HeaderSize = 8
	// MaxPayloadSize bounds a single payload. Frames on this channel are
	// small JSON documents; a larger length means the stream is desynced.
	MaxPayloadSize = 1 << 20
)

// ChannelErrorKind classifies framed channel errors.
type ChannelErrorKind int

const (
	// ChannelErrorTransport indicates a short read/write or channel closure.
	ChannelErrorTransport ChannelErrorKind = iota
	// ChannelErrorMalformed indicates payload bytes that are not valid text.
	ChannelErrorMalformed
	// ChannelErrorTooLarge indicates a length prefix exceeding MaxPayloadSize.
	ChannelErrorTooLarge
)

// ChannelError represents a framed channel error.
type ChannelError struct {
	Kind ChannelErrorKind
	Msg  string
	Err  error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// IsDisconnect reports whether err invalidates the connection it occurred
// on. Broken pipes, resets, and unexpected end-of-stream mean the channel is
// gone; an oversized length prefix means it can no longer be trusted.
// Malformed payload text does not invalidate the connection: the channel
// itself may still be healthy.
func IsDisconnect(err error) bool {
	var cerr *ChannelError
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case ChannelErrorTooLarge:
			return true
		case ChannelErrorMalformed:
			return false
		case ChannelErrorTransport:
			err = cerr.Err
		}
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed)
}

// WriteMessage writes one frame: an 8-byte little-endian header (opcode,
// payload byte length) followed by the raw payload bytes. The whole frame is
// written with a single Write call so a failed write never leaves a partial
// frame buffered.
func WriteMessage(w io.Writer, op Opcode, payload string) error {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return &ChannelError{
			Kind: ChannelErrorTransport,
			Msg:  "write frame",
			Err:  err,
		}
	}
	return nil
}

// ReadMessage blocks until one full frame is available and returns its
// opcode and payload text. A zero-length payload returns an empty string
// without attempting a payload read.
//
// Errors:
//   - *ChannelError with Kind=ChannelErrorTransport: short read or closure
//   - *ChannelError with Kind=ChannelErrorTooLarge: length prefix over limit
//   - *ChannelError with Kind=ChannelErrorMalformed: payload is not valid UTF-8
func ReadMessage(r io.Reader) (Opcode, string, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, "", &ChannelError{
			Kind: ChannelErrorTransport,
			Msg:  "read frame header",
			Err:  err,
		}
	}

	op := Opcode(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])

	if length > MaxPayloadSize {
		return 0, "", &ChannelError{
			Kind: ChannelErrorTooLarge,
			Msg:  fmt.Sprintf("payload length %d exceeds maximum %d", length, MaxPayloadSize),
		}
	}
	if length == 0 {
		return op, "", nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, "", &ChannelError{
			Kind: ChannelErrorTransport,
			Msg:  "read frame payload",
			Err:  err,
		}
	}

	if !utf8.Valid(payload) {
		return 0, "", &ChannelError{
			Kind: ChannelErrorMalformed,
			Msg:  fmt.Sprintf("payload of frame opcode %d is not valid UTF-8", op),
		}
	}

	return op, string(payload), nil
}
