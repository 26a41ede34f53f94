package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/calliope-io/herald/log"
)

// Connection retry defaults. Opening the channel is retried on open failure
// only; a failure after the channel is open is terminal for that attempt.
const (
	DefaultConnectAttempts   = 10
	DefaultConnectRetryDelay = 500 * time.Millisecond
)

// Protocol constants for the handshake exchange.
const (
	handshakeVersion = 1
	cmdDispatch      = "DISPATCH"
	evtReady         = "READY"
)

// HandshakeErrorKind classifies handshake failures.
type HandshakeErrorKind int

const (
	// HandshakeConnectFailed indicates the channel could not be opened
	// within the retry budget, or broke during the handshake exchange.
	HandshakeConnectFailed HandshakeErrorKind = iota
	// HandshakeUnexpectedOpcode indicates a response frame with an opcode
	// other than OpFrame.
	HandshakeUnexpectedOpcode
	// HandshakeRejected indicates a well-formed response that was not a
	// READY dispatch.
	HandshakeRejected
	// HandshakeMalformedResponse indicates a response payload that did not
	// parse as a JSON object.
	HandshakeMalformedResponse
)

// HandshakeError represents a failed connection attempt.
type HandshakeError struct {
	Kind HandshakeErrorKind
	Msg  string
	Err  error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// handshakeRequest is the opcode-0 negotiation payload.
type handshakeRequest struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

// dispatchEnvelope is the shape probed on inbound dispatch payloads.
type dispatchEnvelope struct {
	Cmd string `json:"cmd"`
	Evt string `json:"evt"`
}

// Connector opens the presence channel and performs the handshake.
// Zero-value retry fields fall back to the protocol defaults; tests
// shrink them.
type Connector struct {
	// Dialer opens the raw channel (required).
	Dialer Dialer
	// ClientID is the application identity sent in the handshake (required).
	ClientID string
	// PID is the process id attached to the resulting connection.
	PID int
	// Attempts bounds the open retry loop (default DefaultConnectAttempts).
	Attempts int
	// RetryDelay is the fixed inter-attempt delay (default DefaultConnectRetryDelay).
	RetryDelay time.Duration
	// Logger receives per-attempt diagnostics. Optional.
	Logger *log.Logger
}

// Connect opens the channel, retrying open failures up to the attempt
// budget, then performs the opcode-0/opcode-1 handshake. On success the
// returned connection is ready for commands.
//
// A rejected or malformed handshake is terminal for this attempt: the
// caller retries by invoking Connect again, never piecemeal.
func (c *Connector) Connect(ctx context.Context) (*Conn, error) {
	logger := c.Logger
	if logger == nil {
		logger = log.Nop()
	}
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultConnectRetryDelay
	}

	rw, err := c.open(ctx, attempts, delay, logger)
	if err != nil {
		return nil, err
	}

	conn, err := c.handshake(rw)
	if err != nil {
		_ = rw.Close()
		return nil, err
	}

	logger.Info("presence channel ready", map[string]any{
		"attempts_budget": attempts,
	})
	return conn, nil
}

// open retries the raw dial up to the attempt budget with a fixed delay.
func (c *Connector) open(ctx context.Context, attempts int, delay time.Duration, logger *log.Logger) (io.ReadWriteCloser, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		opened, dialErr := c.Dialer.Dial()
		if dialErr == nil {
			return opened, nil
		}
		lastErr = dialErr

		logger.Warn("presence channel open failed", map[string]any{
			"attempt": attempt,
			"error":   dialErr.Error(),
		})

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &HandshakeError{
				Kind: HandshakeConnectFailed,
				Msg:  "connect canceled",
				Err:  ctx.Err(),
			}
		case <-time.After(delay):
		}
	}

	return nil, &HandshakeError{
		Kind: HandshakeConnectFailed,
		Msg:  fmt.Sprintf("failed to open presence channel after %d attempts", attempts),
		Err:  lastErr,
	}
}

// handshake performs the opcode-0/opcode-1 exchange on an open channel.
func (c *Connector) handshake(rw io.ReadWriteCloser) (*Conn, error) {
	request, err := json.Marshal(handshakeRequest{V: handshakeVersion, ClientID: c.ClientID})
	if err != nil {
		return nil, &HandshakeError{
			Kind: HandshakeConnectFailed,
			Msg:  "encode handshake request",
			Err:  err,
		}
	}

	if err := WriteMessage(rw, OpHandshake, string(request)); err != nil {
		return nil, &HandshakeError{
			Kind: HandshakeConnectFailed,
			Msg:  "send handshake",
			Err:  err,
		}
	}

	op, payload, err := ReadMessage(rw)
	if err != nil {
		return nil, &HandshakeError{
			Kind: HandshakeConnectFailed,
			Msg:  "read handshake response",
			Err:  err,
		}
	}
	if op != OpFrame {
		return nil, &HandshakeError{
			Kind: HandshakeUnexpectedOpcode,
			Msg:  fmt.Sprintf("unexpected opcode %d in handshake response", op),
		}
	}

	var envelope dispatchEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, &HandshakeError{
			Kind: HandshakeMalformedResponse,
			Msg:  "parse handshake response",
			Err:  err,
		}
	}
	if envelope.Cmd != cmdDispatch || envelope.Evt != evtReady {
		return nil, &HandshakeError{
			Kind: HandshakeRejected,
			Msg:  fmt.Sprintf("handshake not ready: cmd=%q evt=%q", envelope.Cmd, envelope.Evt),
		}
	}

	return &Conn{rw: rw, pid: c.PID}, nil
}
