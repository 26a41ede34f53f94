package ipc

import "io"

// Conn is a handshaken presence channel: one duplex byte-stream endpoint
// plus the process id used in command payloads. Created only by a
// successful handshake; owned by exactly one supervisor slot at a time.
//
// The channel is strictly request/response, one frame at a time. Conn does
// no internal locking: callers serialize Send/Recv pairs.
type Conn struct {
	rw  io.ReadWriteCloser
	pid int
}

// NewConn wraps an already-negotiated channel. Production code obtains
// connections from Connector.Connect; tests and custom transports use
// NewConn directly.
func NewConn(rw io.ReadWriteCloser, pid int) *Conn {
	return &Conn{rw: rw, pid: pid}
}

// Send writes one frame to the channel.
func (c *Conn) Send(op Opcode, payload string) error {
	return WriteMessage(c.rw, op, payload)
}

// Recv blocks until one frame is available.
func (c *Conn) Recv() (Opcode, string, error) {
	return ReadMessage(c.rw)
}

// PID returns the process id negotiated for this connection.
func (c *Conn) PID() int { return c.pid }

// Close closes the underlying channel.
func (c *Conn) Close() error {
	return c.rw.Close()
}
