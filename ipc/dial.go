package ipc

import "io"

// Dialer opens one raw duplex channel to the local presence service.
// It is the platform capability boundary: Unix domain sockets on most
// platforms, named pipes on Windows. Tests inject fakes.
type Dialer interface {
	Dial() (io.ReadWriteCloser, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func() (io.ReadWriteCloser, error)

// Dial implements Dialer.
func (f DialerFunc) Dial() (io.ReadWriteCloser, error) { return f() }
