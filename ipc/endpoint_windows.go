//go:build windows

package ipc

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// EndpointCandidates returns the named pipe paths to probe, in priority
// order. When override is non-empty it is the only candidate.
func EndpointCandidates(override string) []string {
	if override != "" {
		return []string{override}
	}

	paths := make([]string, 0, 10)
	for i := range 10 {
		paths = append(paths, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
	}
	return paths
}

// DefaultDialer returns the platform dialer for the local presence channel.
// When endpoint is non-empty only that pipe path is tried.
func DefaultDialer(endpoint string) Dialer {
	return &pipeDialer{paths: EndpointCandidates(endpoint)}
}

// pipeDialer opens a named pipe as a duplex file, the same way the
// presence service's own clients do.
type pipeDialer struct {
	paths []string
}

func (d *pipeDialer) Dial() (io.ReadWriteCloser, error) {
	var lastErr error
	for _, path := range d.paths {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err == nil {
			return f, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate endpoints")
	}
	return nil, fmt.Errorf("ipc: no presence endpoint reachable: %w", lastErr)
}
