//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"
)

// dialTimeout bounds one socket connect attempt. The endpoint is local, so
// anything slower than this means the socket is dead.
const dialTimeout = 2 * time.Second

// socketSubdirs are the locations the presence service is known to place
// its socket under the base runtime directory, depending on how it was
// packaged.
var socketSubdirs = []string{
	"",
	"app",
	"snap.discord",
	filepath.Join(".flatpak", "com.discordapp.Discord", "xdg-run"),
}

// EndpointCandidates returns the socket paths to probe, in priority order.
// When override is non-empty it is the only candidate.
func EndpointCandidates(override string) []string {
	if override != "" {
		return []string{override}
	}

	var bases []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" {
			bases = append(bases, dir)
		}
	}
	bases = append(bases, "/tmp")

	var paths []string
	for _, base := range bases {
		for _, sub := range socketSubdirs {
			for i := range 10 {
				paths = append(paths, filepath.Join(base, sub, fmt.Sprintf("discord-ipc-%d", i)))
			}
		}
	}
	return paths
}

// DefaultDialer returns the platform dialer for the local presence channel.
// When endpoint is non-empty only that socket path is tried.
func DefaultDialer(endpoint string) Dialer {
	return &socketDialer{paths: EndpointCandidates(endpoint)}
}

// socketDialer connects over a Unix domain socket.
type socketDialer struct {
	paths []string
}

func (d *socketDialer) Dial() (io.ReadWriteCloser, error) {
	var lastErr error
	for _, path := range d.paths {
		conn, err := net.DialTimeout("unix", path, dialTimeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate endpoints")
	}
	return nil, fmt.Errorf("ipc: no presence endpoint reachable: %w", lastErr)
}
