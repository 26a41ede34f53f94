package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// WatcherConfig configures the external watcher process.
type WatcherConfig struct {
	// Command is the path to the watcher binary.
	Command string
	// Args are extra arguments passed to the watcher.
	Args []string
	// URL is the page or endpoint the watcher observes.
	URL string
	// PollInterval is how often the watcher samples track state.
	// Zero leaves the interval to the watcher's default.
	PollInterval time.Duration
}

// WatcherResult represents the result of a finished watcher process.
type WatcherResult struct {
	// ExitCode is the process exit code.
	ExitCode int
	// StderrBytes is the captured stderr output.
	StderrBytes []byte
}

// Watcher is the process surface the runtime drives. Satisfied by
// WatcherManager; test doubles substitute scripted streams.
type Watcher interface {
	Start(ctx context.Context) error
	Stdout() io.Reader
	Wait() (*WatcherResult, error)
	Kill() error
}

// WatcherManager manages the watcher process lifecycle.
type WatcherManager struct {
	config *WatcherConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// NewWatcherManager creates a new watcher manager.
func NewWatcherManager(config *WatcherConfig) *WatcherManager {
	return &WatcherManager{
		config: config,
	}
}

// watcherInput is the JSON structure written to watcher stdin.
type watcherInput struct {
	URL            string `json:"url"`
	PollIntervalMS int64  `json:"poll_interval_ms,omitempty"`
}

// Start starts the watcher process.
// The process reads its configuration from stdin (JSON).
// Stdout carries event frames. Stderr is captured for diagnostics.
func (m *WatcherManager) Start(ctx context.Context) error {
	m.cmd = exec.CommandContext(ctx, m.config.Command, m.config.Args...)

	stdin, err := m.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	m.stdin = stdin

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	m.stdout = stdout

	stderr, err := m.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	m.stderr = stderr

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	input := watcherInput{
		URL:            m.config.URL,
		PollIntervalMS: m.config.PollInterval.Milliseconds(),
	}

	if err := json.NewEncoder(stdin).Encode(input); err != nil {
		_ = m.Kill()
		return fmt.Errorf("failed to write input: %w", err)
	}

	// Close stdin to signal input complete
	if err := stdin.Close(); err != nil {
		_ = m.Kill()
		return fmt.Errorf("failed to close stdin: %w", err)
	}

	return nil
}

// Stdout returns the stdout reader for frame ingestion.
func (m *WatcherManager) Stdout() io.Reader {
	return m.stdout
}

// Stderr returns the stderr reader for diagnostic capture.
func (m *WatcherManager) Stderr() io.Reader {
	return m.stderr
}

// Wait waits for the watcher to exit and returns the result.
// Must be called after Start.
func (m *WatcherManager) Wait() (*WatcherResult, error) {
	if m.cmd == nil {
		return nil, errors.New("watcher not started")
	}

	// Read stderr before Wait closes the pipe
	stderrBytes, _ := io.ReadAll(m.stderr)

	err := m.cmd.Wait()

	result := &WatcherResult{
		StderrBytes: stderrBytes,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				result.ExitCode = status.ExitStatus()
			} else {
				result.ExitCode = -1
			}
		} else {
			return nil, fmt.Errorf("watcher wait failed: %w", err)
		}
	} else {
		result.ExitCode = 0
	}

	return result, nil
}

// Kill terminates the watcher process.
func (m *WatcherManager) Kill() error {
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Kill()
	}
	return nil
}
