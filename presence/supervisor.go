package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calliope-io/herald/ipc"
	"github.com/calliope-io/herald/log"
	"github.com/calliope-io/herald/metrics"
)

// DefaultReconnectDelay is the pause before a reconnect attempt that was
// triggered by a transport failure. The presence service tears down all
// client channels when it restarts; reconnecting immediately just burns the
// retry budget while it comes back.
const DefaultReconnectDelay = 2 * time.Second

// Connector abstracts connection establishment for the supervisor.
// *ipc.Connector is the production implementation.
type Connector interface {
	Connect(ctx context.Context) (*ipc.Conn, error)
}

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Connector performs one full connect-with-handshake attempt (required).
	Connector Connector
	// Logger receives lifecycle diagnostics. Optional.
	Logger *log.Logger
	// Collector records reconnect metrics. Optional (nil-safe).
	Collector *metrics.Collector
	// ReconnectDelay is the pause before a transport-failure reconnect
	// (default DefaultReconnectDelay).
	ReconnectDelay time.Duration
	// Spawn dispatches background work. Defaults to `go`. Tests inject a
	// recorder or an inline runner.
	Spawn func(func())
}

// Supervisor owns the single shared connection slot. The slot holds either
// nothing or one valid connection; it is the only shared mutable state in
// the presence core. Slot access is mutually exclusive and the lock is
// never held across a blocking I/O call: connection attempts run on a
// background execution context and install their result into the slot,
// because the caller that triggered them may be long gone.
type Supervisor struct {
	connector      Connector
	logger         *log.Logger
	collector      *metrics.Collector
	reconnectDelay time.Duration
	spawn          func(func())

	mu   sync.Mutex
	conn *ipc.Conn

	// inFlight gates attempts: at most one in the air, extra triggers are
	// no-ops. Triggering while the slot is already empty is safe.
	inFlight atomic.Bool
}

// NewSupervisor creates a Supervisor. The slot starts empty; call Start to
// kick the initial connection attempt.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	spawn := cfg.Spawn
	if spawn == nil {
		spawn = func(fn func()) { go fn() }
	}
	return &Supervisor{
		connector:      cfg.Connector,
		logger:         logger,
		collector:      cfg.Collector,
		reconnectDelay: delay,
		spawn:          spawn,
	}
}

// Start makes the initial connection attempt asynchronously. If it fails,
// the slot stays empty until the first report triggers a reconnect.
func (s *Supervisor) Start() {
	s.scheduleAttempt(0)
}

// Acquire returns the current connection, or nil when the slot is empty.
// Never blocks on network activity.
func (s *Supervisor) Acquire() *ipc.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// InvalidateAndReconnect clears the slot immediately, so concurrent readers
// see it empty right away, and schedules one fresh connection attempt on a
// background context. One attempt per trigger; there is no retry loop here.
func (s *Supervisor) InvalidateAndReconnect(reason error) {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	fields := map[string]any{}
	if reason != nil {
		fields["reason"] = reason.Error()
	}
	s.logger.Warn("presence channel invalidated, scheduling reconnect", fields)

	s.scheduleAttempt(s.reconnectDelay)
}

// EnsureConnected schedules a connection attempt when the slot is empty.
// Idempotent and non-blocking: callers drop their work and rely on the next
// trigger rather than waiting for the result.
func (s *Supervisor) EnsureConnected() {
	if s.Acquire() != nil {
		return
	}
	s.scheduleAttempt(0)
}

// Close tears down the current connection, if any. In-flight background
// attempts are abandoned, not awaited.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// scheduleAttempt dispatches one background connection attempt after the
// given delay, unless one is already in the air.
func (s *Supervisor) scheduleAttempt(delay time.Duration) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	s.collector.IncReconnectScheduled()

	s.spawn(func() {
		defer s.inFlight.Store(false)

		if delay > 0 {
			time.Sleep(delay)
		}

		conn, err := s.connector.Connect(context.Background())
		if err != nil {
			s.collector.IncReconnectFailed()
			s.logger.Warn("presence connection attempt failed", map[string]any{
				"error": err.Error(),
			})
			return
		}

		s.mu.Lock()
		// A concurrent Close may have raced us; prefer the newest handle.
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.conn = conn
		s.mu.Unlock()

		s.collector.IncReconnectSucceeded()
		s.logger.Info("presence connection installed", map[string]any{
			"pid": conn.PID(),
		})
	})
}
