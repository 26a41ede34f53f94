package presence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calliope-io/herald/ipc"
	"github.com/calliope-io/herald/log"
	"github.com/calliope-io/herald/metrics"
	"github.com/calliope-io/herald/track"
)

// Command protocol constants.
const (
	cmdSetActivity = "SET_ACTIVITY"
	evtError       = "ERROR"
)

// ErrNoConnection is returned when a report arrives while the slot is
// empty. The report is dropped, never queued; a reconnect has been
// triggered and the next snapshot change retries.
var ErrNoConnection = errors.New("presence: no connection")

// ReporterConfig configures a Reporter.
type ReporterConfig struct {
	// Supervisor provides the current connection (required).
	Supervisor *Supervisor
	// Branding holds the fixed presentation values (zero value gets
	// DefaultBranding).
	Branding Branding
	// Logger receives report diagnostics. Optional.
	Logger *log.Logger
	// Collector records report metrics. Optional (nil-safe).
	Collector *metrics.Collector
	// Now overrides the wall clock (tests).
	Now func() time.Time
	// Nonce overrides nonce generation (tests).
	Nonce func() string
}

// Reporter builds presence payloads from track snapshots and submits them
// over the currently installed connection.
type Reporter struct {
	sup       *Supervisor
	branding  Branding
	logger    *log.Logger
	collector *metrics.Collector
	now       func() time.Time
	nonce     func() string
}

// NewReporter creates a Reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	branding := cfg.Branding
	if branding == (Branding{}) {
		branding = DefaultBranding()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	nonce := cfg.Nonce
	if nonce == nil {
		nonce = func() string { return uuid.New().String() }
	}
	return &Reporter{
		sup:       cfg.Supervisor,
		branding:  branding,
		logger:    logger,
		collector: cfg.Collector,
		now:       now,
		nonce:     nonce,
	}
}

// setActivityCommand is the opcode-1 command envelope. The nonce is
// write-only: it is attached for correlation in service-side logs but the
// response is matched by opcode and content, never by nonce.
type setActivityCommand struct {
	Cmd   string          `json:"cmd"`
	Args  setActivityArgs `json:"args"`
	Nonce string          `json:"nonce"`
}

type setActivityArgs struct {
	PID      int             `json:"pid"`
	Activity json.RawMessage `json:"activity"`
}

// ackEnvelope is the shape probed on command responses.
type ackEnvelope struct {
	Cmd string `json:"cmd"`
	Evt string `json:"evt"`
}

// Report submits one track snapshot as a presence activity. The caller has
// already determined the snapshot differs from the last reported one.
//
// Nothing here is fatal to the process: a missing connection or transport
// failure drops this one report and arranges for the channel to come back;
// the presence simply lags until the next track change.
func (r *Reporter) Report(snap track.Snapshot) error {
	activity, ok := BuildActivity(snap, r.now(), r.branding)
	if !ok {
		// Neither title nor artist: nothing meaningful to show.
		return nil
	}

	activityJSON, err := json.Marshal(activity)
	if err != nil {
		// Abandon the attempt; not fatal to the process.
		r.collector.IncReportDropped()
		r.logger.Error("encode activity failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("presence: encode activity: %w", err)
	}

	conn := r.sup.Acquire()
	if conn == nil {
		r.sup.EnsureConnected()
		r.collector.IncReportDropped()
		r.logger.Debug("report dropped: no connection, reconnect triggered", nil)
		return ErrNoConnection
	}

	body, err := json.Marshal(setActivityCommand{
		Cmd:   cmdSetActivity,
		Args:  setActivityArgs{PID: conn.PID(), Activity: activityJSON},
		Nonce: r.nonce(),
	})
	if err != nil {
		r.collector.IncReportDropped()
		return fmt.Errorf("presence: encode command: %w", err)
	}

	if err := conn.Send(ipc.OpFrame, string(body)); err != nil {
		return r.transportFailure("send", err)
	}

	_, response, err := conn.Recv()
	if err != nil {
		return r.transportFailure("receive", err)
	}

	var ack ackEnvelope
	if err := json.Unmarshal([]byte(response), &ack); err != nil {
		// The channel itself may still be healthy; keep the connection.
		r.collector.IncDecodeError()
		r.logger.Warn("malformed activity acknowledgement", map[string]any{
			"error":   err.Error(),
			"payload": response,
		})
		return nil
	}
	if ack.Cmd == cmdSetActivity && ack.Evt == evtError {
		// Protocol-level rejection; the connection remains usable.
		r.collector.IncReportRejected()
		r.logger.Warn("activity rejected by presence service", map[string]any{
			"payload": response,
		})
		return nil
	}

	r.collector.IncReportSent()
	r.logger.Debug("activity reported", map[string]any{
		"details": snap.TitleText(),
	})
	return nil
}

// transportFailure classifies a send/receive error: disconnect-class errors
// invalidate the connection and schedule one reconnect; the report is
// abandoned either way.
func (r *Reporter) transportFailure(op string, err error) error {
	r.collector.IncTransportError()
	r.collector.IncReportDropped()
	if ipc.IsDisconnect(err) {
		r.sup.InvalidateAndReconnect(err)
	}
	return fmt.Errorf("presence: %s activity: %w", op, err)
}
