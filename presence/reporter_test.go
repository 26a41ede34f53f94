package presence

import (
	"encoding/json"
	"errors"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/calliope-io/herald/ipc"
	"github.com/calliope-io/herald/metrics"
	"github.com/calliope-io/herald/track"
)

// reporterFixture wires a supervisor holding one scripted connection and a
// reporter with a fixed clock and nonce.
type reporterFixture struct {
	reporter  *Reporter
	sup       *Supervisor
	ch        *scriptChannel
	recorder  *spawnRecorder
	collector *metrics.Collector
}

func newReporterFixture(t *testing.T) *reporterFixture {
	t.Helper()

	ch := &scriptChannel{}
	conn := ipc.NewConn(ch, 4242)
	recorder := &spawnRecorder{}
	collector := metrics.NewCollector("c")

	sup := NewSupervisor(SupervisorConfig{
		Connector:      &stubConnector{results: []connectResult{{conn: conn}}},
		Collector:      collector,
		Spawn:          recorder.spawn,
		ReconnectDelay: time.Millisecond,
	})
	sup.Start()
	recorder.runAll() // install the connection

	reporter := NewReporter(ReporterConfig{
		Supervisor: sup,
		Collector:  collector,
		Now:        func() time.Time { return testClock },
		Nonce:      func() string { return "nonce-1" },
	})

	return &reporterFixture{
		reporter:  reporter,
		sup:       sup,
		ch:        ch,
		recorder:  recorder,
		collector: collector,
	}
}

// seedAck queues a service response frame on the fixture channel.
func (f *reporterFixture) seedAck(t *testing.T, payload string) {
	t.Helper()
	if err := ipc.WriteMessage(&f.ch.in, ipc.OpFrame, payload); err != nil {
		t.Fatalf("seed ack frame: %v", err)
	}
}

// sentCommand decodes the single command frame written by the reporter.
func (f *reporterFixture) sentCommand(t *testing.T) (ipc.Opcode, setActivityCommand) {
	t.Helper()
	op, payload, err := ipc.ReadMessage(&f.ch.out)
	if err != nil {
		t.Fatalf("read sent frame: %v", err)
	}
	var cmd setActivityCommand
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		t.Fatalf("parse sent command: %v", err)
	}
	return op, cmd
}

func TestReporter_SendsActivityCommand(t *testing.T) {
	f := newReporterFixture(t)
	f.seedAck(t, `{"cmd":"SET_ACTIVITY","evt":null,"data":{}}`)

	snap := track.Snapshot{
		Title:    strPtr("Song A"),
		Artist:   strPtr("Artist X"),
		AlbumArt: strPtr("http://x/a.png"),
		Duration: u64Ptr(200),
	}
	if err := f.reporter.Report(snap); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	op, cmd := f.sentCommand(t)
	if op != ipc.OpFrame {
		t.Errorf("opcode = %d, want %d", op, ipc.OpFrame)
	}
	if cmd.Cmd != "SET_ACTIVITY" {
		t.Errorf("cmd = %q, want SET_ACTIVITY", cmd.Cmd)
	}
	if cmd.Args.PID != 4242 {
		t.Errorf("pid = %d, want 4242", cmd.Args.PID)
	}
	if cmd.Nonce != "nonce-1" {
		t.Errorf("nonce = %q, want nonce-1", cmd.Nonce)
	}

	var activity Activity
	if err := json.Unmarshal(cmd.Args.Activity, &activity); err != nil {
		t.Fatalf("parse activity: %v", err)
	}
	if activity.Timestamps.Start != testClock.Unix() {
		t.Errorf("Start = %d, want %d", activity.Timestamps.Start, testClock.Unix())
	}
	if activity.Timestamps.End == nil || *activity.Timestamps.End != testClock.Unix()+200 {
		t.Errorf("End = %v, want start+200", activity.Timestamps.End)
	}

	if got := f.collector.Snapshot().ReportsSent; got != 1 {
		t.Errorf("ReportsSent = %d, want 1", got)
	}
}

func TestReporter_NoOpWithoutTitleOrArtist(t *testing.T) {
	f := newReporterFixture(t)

	snap := track.Snapshot{AlbumArt: strPtr("http://x/a.png"), Duration: u64Ptr(90)}
	if err := f.reporter.Report(snap); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if f.ch.out.Len() != 0 {
		t.Error("no frame should be sent when title and artist are both missing")
	}
}

func TestReporter_ProtocolRejectionKeepsConnection(t *testing.T) {
	f := newReporterFixture(t)
	f.seedAck(t, `{"cmd":"SET_ACTIVITY","evt":"ERROR","data":{"message":"invalid asset"}}`)

	err := f.reporter.Report(track.Snapshot{Title: strPtr("Song A")})
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if f.sup.Acquire() == nil {
		t.Error("connection must remain installed after a protocol rejection")
	}
	if got := f.collector.Snapshot().ReportsRejected; got != 1 {
		t.Errorf("ReportsRejected = %d, want 1", got)
	}
}

func TestReporter_MalformedAckKeepsConnection(t *testing.T) {
	f := newReporterFixture(t)
	f.seedAck(t, `garbage`)

	if err := f.reporter.Report(track.Snapshot{Title: strPtr("Song A")}); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if f.sup.Acquire() == nil {
		t.Error("connection must remain installed after a malformed acknowledgement")
	}
	if got := f.collector.Snapshot().DecodeErrors; got != 1 {
		t.Errorf("DecodeErrors = %d, want 1", got)
	}
}

func TestReporter_TransportErrorOnSend(t *testing.T) {
	f := newReporterFixture(t)
	f.ch.writeErr = syscall.EPIPE

	err := f.reporter.Report(track.Snapshot{Title: strPtr("Song A")})
	if err == nil {
		t.Fatal("expected an error from the broken channel")
	}

	if f.sup.Acquire() != nil {
		t.Error("slot must be empty after a transport error")
	}
	if got := f.recorder.pending(); got != 1 {
		t.Errorf("pending reconnect attempts = %d, want exactly 1", got)
	}
}

func TestReporter_TransportErrorOnReceive(t *testing.T) {
	f := newReporterFixture(t)
	f.ch.readErr = io.ErrUnexpectedEOF

	err := f.reporter.Report(track.Snapshot{Title: strPtr("Song A")})
	if err == nil {
		t.Fatal("expected an error from the broken channel")
	}

	if f.sup.Acquire() != nil {
		t.Error("slot must be empty after a receive failure")
	}
	if got := f.recorder.pending(); got != 1 {
		t.Errorf("pending reconnect attempts = %d, want exactly 1", got)
	}
}

func TestReporter_DropsReportWhenSlotEmpty(t *testing.T) {
	recorder := &spawnRecorder{}
	collector := metrics.NewCollector("c")
	sup := NewSupervisor(SupervisorConfig{
		Connector: &stubConnector{results: []connectResult{{err: errors.New("down")}}},
		Collector: collector,
		Spawn:     recorder.spawn,
	})
	reporter := NewReporter(ReporterConfig{Supervisor: sup, Collector: collector})

	err := reporter.Report(track.Snapshot{Title: strPtr("Song A")})
	if !errors.Is(err, ErrNoConnection) {
		t.Fatalf("error = %v, want ErrNoConnection", err)
	}

	// The report is dropped, not queued, and a reconnect is triggered.
	if got := recorder.pending(); got != 1 {
		t.Errorf("pending reconnect attempts = %d, want 1", got)
	}
	if got := collector.Snapshot().ReportsDropped; got != 1 {
		t.Errorf("ReportsDropped = %d, want 1", got)
	}
}
