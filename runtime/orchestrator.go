// Package runtime orchestrates a herald run: it supervises the presence
// connection, drives the watcher process, and routes observed snapshots
// through deduplication into activity reports.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calliope-io/herald/ipc"
	"github.com/calliope-io/herald/log"
	"github.com/calliope-io/herald/metrics"
	"github.com/calliope-io/herald/notify"
	"github.com/calliope-io/herald/observer"
	"github.com/calliope-io/herald/presence"
	"github.com/calliope-io/herald/track"
)

// notifyTimeout bounds one downstream notification.
const notifyTimeout = 10 * time.Second

// WatcherFactory creates a Watcher. Used for test injection.
type WatcherFactory func(config *observer.WatcherConfig) observer.Watcher

// RunConfig configures a single run.
type RunConfig struct {
	// ClientID is the presence application identity (required).
	ClientID string
	// PID is the process id reported in the handshake and activity command.
	PID int
	// Endpoint optionally pins the presence channel endpoint.
	// Empty means probe the platform's candidate endpoints.
	Endpoint string
	// Watcher configures the external watcher process.
	Watcher *observer.WatcherConfig
	// WatcherFactory overrides watcher creation (for testing).
	// If nil, uses observer.NewWatcherManager.
	WatcherFactory WatcherFactory
	// Branding customizes the published activity. Zero value uses defaults.
	Branding presence.Branding
	// ConnectAttempts bounds the initial connect loop. Zero uses the default.
	ConnectAttempts int
	// RetryDelay is the pause between initial connect attempts.
	RetryDelay time.Duration
	// ReconnectDelay is the pause before a post-failure reconnect attempt.
	ReconnectDelay time.Duration
	// Notifier optionally publishes track change events downstream.
	// Notification failures never affect presence reporting.
	Notifier notify.Notifier
	// Logger is the run logger. Nil uses a no-op logger.
	Logger *log.Logger
	// Collector records run metrics. Nil disables metrics.
	Collector *metrics.Collector
	// Status optionally receives per-snapshot updates. Pushes never block.
	Status chan<- StatusUpdate
	// Dialer overrides endpoint dialing (for testing).
	Dialer ipc.Dialer
	// Spawn overrides background dispatch in the supervisor (for testing).
	Spawn func(func())
	// Now overrides the clock (for testing).
	Now func() time.Time
}

// RunResult represents the result of a run.
type RunResult struct {
	// Outcome is the run classification.
	Outcome *Outcome
	// Duration is the total run duration.
	Duration time.Duration
	// StderrOutput is the captured watcher stderr.
	StderrOutput string
	// Metrics is the final counter state.
	Metrics metrics.Snapshot
}

// Orchestrator runs one watcher session end to end.
type Orchestrator struct {
	config    *RunConfig
	logger    *log.Logger
	deduper   track.Deduper
	startTime time.Time
}

// NewOrchestrator creates a run orchestrator.
// Returns an error when required configuration is missing.
func NewOrchestrator(config *RunConfig) (*Orchestrator, error) {
	if config.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	if config.Watcher == nil {
		return nil, errors.New("watcher configuration is required")
	}
	if config.WatcherFactory == nil && config.Watcher.Command == "" {
		return nil, errors.New("watcher command is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}

	return &Orchestrator{
		config: config,
		logger: logger,
	}, nil
}

// Execute executes the run end-to-end.
//
// Execution flow:
//  1. Start the connection supervisor (first connect runs in background)
//  2. Start the watcher process
//  3. Run the ingest loop, reporting deduplicated snapshots
//  4. Wait for the watcher to exit
//  5. Classify the outcome
func (o *Orchestrator) Execute(ctx context.Context) (*RunResult, error) {
	o.startTime = time.Now()

	o.logger.Info("starting run", map[string]any{
		"watcher": o.config.Watcher.Command,
		"url":     o.config.Watcher.URL,
	})

	dialer := o.config.Dialer
	if dialer == nil {
		dialer = ipc.DefaultDialer(o.config.Endpoint)
	}

	sup := presence.NewSupervisor(presence.SupervisorConfig{
		Connector: &ipc.Connector{
			Dialer:     dialer,
			ClientID:   o.config.ClientID,
			PID:        o.config.PID,
			Attempts:   o.config.ConnectAttempts,
			RetryDelay: o.config.RetryDelay,
			Logger:     o.logger,
		},
		Logger:         o.logger,
		Collector:      o.config.Collector,
		ReconnectDelay: o.config.ReconnectDelay,
		Spawn:          o.config.Spawn,
	})
	sup.Start()
	defer sup.Close()

	reporter := presence.NewReporter(presence.ReporterConfig{
		Supervisor: sup,
		Branding:   o.config.Branding,
		Logger:     o.logger,
		Collector:  o.config.Collector,
		Now:        o.config.Now,
	})

	var watcher observer.Watcher
	if o.config.WatcherFactory != nil {
		watcher = o.config.WatcherFactory(o.config.Watcher)
	} else {
		watcher = observer.NewWatcherManager(o.config.Watcher)
	}

	if err := watcher.Start(ctx); err != nil {
		o.logger.Error("failed to start watcher", map[string]any{
			"error": err.Error(),
		})
		return o.buildResult(&Outcome{
			Status:  OutcomeWatcherCrash,
			Message: fmt.Sprintf("failed to start watcher: %v", err),
		}, ""), nil
	}

	ingestor := observer.NewIngestor(
		watcher.Stdout(),
		func(snap track.Snapshot) { o.handleSnapshot(ctx, reporter, snap) },
		o.logger,
		o.config.Collector,
	)

	ingestDone := make(chan error, 1)
	go func() {
		ingestDone <- ingestor.Run(ctx)
	}()

	// Wait for ingestion before Wait(): exec.Cmd.Wait closes the stdout
	// pipe, which would fail reads on data still buffered in it.
	ingErr := <-ingestDone

	if ingErr != nil {
		o.logger.Warn("killing watcher due to ingest error", map[string]any{
			"error": ingErr.Error(),
		})
		_ = watcher.Kill()
	}

	watchResult, waitErr := watcher.Wait()
	if waitErr != nil {
		o.logger.Error("watcher wait failed", map[string]any{
			"error": waitErr.Error(),
		})
		return o.buildResult(&Outcome{
			Status:  OutcomeWatcherCrash,
			Message: fmt.Sprintf("watcher wait failed: %v", waitErr),
		}, ""), nil
	}

	outcome := DetermineOutcome(ingErr, watchResult.ExitCode)
	o.logger.Info("run completed", map[string]any{
		"outcome":   string(outcome.Status),
		"exit_code": watchResult.ExitCode,
		"duration":  time.Since(o.startTime).String(),
	})

	return o.buildResult(outcome, string(watchResult.StderrBytes)), nil
}

// handleSnapshot routes one observed snapshot through dedupe, report and
// notify. Errors are logged and counted; the ingest loop never stops for
// a failed report.
func (o *Orchestrator) handleSnapshot(ctx context.Context, reporter *presence.Reporter, snap track.Snapshot) {
	o.config.Collector.IncSnapshotReceived()

	if !o.deduper.ShouldReport(snap) {
		o.config.Collector.IncSnapshotDeduped()
		o.pushStatus(StatusUpdate{
			Track:   snap,
			Deduped: true,
			Metrics: o.config.Collector.Snapshot(),
		})
		return
	}

	err := reporter.Report(snap)
	if err != nil {
		o.logger.Warn("report failed", map[string]any{
			"title": snap.TitleText(),
			"error": err.Error(),
		})
	} else if snap.Displayable() {
		o.notifyTrackChanged(ctx, snap)
	}

	update := StatusUpdate{
		Track:    snap,
		Reported: err == nil && snap.Displayable(),
		Metrics:  o.config.Collector.Snapshot(),
	}
	if err != nil {
		update.Err = err.Error()
	}
	o.pushStatus(update)
}

// notifyTrackChanged publishes a downstream event for a reported snapshot.
func (o *Orchestrator) notifyTrackChanged(ctx context.Context, snap track.Snapshot) {
	if o.config.Notifier == nil {
		return
	}

	now := time.Now()
	if o.config.Now != nil {
		now = o.config.Now()
	}
	event := notify.NewTrackChangedEvent(o.config.ClientID, snap, now)

	publishCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := o.config.Notifier.Publish(publishCtx, event); err != nil {
		o.logger.Warn("notification failed", map[string]any{
			"error": err.Error(),
		})
		o.config.Collector.IncNotifyFailed()
		return
	}
	o.config.Collector.IncNotifyPublished()
}

// pushStatus delivers an update without blocking the ingest path.
func (o *Orchestrator) pushStatus(update StatusUpdate) {
	if o.config.Status == nil {
		return
	}
	select {
	case o.config.Status <- update:
	default:
	}
}

// buildResult constructs the final run result.
func (o *Orchestrator) buildResult(outcome *Outcome, stderrOutput string) *RunResult {
	return &RunResult{
		Outcome:      outcome,
		Duration:     time.Since(o.startTime),
		StderrOutput: stderrOutput,
		Metrics:      o.config.Collector.Snapshot(),
	}
}
