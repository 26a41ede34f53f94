package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/calliope-io/herald/cli/config"
	"github.com/calliope-io/herald/cli/tui"
	"github.com/calliope-io/herald/log"
	"github.com/calliope-io/herald/metrics"
	"github.com/calliope-io/herald/notify"
	"github.com/calliope-io/herald/notify/redis"
	"github.com/calliope-io/herald/notify/webhook"
	"github.com/calliope-io/herald/observer"
	"github.com/calliope-io/herald/presence"
	"github.com/calliope-io/herald/runtime"
)

// Exit codes for the run command.
const (
	exitSuccess      = 0
	exitRunError     = 1
	exitWatcherCrash = 2
)

// statusBuffer sizes the TUI update channel. Pushes are drop-not-block,
// so the buffer only smooths bursts.
const statusBuffer = 16

// RunCommand returns the run command.
// This is the only command that executes work.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Watch a player and publish its presence (the only execution entrypoint)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to herald.yaml config file",
			},
			// Presence flags
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "Presence application client ID",
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Presence channel endpoint (default: probe platform candidates)",
			},
			// Watcher flags
			&cli.StringFlag{
				Name:  "watcher",
				Usage: "Path to watcher binary",
			},
			&cli.StringSliceFlag{
				Name:  "watcher-arg",
				Usage: "Extra watcher argument (repeatable)",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Player URL passed to the watcher",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Watcher poll interval (e.g. 2s)",
			},
			// Connection tuning flags
			&cli.IntFlag{
				Name:  "attempts",
				Usage: "Initial connect attempts before giving up",
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Delay between initial connect attempts",
			},
			&cli.DurationFlag{
				Name:  "reconnect-delay",
				Usage: "Delay before a post-failure reconnect attempt",
			},
			// Notify flags
			&cli.StringFlag{
				Name:  "notify-type",
				Usage: "Downstream notifier: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "notify-url",
				Usage: "Notifier endpoint URL",
			},
			&cli.StringFlag{
				Name:  "notify-channel",
				Usage: "Redis pub/sub channel name",
			},
			// Output flags
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show a live status view instead of log output",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	clientID := stringSetting(c, "client-id", cfg.ClientID)
	if clientID == "" {
		return cli.Exit("client ID is required (--client-id or config client_id)", exitRunError)
	}

	watcherConfig := &observer.WatcherConfig{
		Command:      stringSetting(c, "watcher", cfg.Watcher.Command),
		Args:         cfg.Watcher.Args,
		URL:          stringSetting(c, "url", cfg.Watcher.URL),
		PollInterval: durationSetting(c, "poll-interval", cfg.Watcher.PollInterval.Duration),
	}
	if args := c.StringSlice("watcher-arg"); len(args) > 0 {
		watcherConfig.Args = args
	}
	if watcherConfig.Command == "" {
		return cli.Exit("watcher command is required (--watcher or config watcher.command)", exitRunError)
	}

	notifyConfig := cfg.Notify
	if t := c.String("notify-type"); t != "" {
		notifyConfig.Type = t
	}
	if url := c.String("notify-url"); url != "" {
		notifyConfig.URL = url
	}
	if channel := c.String("notify-channel"); channel != "" {
		notifyConfig.Channel = channel
	}

	notifier, err := buildNotifier(notifyConfig)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid notify config: %v", err), exitRunError)
	}
	if notifier != nil {
		defer func() { _ = notifier.Close() }()
	}

	useTUI := c.Bool("tui")

	// The TUI owns the terminal; structured log lines would corrupt it.
	logger := log.Nop()
	if !useTUI {
		logger = log.New(clientID, os.Getpid())
	}

	runConfig := &runtime.RunConfig{
		ClientID:        clientID,
		PID:             os.Getpid(),
		Endpoint:        stringSetting(c, "endpoint", cfg.Endpoint),
		Watcher:         watcherConfig,
		Branding:        buildBranding(cfg.Presence),
		ConnectAttempts: intSetting(c, "attempts", cfg.Connect.Attempts),
		RetryDelay:      durationSetting(c, "retry-delay", cfg.Connect.RetryDelay.Duration),
		ReconnectDelay:  durationSetting(c, "reconnect-delay", cfg.Connect.ReconnectDelay.Duration),
		Notifier:        notifier,
		Logger:          logger,
		Collector:       metrics.NewCollector(clientID),
	}

	var updates chan runtime.StatusUpdate
	if useTUI {
		updates = make(chan runtime.StatusUpdate, statusBuffer)
		runConfig.Status = updates
	}

	orchestrator, err := runtime.NewOrchestrator(runConfig)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	startTime := time.Now()

	var result *runtime.RunResult
	if useTUI {
		result, err = executeWithTUI(ctx, cancel, orchestrator, updates)
	} else {
		result, err = orchestrator.Execute(ctx)
	}
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	if !useTUI && !c.Bool("quiet") {
		printRunResult(result, time.Since(startTime))
	}

	return cli.Exit("", outcomeToExitCode(result.Outcome.Status))
}

// executeWithTUI runs the orchestrator in the background while the status
// view consumes updates. Quitting the view cancels the run; the final
// result is still collected so the exit code reflects the real outcome.
func executeWithTUI(ctx context.Context, cancel func(), orchestrator *runtime.Orchestrator, updates chan runtime.StatusUpdate) (*runtime.RunResult, error) {
	done := make(chan *runtime.RunResult, 1)
	execErr := make(chan error, 1)
	go func() {
		result, err := orchestrator.Execute(ctx)
		if err != nil {
			execErr <- err
			close(updates)
			return
		}
		done <- result
		close(updates)
	}()

	result, err := tui.Run(updates, done, cancel)
	if err != nil {
		return nil, fmt.Errorf("tui failed: %w", err)
	}
	if result != nil {
		return result, nil
	}

	// Quit before completion: cancel has fired, wait for the run to land.
	select {
	case result := <-done:
		return result, nil
	case err := <-execErr:
		return nil, err
	}
}

// loadConfig reads the config file when --config is given.
// Without the flag an empty config is used and flags must carry everything.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// buildBranding maps config presence values onto defaults.
// Empty fields keep the stock presentation.
func buildBranding(pc config.PresenceConfig) presence.Branding {
	if pc == (config.PresenceConfig{}) {
		return presence.Branding{}
	}

	branding := presence.DefaultBranding()
	if pc.Name != "" {
		branding.Name = pc.Name
	}
	if pc.SmallImage != "" {
		branding.SmallImage = pc.SmallImage
	}
	if pc.SmallText != "" {
		branding.SmallText = pc.SmallText
	}
	if pc.ButtonLabel != "" {
		branding.ButtonLabel = pc.ButtonLabel
	}
	if pc.ButtonURL != "" {
		branding.ButtonURL = pc.ButtonURL
	}
	return branding
}

// buildNotifier constructs the downstream notifier from config.
// An empty type means no notifier.
func buildNotifier(nc config.NotifyConfig) (notify.Notifier, error) {
	switch nc.Type {
	case "":
		return nil, nil

	case "webhook":
		webhookConfig := webhook.Config{
			URL:     nc.URL,
			Headers: nc.Headers,
			Timeout: nc.Timeout.Duration,
		}
		if nc.Retries != nil {
			webhookConfig.Retries = *nc.Retries
		} else {
			webhookConfig.Retries = webhook.DefaultRetries
		}
		return webhook.New(webhookConfig)

	case "redis":
		redisConfig := redis.Config{
			URL:     nc.URL,
			Channel: nc.Channel,
			Timeout: nc.Timeout.Duration,
		}
		if nc.Retries != nil {
			redisConfig.Retries = *nc.Retries
		} else {
			redisConfig.Retries = redis.DefaultRetries
		}
		return redis.New(redisConfig)

	default:
		return nil, fmt.Errorf("unknown notify type: %s (must be webhook or redis)", nc.Type)
	}
}

// stringSetting resolves a string option: the flag wins over the config value.
func stringSetting(c *cli.Context, name, fallback string) string {
	if v := c.String(name); v != "" {
		return v
	}
	return fallback
}

// intSetting resolves an int option: the flag wins over the config value.
func intSetting(c *cli.Context, name string, fallback int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return fallback
}

// durationSetting resolves a duration option: the flag wins over the config value.
func durationSetting(c *cli.Context, name string, fallback time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	return fallback
}

func outcomeToExitCode(status runtime.OutcomeStatus) int {
	switch status {
	case runtime.OutcomeSuccess:
		return exitSuccess
	case runtime.OutcomeWatcherCrash:
		return exitWatcherCrash
	default:
		return exitRunError
	}
}

func printRunResult(result *runtime.RunResult, duration time.Duration) {
	fmt.Printf("\n=== Run Result ===\n")
	fmt.Printf("Outcome:      %s\n", result.Outcome.Status)
	fmt.Printf("Message:      %s\n", result.Outcome.Message)
	fmt.Printf("Duration:     %s\n", duration.Round(time.Millisecond))

	m := result.Metrics
	fmt.Printf("\n=== Counters ===\n")
	fmt.Printf("Snapshots Received:  %d\n", m.SnapshotsReceived)
	fmt.Printf("Snapshots Deduped:   %d\n", m.SnapshotsDeduped)
	fmt.Printf("Reports Sent:        %d\n", m.ReportsSent)
	fmt.Printf("Reports Rejected:    %d\n", m.ReportsRejected)
	fmt.Printf("Reports Dropped:     %d\n", m.ReportsDropped)
	fmt.Printf("Reconnects:          %d\n", m.ReconnectsScheduled)
	if m.NotifyPublished > 0 || m.NotifyFailed > 0 {
		fmt.Printf("Notify Published:    %d\n", m.NotifyPublished)
		fmt.Printf("Notify Failed:       %d\n", m.NotifyFailed)
	}

	if result.StderrOutput != "" {
		fmt.Printf("\n=== Watcher Stderr ===\n")
		fmt.Printf("%s", result.StderrOutput)
	}
}
