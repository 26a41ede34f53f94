package config

import (
	"fmt"
	"time"
)

// Config represents a herald.yaml configuration file.
// All values are optional and act as defaults for herald run flags.
// CLI flags always override config values.
type Config struct {
	ClientID string         `yaml:"client_id"`
	Endpoint string         `yaml:"endpoint"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Presence PresenceConfig `yaml:"presence"`
	Connect  ConnectConfig  `yaml:"connect"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// WatcherConfig holds watcher process defaults from the config file.
type WatcherConfig struct {
	Command      string   `yaml:"command"`
	Args         []string `yaml:"args,omitempty"`
	URL          string   `yaml:"url"`
	PollInterval Duration `yaml:"poll_interval,omitempty"`
}

// PresenceConfig holds activity branding defaults from the config file.
type PresenceConfig struct {
	Name        string `yaml:"name,omitempty"`
	SmallImage  string `yaml:"small_image,omitempty"`
	SmallText   string `yaml:"small_text,omitempty"`
	ButtonLabel string `yaml:"button_label,omitempty"`
	ButtonURL   string `yaml:"button_url,omitempty"`
}

// ConnectConfig holds connection tuning defaults from the config file.
type ConnectConfig struct {
	Attempts       int      `yaml:"attempts,omitempty"`
	RetryDelay     Duration `yaml:"retry_delay,omitempty"`
	ReconnectDelay Duration `yaml:"reconnect_delay,omitempty"`
}

// NotifyConfig holds notifier defaults from the config file.
type NotifyConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
