// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the daemon.
//
// Configuration is loaded from a single YAML file specified by:
//   - KOTORI_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery; a missing file is an
// error so a misconfigured daemon fails at startup, not at 07:00.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable naming the config file.
const EnvVar = "KOTORI_CONFIG"

// Duration wraps time.Duration so YAML values can be written as
// strings like "10s" or "2m".
type Duration time.Duration

// UnmarshalYAML parses the scalar with time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for the daemon.
type Config struct {
	// Timezone is the IANA name of the civil timezone all day
	// boundaries, cron jobs, and notification windows use.
	// Default: Asia/Tokyo.
	Timezone string `yaml:"timezone"`

	// Database configures the SQLite store.
	Database DatabaseConfig `yaml:"database"`

	// LLM configures the chat-completion provider that phrases
	// outgoing messages.
	LLM LLMConfig `yaml:"llm"`

	// Memory configures the long-term memory service. Optional; when
	// the base URL is empty, replies are generated without memories.
	Memory MemoryConfig `yaml:"memory"`

	// Calendar configures Google Calendar access. Optional; when the
	// calendar ID is empty, schedule-aware features are disabled.
	Calendar CalendarConfig `yaml:"calendar"`

	// Messenger configures outbound message delivery.
	Messenger MessengerConfig `yaml:"messenger"`

	// Command configures the local command API.
	Command CommandConfig `yaml:"command"`

	// Holiday configures the public-holiday source.
	Holiday HolidayConfig `yaml:"holiday"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite database file. The parent directory must
	// exist. Default: kotori.db in the working directory.
	Path string `yaml:"path"`
}

// LLMConfig configures the chat-completion provider.
type LLMConfig struct {
	// BaseURL is the provider endpoint, e.g. https://api.x.ai/v1.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests. May also be supplied through the
	// KOTORI_LLM_API_KEY environment variable, which takes precedence
	// so the key can stay out of the config file.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier sent with every request.
	Model string `yaml:"model"`
}

// MemoryConfig configures the long-term memory HTTP service.
type MemoryConfig struct {
	// BaseURL is the memory service endpoint. Empty disables memory.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests, when the service requires one.
	APIKey string `yaml:"api_key"`

	// UserID scopes stored memories. Default: kotori.
	UserID string `yaml:"user_id"`
}

// CalendarConfig configures Google Calendar access via a service
// account.
type CalendarConfig struct {
	// CredentialsFile is the path to the service-account JSON key.
	CredentialsFile string `yaml:"credentials_file"`

	// CalendarID is the calendar to read events from and mirror tasks
	// into. Empty disables calendar integration.
	CalendarID string `yaml:"calendar_id"`
}

// MessengerConfig configures outbound message delivery.
type MessengerConfig struct {
	// WebhookURL receives every outgoing message as a JSON POST.
	WebhookURL string `yaml:"webhook_url"`

	// Timeout bounds a single delivery attempt. Default: 10s.
	Timeout Duration `yaml:"timeout"`
}

// CommandConfig configures the local HTTP API that front-ends invoke
// commands through.
type CommandConfig struct {
	// Listen is the address the command API binds. Keep it loopback;
	// the API is unauthenticated. Default: 127.0.0.1:8750.
	Listen string `yaml:"listen"`
}

// HolidayConfig configures the public-holiday source.
type HolidayConfig struct {
	// URL serves the holiday dataset as a JSON object keyed by
	// YYYY-MM-DD date. Default: https://holidays-jp.github.io/api/v1/date.json.
	URL string `yaml:"url"`
}

// Default returns the configuration defaults. Loading applies these
// first, then overlays the file.
func Default() Config {
	return Config{
		Timezone: "Asia/Tokyo",
		Database: DatabaseConfig{
			Path: "kotori.db",
		},
		Memory: MemoryConfig{
			UserID: "kotori",
		},
		Messenger: MessengerConfig{
			Timeout: Duration(10 * time.Second),
		},
		Command: CommandConfig{
			Listen: "127.0.0.1:8750",
		},
		Holiday: HolidayConfig{
			URL: "https://holidays-jp.github.io/api/v1/date.json",
		},
	}
}

// LoadFile reads and validates the configuration at path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if key := os.Getenv("KOTORI_LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves the config path from flagPath or the KOTORI_CONFIG
// environment variable (the flag wins) and loads it.
func Load(flagPath string) (Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Config{}, fmt.Errorf("config: no config file (set %s or pass --config)", EnvVar)
	}
	return LoadFile(path)
}

// Validate checks required fields and field formats.
func (c *Config) Validate() error {
	if c.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Messenger.WebhookURL == "" {
		return fmt.Errorf("messenger.webhook_url is required")
	}
	if c.Messenger.Timeout <= 0 {
		return fmt.Errorf("messenger.timeout must be positive")
	}
	if c.Calendar.CalendarID != "" && c.Calendar.CredentialsFile == "" {
		return fmt.Errorf("calendar.credentials_file is required when calendar.calendar_id is set")
	}
	if c.Command.Listen == "" {
		return fmt.Errorf("command.listen is required")
	}
	if c.Holiday.URL == "" {
		return fmt.Errorf("holiday.url is required")
	}
	return nil
}

// Location returns the parsed civil timezone. Call after Validate.
func (c *Config) Location() (*time.Location, error) {
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: loading timezone %q: %w", c.Timezone, err)
	}
	return location, nil
}
