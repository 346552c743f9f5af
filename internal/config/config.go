// AutomatedFanfic is a fanfiction download/update orchestrator.
// Copyright (C) 2025 AutomatedFanfic contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads and validates the process's TOML configuration
// file. Loading happens exactly once at startup; any validation
// failure is terminal (exit 1), per spec.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Email holds the [email] table.
type Email struct {
	User          string   `toml:"email"`
	Password      string   `toml:"password"`
	Server        string   `toml:"server"`
	Mailbox       string   `toml:"mailbox"`
	SleepTime     float64  `toml:"sleep_time"`
	DisabledSites []string `toml:"disabled_sites"`

	// FFNetDisable holds the deprecated [email] flag; rewritten to
	// DisabledSites by rewriteLegacyFields before validation.
	FFNetDisable bool `toml:"ffnet_disable"`
}

// Calibre holds the [calibre] table.
type Calibre struct {
	Path                     string `toml:"path"`
	Username                 string `toml:"username"`
	Password                 string `toml:"password"`
	DefaultINI               string `toml:"default_ini"`
	PersonalINI              string `toml:"personal_ini"`
	UpdateMethod             string `toml:"update_method"`
	MetadataPreservationMode string `toml:"metadata_preservation_mode"`
}

// Pushbullet holds the [pushbullet] table.
type Pushbullet struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	Device  string `toml:"device"`
}

// Apprise holds the [apprise] table.
type Apprise struct {
	URLs []string `toml:"urls"`
}

// Retry holds the [retry] table.
type Retry struct {
	HailMaryEnabled   bool    `toml:"hail_mary_enabled"`
	HailMaryWaitHours float64 `toml:"hail_mary_wait_hours"`
	MaxNormalRetries  int64   `toml:"max_normal_retries"`
}

// Process holds the [process] table.
type Process struct {
	ShutdownTimeoutSec     float64 `toml:"shutdown_timeout"`
	HealthCheckIntervalSec float64 `toml:"health_check_interval"`
	AutoRestart            bool    `toml:"auto_restart"`
	MaxRestartAttempts     int     `toml:"max_restart_attempts"`
	RestartDelaySec        float64 `toml:"restart_delay"`
	EnableMonitoring       bool    `toml:"enable_monitoring"`
	WorkerTimeoutSec       float64 `toml:"worker_timeout"`
	SignalTimeoutSec       float64 `toml:"signal_timeout"`
}

// Config is the full, validated, immutable process configuration.
type Config struct {
	Email      Email      `toml:"email"`
	Calibre    Calibre    `toml:"calibre"`
	Pushbullet Pushbullet `toml:"pushbullet"`
	Apprise    Apprise    `toml:"apprise"`
	Retry      Retry      `toml:"retry"`
	Process    Process    `toml:"process"`
	MaxWorkers int        `toml:"max_workers"`
	Version    string     `toml:"version"`
}

// Load reads, parses, rewrites legacy fields, and validates the config
// file at path. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: parsing %s: unknown fields %v", path, undecoded)
	}

	rewriteLegacyFields(&cfg)

	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", path, err)
	}
	return &cfg, nil
}

// rewriteLegacyFields applies the single legacy-field migration named
// in spec.md §6: a bare ffnet_disable=true implies
// disabled_sites=["fanfiction"].
func rewriteLegacyFields(cfg *Config) {
	if cfg.Email.FFNetDisable {
		found := false
		for _, s := range cfg.Email.DisabledSites {
			if s == "fanfiction" {
				found = true
				break
			}
		}
		if !found {
			cfg.Email.DisabledSites = append(cfg.Email.DisabledSites, "fanfiction")
		}
	}
}

// Validate performs the explicit per-field range checks named in
// spec.md §6, accumulating every failure via errors.Join rather than
// failing on the first one, so a single run reports the whole set of
// problems.
func (c *Config) Validate() error {
	var errs []error

	if c.Email.SleepTime < 1 {
		errs = append(errs, fmt.Errorf("email.sleep_time must be >= 1, got %v", c.Email.SleepTime))
	}

	switch c.Calibre.UpdateMethod {
	case "", "update", "update_always", "force", "update_no_force":
	default:
		errs = append(errs, fmt.Errorf("calibre.update_method invalid: %q", c.Calibre.UpdateMethod))
	}
	switch c.Calibre.MetadataPreservationMode {
	case "", "remove_add", "preserve_metadata", "add_format":
	default:
		errs = append(errs, fmt.Errorf("calibre.metadata_preservation_mode invalid: %q", c.Calibre.MetadataPreservationMode))
	}
	if c.Calibre.Path == "" {
		errs = append(errs, errors.New("calibre.path is required"))
	}

	if c.Pushbullet.Enabled && c.Pushbullet.APIKey == "" {
		errs = append(errs, errors.New("pushbullet.api_key is required when pushbullet.enabled is true"))
	}

	if c.Retry.HailMaryWaitHours != 0 && (c.Retry.HailMaryWaitHours < 0.1 || c.Retry.HailMaryWaitHours > 168) {
		errs = append(errs, fmt.Errorf("retry.hail_mary_wait_hours must be in [0.1, 168], got %v", c.Retry.HailMaryWaitHours))
	}
	if c.Retry.MaxNormalRetries < 1 || c.Retry.MaxNormalRetries > 50 {
		errs = append(errs, fmt.Errorf("retry.max_normal_retries must be in [1, 50], got %v", c.Retry.MaxNormalRetries))
	}

	if c.Process.ShutdownTimeoutSec < 1 || c.Process.ShutdownTimeoutSec > 300 {
		errs = append(errs, fmt.Errorf("process.shutdown_timeout must be in [1, 300], got %v", c.Process.ShutdownTimeoutSec))
	}
	if c.Process.HealthCheckIntervalSec < 0.1 || c.Process.HealthCheckIntervalSec > 600 {
		errs = append(errs, fmt.Errorf("process.health_check_interval must be in [0.1, 600], got %v", c.Process.HealthCheckIntervalSec))
	}
	if c.Process.MaxRestartAttempts < 0 || c.Process.MaxRestartAttempts > 10 {
		errs = append(errs, fmt.Errorf("process.max_restart_attempts must be in [0, 10], got %v", c.Process.MaxRestartAttempts))
	}
	if c.Process.RestartDelaySec < 0 || c.Process.RestartDelaySec > 60 {
		errs = append(errs, fmt.Errorf("process.restart_delay must be in [0, 60], got %v", c.Process.RestartDelaySec))
	}
	if c.Process.WorkerTimeoutSec != 0 && c.Process.WorkerTimeoutSec < 30 {
		errs = append(errs, fmt.Errorf("process.worker_timeout must be >= 30 when set, got %v", c.Process.WorkerTimeoutSec))
	}
	if c.Process.SignalTimeoutSec < 1 || c.Process.SignalTimeoutSec > 60 {
		errs = append(errs, fmt.Errorf("process.signal_timeout must be in [1, 60], got %v", c.Process.SignalTimeoutSec))
	}

	if c.MaxWorkers < 1 {
		errs = append(errs, fmt.Errorf("max_workers must be >= 1, got %v", c.MaxWorkers))
	}

	var filteredAppriseURLs []string
	for _, u := range c.Apprise.URLs {
		if u != "" {
			filteredAppriseURLs = append(filteredAppriseURLs, u)
		}
	}
	c.Apprise.URLs = filteredAppriseURLs

	return errors.Join(errs...)
}
