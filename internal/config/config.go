// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the steward daemon.
// It handles loading and parsing YAML configuration files and provides
// structured access to autopilot, workflow, and cognitive settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tuning values applied by Sanitize when a field is unset.
const (
	DefaultConfidenceThreshold = 0.90
	MinConfidenceThreshold     = 0.70
	MaxConfidenceThreshold     = 0.99

	DefaultCapacityCheckInterval = 15 * time.Minute
	DefaultMicroBreakInterval    = 25 * time.Minute
	DefaultMicroBreakDuration    = 5 * time.Minute
	DefaultActiveBreakInterval   = 90 * time.Minute
	DefaultActiveBreakDuration   = 15 * time.Minute

	DefaultMaxSuggestions = 3
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory used for rotating log files when LoggingToFile is set.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// LogsMaxSizeMB caps the size of a single log file before rotation. 0 uses the default.
	LogsMaxSizeMB int `yaml:"logs-max-size-mb" json:"logs-max-size-mb"`

	// Autopilot configures the autonomous decision gate.
	Autopilot AutopilotConfig `yaml:"autopilot" json:"autopilot"`

	// Workflow configures the workflow supervisor.
	Workflow WorkflowConfig `yaml:"workflow" json:"workflow"`

	// Cognitive configures cognitive monitoring defaults.
	Cognitive CognitiveConfig `yaml:"cognitive" json:"cognitive"`
}

// AutopilotConfig defines settings for the autonomous decision gate.
type AutopilotConfig struct {
	// Enabled is the global autopilot switch. When false every attempt is refused.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ConfidenceThreshold is the minimum baseline decision confidence required
	// for unattended execution. Valid range is [0.70, 0.99].
	ConfidenceThreshold float64 `yaml:"confidence-threshold" json:"confidence-threshold"`

	// RequireStability demands a stable pattern before autonomy is granted.
	RequireStability bool `yaml:"require-stability" json:"require-stability"`

	// PolicyDir is an optional directory of YAML policy rule files with
	// expr activation conditions that can veto autonomy.
	PolicyDir string `yaml:"policy-dir" json:"policy-dir"`

	// PolicyHotReload watches PolicyDir for changes when true.
	PolicyHotReload bool `yaml:"policy-hot-reload" json:"policy-hot-reload"`
}

// WorkflowConfig defines settings for the workflow supervisor.
type WorkflowConfig struct {
	// CognitiveMonitoring enables periodic capacity and break checks for
	// running workflows.
	CognitiveMonitoring bool `yaml:"cognitive-monitoring" json:"cognitive-monitoring"`

	// AutonomousRouting allows the supervisor to inject autonomous routing
	// configuration into workflow execution. The user's own opt-in is still
	// required per workflow.
	AutonomousRouting bool `yaml:"autonomous-routing" json:"autonomous-routing"`

	// CapacityCheckInterval is the period between capacity checks while a
	// monitored workflow is executing.
	CapacityCheckInterval time.Duration `yaml:"capacity-check-interval" json:"capacity-check-interval"`

	// MaxSuggestions bounds the number of ranked suggestions returned.
	MaxSuggestions int `yaml:"max-suggestions" json:"max-suggestions"`
}

// CognitiveConfig defines defaults for cognitive context handling.
type CognitiveConfig struct {
	// DefaultCapacity is the capacity assumed when the predictor is unavailable.
	DefaultCapacity float64 `yaml:"default-capacity" json:"default-capacity"`

	// MicroBreakInterval is the default time between micro-break reminders.
	MicroBreakInterval time.Duration `yaml:"micro-break-interval" json:"micro-break-interval"`

	// MicroBreakDuration is the suggested length of a micro break.
	MicroBreakDuration time.Duration `yaml:"micro-break-duration" json:"micro-break-duration"`

	// ActiveBreakInterval is the default time between active-break reminders.
	ActiveBreakInterval time.Duration `yaml:"active-break-interval" json:"active-break-interval"`

	// ActiveBreakDuration is the suggested length of an active break.
	ActiveBreakDuration time.Duration `yaml:"active-break-duration" json:"active-break-duration"`
}

// Load reads and parses the YAML configuration file at path.
// The returned config has been sanitized and validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a sanitized configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{
		Autopilot: AutopilotConfig{Enabled: true},
		Workflow:  WorkflowConfig{CognitiveMonitoring: true},
	}
	cfg.Sanitize()
	return cfg
}

// Sanitize normalizes the configuration, filling unset fields with defaults.
func (c *Config) Sanitize() {
	if c == nil {
		return
	}

	c.LogDir = strings.TrimSpace(c.LogDir)
	c.Autopilot.PolicyDir = strings.TrimSpace(c.Autopilot.PolicyDir)

	if c.Autopilot.ConfidenceThreshold == 0 {
		c.Autopilot.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.Workflow.CapacityCheckInterval <= 0 {
		c.Workflow.CapacityCheckInterval = DefaultCapacityCheckInterval
	}
	if c.Workflow.MaxSuggestions <= 0 {
		c.Workflow.MaxSuggestions = DefaultMaxSuggestions
	}
	if c.Cognitive.DefaultCapacity <= 0 || c.Cognitive.DefaultCapacity > 1 {
		c.Cognitive.DefaultCapacity = 0.7
	}
	if c.Cognitive.MicroBreakInterval <= 0 {
		c.Cognitive.MicroBreakInterval = DefaultMicroBreakInterval
	}
	if c.Cognitive.MicroBreakDuration <= 0 {
		c.Cognitive.MicroBreakDuration = DefaultMicroBreakDuration
	}
	if c.Cognitive.ActiveBreakInterval <= 0 {
		c.Cognitive.ActiveBreakInterval = DefaultActiveBreakInterval
	}
	if c.Cognitive.ActiveBreakDuration <= 0 {
		c.Cognitive.ActiveBreakDuration = DefaultActiveBreakDuration
	}
}

// Validate rejects configurations that would put the gate into an
// unsupported state. It is called before any subsystem sees the config.
func (c *Config) Validate() error {
	if c.Autopilot.ConfidenceThreshold < MinConfidenceThreshold || c.Autopilot.ConfidenceThreshold > MaxConfidenceThreshold {
		return fmt.Errorf("config: autopilot confidence-threshold %.2f outside [%.2f, %.2f]",
			c.Autopilot.ConfidenceThreshold, MinConfidenceThreshold, MaxConfidenceThreshold)
	}
	return nil
}
