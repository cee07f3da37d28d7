// Package config provides configuration management for the dasher
// engine using Viper. It supports configuration from a file,
// environment variables, and defaults, with file < env < flag
// precedence applied by the caller (cmd/dasher/cmd).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultDashDur       = 2 * time.Second
	defaultSubdur        = 0 // unbounded
	defaultCheckDur      = 30 * time.Second
	defaultStateFileName = "dasher-state.json"
)

// Config holds all configuration for the dasher engine.
type Config struct {
	Dasher      DasherConfig      `mapstructure:"dasher"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// DasherConfig holds the segmentation engine's own tunables, loaded
// from YAML/env/flags and translated into dasher.Options by the CLI
// layer (cmd/dasher/cmd/run.go) — the engine package itself never
// imports Viper.
type DasherConfig struct {
	// Profile names the DASH conformance profile: live, onDemand, main,
	// HbbTV-1.5, DASH-AVC-264 live/onDemand, or full.
	Profile string `mapstructure:"profile"`

	// SwitchMode controls bitstream-switching evaluation: off, on,
	// inband, force, or multi.
	SwitchMode string `mapstructure:"switch_mode"`

	// Align requires every Representation in an Adaptation Set to emit
	// the same segment count within 1ms tolerance.
	Align bool `mapstructure:"align"`

	// SAP enables the "segment over" boundary check at Stream Access
	// Points.
	SAP bool `mapstructure:"sap"`

	// NoSAR disables pixel-aspect-ratio comparison during same-AS
	// grouping.
	NoSAR bool `mapstructure:"no_sar"`

	// MixCodecs allows differing codec strings into the same
	// Adaptation Set.
	MixCodecs bool `mapstructure:"mix_codecs"`

	// SkipSeg opts into the non-compliant seg_number advancement across
	// empty would-be segments; left off by default (spec's "keep it
	// behind an opt-in flag").
	SkipSeg bool `mapstructure:"skip_seg"`

	// CheckDur enables cross-representation truncation of laggard
	// streams once one Representation in the set finishes.
	CheckDur bool `mapstructure:"check_dur"`

	// Subdur bounds how much cumulated duration any base stream may
	// produce before being marked done; 0 means unbounded.
	Subdur time.Duration `mapstructure:"subdur"`

	// DashDur is the default target segment duration when a Stream
	// does not specify its own.
	DashDur time.Duration `mapstructure:"dash_dur"`

	// NTP controls sender-NTP timestamp stamping: remove, yes, or keep.
	NTP string `mapstructure:"ntp"`

	// HbbTVCompat governs ProfileHbbTV15's Open-Question resolution:
	// when true, HbbTV-1.5 behaves as live with main-role checking and
	// multi-switching forced on.
	HbbTVCompat bool `mapstructure:"hbbtv_compat"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// StorageConfig holds the directories the Persistence Layer and
// muxer connections write segment and state files under.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	OutputDir string `mapstructure:"output_dir"`

	// MaxSegmentSize is loaded from config but nothing enforces it:
	// fragments of any size are written. Supports human-readable values
	// like "50MB".
	MaxSegmentSize ByteSize `mapstructure:"max_segment_size"`
}

// PersistenceConfig controls the dasher-context state file: where it
// lives and whether the engine restores from it on start. MaxStateAge
// is loaded but not checked; a state file of any age is restored.
type PersistenceConfig struct {
	StateFilePath  string   `mapstructure:"state_file_path"`
	RestoreOnStart bool     `mapstructure:"restore_on_start"`
	MaxStateAge    Duration `mapstructure:"max_state_age"`
}

// OutputPath returns the full path to the segment output directory.
func (c *StorageConfig) OutputPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.OutputDir)
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and
// are prefixed with DASHER_, using underscores for nesting (e.g.
// DASHER_DASHER_PROFILE=onDemand).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/dasher")
		v.AddConfigPath("$HOME/.dasher")
	}

	v.SetEnvPrefix("DASHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// WatchAndReload installs a live-reload hook that calls onChange with
// a freshly loaded Config whenever the backing file changes, letting
// an operator flip profile/alignment toggles without restarting the
// engine's host process.
func WatchAndReload(configPath string, onChange func(*Config)) error {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Load(configPath)
		if err != nil {
			return // keep running on the last-known-good config
		}
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

// SetDefaults configures default values for all configuration options.
// Must be called before reading the config file so defaults are in
// place for any keys the file or environment omit.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dasher.profile", "live")
	v.SetDefault("dasher.switch_mode", "default")
	v.SetDefault("dasher.align", true)
	v.SetDefault("dasher.sap", true)
	v.SetDefault("dasher.no_sar", false)
	v.SetDefault("dasher.mix_codecs", false)
	v.SetDefault("dasher.skip_seg", false)
	v.SetDefault("dasher.check_dur", true)
	v.SetDefault("dasher.subdur", defaultSubdur)
	v.SetDefault("dasher.dash_dur", defaultDashDur)
	v.SetDefault("dasher.ntp", "remove")
	v.SetDefault("dasher.hbbtv_compat", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "segments")
	v.SetDefault("storage.max_segment_size", "256MB")

	v.SetDefault("persistence.state_file_path", "./data/"+defaultStateFileName)
	v.SetDefault("persistence.restore_on_start", true)
	v.SetDefault("persistence.max_state_age", "24h")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validProfiles := map[string]bool{
		"live": true, "onDemand": true, "main": true, "HbbTV-1.5": true,
		"DASH-AVC-264 live": true, "DASH-AVC-264 onDemand": true, "full": true,
	}
	if !validProfiles[c.Dasher.Profile] {
		return fmt.Errorf("dasher.profile must be one of: live, onDemand, main, HbbTV-1.5, DASH-AVC-264 live, DASH-AVC-264 onDemand, full")
	}

	validSwitchModes := map[string]bool{"default": true, "off": true, "on": true, "inband": true, "force": true, "multi": true}
	if !validSwitchModes[c.Dasher.SwitchMode] {
		return fmt.Errorf("dasher.switch_mode must be one of: default, off, on, inband, force, multi")
	}

	validNTP := map[string]bool{"remove": true, "yes": true, "keep": true}
	if !validNTP[c.Dasher.NTP] {
		return fmt.Errorf("dasher.ntp must be one of: remove, yes, keep")
	}

	if c.Dasher.DashDur <= 0 {
		return fmt.Errorf("dasher.dash_dur must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	return nil
}
