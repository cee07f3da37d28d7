package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "live", cfg.Dasher.Profile)
	assert.Equal(t, "default", cfg.Dasher.SwitchMode)
	assert.True(t, cfg.Dasher.Align)
	assert.True(t, cfg.Dasher.SAP)
	assert.True(t, cfg.Dasher.CheckDur)
	assert.Equal(t, defaultDashDur, cfg.Dasher.DashDur)
	assert.Equal(t, "remove", cfg.Dasher.NTP)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, "./data", cfg.Storage.BaseDir)
	assert.Equal(t, "segments", cfg.Storage.OutputDir)
	assert.Equal(t, int64(256*1024*1024), cfg.Storage.MaxSegmentSize.Bytes())

	assert.True(t, cfg.Persistence.RestoreOnStart)
	assert.Equal(t, 24*time.Hour, cfg.Persistence.MaxStateAge.Duration())
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
dasher:
  profile: onDemand
  switch_mode: multi
  align: false
  dash_dur: 4s
  skip_seg: true
storage:
  base_dir: /var/lib/dasher
  output_dir: out
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "onDemand", cfg.Dasher.Profile)
	assert.Equal(t, "multi", cfg.Dasher.SwitchMode)
	assert.False(t, cfg.Dasher.Align)
	assert.Equal(t, 4*time.Second, cfg.Dasher.DashDur)
	assert.True(t, cfg.Dasher.SkipSeg)
	assert.Equal(t, "/var/lib/dasher", cfg.Storage.BaseDir)
	assert.Equal(t, "out", cfg.Storage.OutputDir)
}

func TestValidateRejectsUnknownProfile(t *testing.T) {
	cfg := &Config{
		Dasher:  DasherConfig{Profile: "bogus", SwitchMode: "default", NTP: "remove", DashDur: time.Second},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{BaseDir: "./data"},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveDashDur(t *testing.T) {
	cfg := &Config{
		Dasher:  DasherConfig{Profile: "live", SwitchMode: "default", NTP: "remove", DashDur: 0},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{BaseDir: "./data"},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{
		Dasher:  DasherConfig{Profile: "live", SwitchMode: "default", NTP: "remove", DashDur: time.Second},
		Logging: LoggingConfig{Level: "verbose", Format: "json"},
		Storage: StorageConfig{BaseDir: "./data"},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresStorageBaseDir(t *testing.T) {
	cfg := &Config{
		Dasher:  DasherConfig{Profile: "live", SwitchMode: "default", NTP: "remove", DashDur: time.Second},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{BaseDir: ""},
	}
	assert.Error(t, cfg.Validate())
}

func TestOutputPathJoinsBaseAndOutputDir(t *testing.T) {
	c := StorageConfig{BaseDir: "/data", OutputDir: "segments"}
	assert.Equal(t, "/data/segments", c.OutputPath())
}
