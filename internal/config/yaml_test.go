// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"deskviz/internal/analysis"
	"deskviz/internal/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, cfg.Audio.Enabled)
	assert.Equal(t, []string{"loopback", "mixer"}, cfg.Audio.Backends)
	assert.Equal(t, 2048, cfg.Audio.FramesPerBuffer)
	assert.Equal(t, 0.6, cfg.Audio.Smoothing)
	assert.Equal(t, 100*time.Millisecond, cfg.Audio.PausePollInterval)
	assert.Equal(t, 48000.0, cfg.Audio.MixerSampleRate)
	assert.Equal(t, 50*time.Millisecond, cfg.Transport.PublishInterval)
	assert.Equal(t, analysis.DefaultTuning(), cfg.Tuning())
}

func TestLoadConfigFileNotFound(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
	assert.Nil(t, cfg)
}

func TestLoadConfigUnmarshalError(t *testing.T) {
	_, err := LoadConfig(writeTempConfig(t, ":\n:bad"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoadConfigFile(t *testing.T) {
	path := writeTempConfig(t, `
log_level: DEBUG
audio:
  backends: [mixer]
  device: headphones
  frames_per_buffer: 1024
  smoothing: 0.3
  pause_poll_interval: 250ms
analysis:
  bass_high_hz: 300
transport:
  publish_interval: 20ms
  websocket_enabled: true
  websocket_address: 127.0.0.1:9999
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, []string{"mixer"}, cfg.Audio.Backends)
	assert.Equal(t, 20*time.Millisecond, cfg.Transport.PublishInterval)

	ec := cfg.EngineConfig()
	assert.Equal(t, 1024, ec.FramesPerBuffer)
	assert.Equal(t, 0.3, ec.Smoothing)
	assert.Equal(t, 250*time.Millisecond, ec.PausePoll)
	assert.Equal(t, "headphones", ec.Device)
	assert.Equal(t, 300.0, ec.Tuning.BassHighHz)
	assert.Equal(t, analysis.DefaultMidHighHz, ec.Tuning.MidHighHz)

	backends := cfg.Backends()
	require.Len(t, backends, 1)
	assert.Equal(t, audio.MixerBackendName, backends[0].Name())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"frames not power of two", func(c *Config) { c.Audio.FramesPerBuffer = 1000 }, "audio.frames_per_buffer must be a power of two"},
		{"frames too small", func(c *Config) { c.Audio.FramesPerBuffer = 32 }, "audio.frames_per_buffer must be greater than or equal to 64"},
		{"smoothing of one", func(c *Config) { c.Audio.Smoothing = 1 }, "audio.smoothing must be less than 1"},
		{"no backends", func(c *Config) { c.Audio.Backends = nil }, "audio.backends"},
		{"unknown backend", func(c *Config) { c.Audio.Backends = []string{"pulse"} }, "must be one of: loopback mixer"},
		{"duplicate backend", func(c *Config) { c.Audio.Backends = []string{"mixer", "mixer"} }, "must not contain duplicates"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level must be one of"},
		{"cutoffs out of order", func(c *Config) { c.Analysis.MidHighHz = 100 }, "analysis.mid_high_hz must be greater than bass_high_hz"},
		{"zero gain", func(c *Config) { c.Analysis.BandGain = 0 }, "analysis.band_gain must be greater than 0"},
		{"udp without address", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = ""
		}, "transport.udp_target_address is required"},
		{"bad websocket address", func(c *Config) {
			c.Transport.WebSocketEnabled = true
			c.Transport.WebSocketAddress = "localhost"
		}, "transport.websocket_address must be a host:port address"},
		{"recording without dir", func(c *Config) {
			c.Recording.Enabled = true
			c.Recording.OutputDir = ""
		}, "recording.output_dir is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_AUDIO_BACKENDS", " Mixer , loopback")
	t.Setenv("ENV_AUDIO_FRAMES_PER_BUFFER", "4096")
	t.Setenv("ENV_UDP_ENABLED", "yes") // not a bool, ignored
	t.Setenv("ENV_PUBLISH_INTERVAL", "100ms")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"mixer", "loopback"}, cfg.Audio.Backends)
	assert.Equal(t, 4096, cfg.Audio.FramesPerBuffer)
	assert.False(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, 100*time.Millisecond, cfg.Transport.PublishInterval)
}

func TestEnvOverridesAreValidated(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV_AUDIO_FRAMES_PER_BUFFER", "3000")

	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "invalid configuration")
}
