// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"deskviz/internal/analysis"
	"deskviz/internal/audio"
)

// Built-in defaults. They reproduce the overlay's established behaviour and
// are overridden by the YAML file and then by ENV_* variables.
const (
	DefaultLogLevel         = "info"
	DefaultFramesPerBuffer  = audio.DefaultFramesPerBuffer
	DefaultSmoothing        = analysis.DefaultSmoothing
	DefaultPausePoll        = audio.DefaultPausePoll
	DefaultReadTimeout      = audio.DefaultReadTimeout
	DefaultMixerSampleRate  = audio.DefaultMixerSampleRate
	DefaultRecordingDir     = "./recordings"
	DefaultPublishInterval  = 50 * time.Millisecond
	DefaultWebSocketAddress = "127.0.0.1:8765"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
)

// DefaultBackends is the order backends are tried in: direct loopback first,
// then a loopback-capable mixer input.
var DefaultBackends = []string{audio.LoopbackBackendName, audio.MixerBackendName}

// Config is the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level" validate:"loglevel"`
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig controls capture and the supervisor.
type AudioConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Backends          []string      `yaml:"backends" validate:"min=1,unique,dive,oneof=loopback mixer"`
	Device            string        `yaml:"device"` // substring of the preferred device name
	FramesPerBuffer   int           `yaml:"frames_per_buffer" validate:"gte=64,lte=16384,pow2"`
	Smoothing         float64       `yaml:"smoothing" validate:"gte=0,lt=1"`
	PausePollInterval time.Duration `yaml:"pause_poll_interval" validate:"gt=0"`
	ReadTimeout       time.Duration `yaml:"read_timeout" validate:"gt=0"`
	MixerSampleRate   float64       `yaml:"mixer_sample_rate" validate:"gte=8000,lte=192000"`
	LowLatency        bool          `yaml:"low_latency"`
}

// AnalysisConfig holds the analyzer gains and band cutoffs in Hz.
type AnalysisConfig struct {
	VolumeGain   float64 `yaml:"volume_gain" validate:"gt=0"`
	BandGain     float64 `yaml:"band_gain" validate:"gt=0"`
	BassLowHz    float64 `yaml:"bass_low_hz" validate:"gte=0"`
	BassHighHz   float64 `yaml:"bass_high_hz" validate:"gtfield=BassLowHz"`
	MidHighHz    float64 `yaml:"mid_high_hz" validate:"gtfield=BassHighHz"`
	TrebleHighHz float64 `yaml:"treble_high_hz" validate:"gtfield=MidHighHz"`
}

// RecordingConfig controls the WAV debug tap.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir" validate:"required_if=Enabled true"`
}

// TransportConfig controls how snapshots leave the process.
type TransportConfig struct {
	PublishInterval  time.Duration `yaml:"publish_interval" validate:"gt=0"`
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address" validate:"required_if=WebSocketEnabled true,omitempty,hostname_port"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address" validate:"required_if=UDPEnabled true,omitempty,hostname_port"`
	MetricsEnabled   bool          `yaml:"metrics_enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	tuning := analysis.DefaultTuning()
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Enabled:           true,
			Backends:          append([]string(nil), DefaultBackends...),
			FramesPerBuffer:   DefaultFramesPerBuffer,
			Smoothing:         DefaultSmoothing,
			PausePollInterval: DefaultPausePoll,
			ReadTimeout:       DefaultReadTimeout,
			MixerSampleRate:   DefaultMixerSampleRate,
		},
		Analysis: AnalysisConfig{
			VolumeGain:   tuning.VolumeGain,
			BandGain:     tuning.BandGain,
			BassLowHz:    tuning.BassLowHz,
			BassHighHz:   tuning.BassHighHz,
			MidHighHz:    tuning.MidHighHz,
			TrebleHighHz: tuning.TrebleHighHz,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
		},
		Transport: TransportConfig{
			PublishInterval:  DefaultPublishInterval,
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTargetAddress,
		},
	}
}

// Tuning converts the analysis section into analyzer tuning.
func (c *Config) Tuning() analysis.Tuning {
	return analysis.Tuning{
		VolumeGain:   c.Analysis.VolumeGain,
		BandGain:     c.Analysis.BandGain,
		BassLowHz:    c.Analysis.BassLowHz,
		BassHighHz:   c.Analysis.BassHighHz,
		MidHighHz:    c.Analysis.MidHighHz,
		TrebleHighHz: c.Analysis.TrebleHighHz,
	}
}

// EngineConfig converts the audio section into supervisor settings.
func (c *Config) EngineConfig() audio.EngineConfig {
	return audio.EngineConfig{
		FramesPerBuffer: c.Audio.FramesPerBuffer,
		Smoothing:       c.Audio.Smoothing,
		PausePoll:       c.Audio.PausePollInterval,
		Device:          c.Audio.Device,
		Tuning:          c.Tuning(),
	}
}

// LoopbackOptions returns the direct loopback backend settings.
func (c *Config) LoopbackOptions() audio.LoopbackOptions {
	return audio.LoopbackOptions{ReadTimeout: c.Audio.ReadTimeout}
}

// MixerOptions returns the mixer backend settings.
func (c *Config) MixerOptions() audio.MixerOptions {
	return audio.MixerOptions{
		SampleRate:  c.Audio.MixerSampleRate,
		LowLatency:  c.Audio.LowLatency,
		ReadTimeout: c.Audio.ReadTimeout,
	}
}

// Backends builds the configured backends in fallback order.
func (c *Config) Backends() []audio.Backend {
	backends := make([]audio.Backend, 0, len(c.Audio.Backends))
	for _, name := range c.Audio.Backends {
		switch name {
		case audio.LoopbackBackendName:
			backends = append(backends, audio.NewLoopbackBackend(c.LoopbackOptions()))
		case audio.MixerBackendName:
			backends = append(backends, audio.NewMixerBackend(c.MixerOptions()))
		}
	}
	return backends
}
