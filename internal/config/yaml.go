// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"deskviz/internal/log"
	"deskviz/pkg/bitint"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up in the working directory when no path is given.
const DefaultPath = "config.yaml"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("pow2", func(fl validator.FieldLevel) bool {
		return bitint.IsPowerOfTwo(int(fl.Field().Int()))
	})
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, ok := log.ParseLevel(fl.Field().String())
		return ok
	})
	return v
}

// LoadConfig builds the configuration from the built-in defaults, the YAML
// file at path (or DefaultPath when path is empty and the file exists) and
// the ENV_* overrides, in that order, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges, the power-of-two frame size and that the
// band cutoffs ascend.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Errorf("%s %s", fieldPath(e), validationMessage(e)))
	}
	return errors.Join(msgs...)
}

// fieldPath turns "Config.audio.frames_per_buffer" into the YAML key path.
func fieldPath(e validator.FieldError) string {
	_, path, _ := strings.Cut(e.Namespace(), ".")
	return path
}

// snake converts a Go field name such as BassLowHz to bass_low_hz.
func snake(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "gtfield":
		return fmt.Sprintf("must be greater than %s", snake(e.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "unique":
		return "must not contain duplicates"
	case "pow2":
		return "must be a power of two"
	case "loglevel":
		return "must be one of: debug, info, warn, error"
	case "hostname_port":
		return "must be a host:port address"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// applyEnvOverrides applies ENV_* variables on top of the loaded file.
// Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	envBool("ENV_DEBUG", &c.Debug)
	envString("ENV_LOG_LEVEL", &c.LogLevel)

	envBool("ENV_AUDIO_ENABLED", &c.Audio.Enabled)
	envString("ENV_AUDIO_DEVICE", &c.Audio.Device)
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKENDS"); ok {
		var backends []string
		for _, b := range strings.Split(val, ",") {
			if b = strings.TrimSpace(b); b != "" {
				backends = append(backends, strings.ToLower(b))
			}
		}
		c.Audio.Backends = backends
		log.Infow("configuration override from env", "key", "audio.backends", "value", backends)
	}
	envInt("ENV_AUDIO_FRAMES_PER_BUFFER", &c.Audio.FramesPerBuffer)

	envBool("ENV_RECORDING_ENABLED", &c.Recording.Enabled)
	envString("ENV_RECORDING_OUTPUT_DIR", &c.Recording.OutputDir)

	envDuration("ENV_PUBLISH_INTERVAL", &c.Transport.PublishInterval)
	envBool("ENV_WEBSOCKET_ENABLED", &c.Transport.WebSocketEnabled)
	envString("ENV_WEBSOCKET_ADDRESS", &c.Transport.WebSocketAddress)
	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envBool("ENV_METRICS_ENABLED", &c.Transport.MetricsEnabled)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		log.Infow("configuration override from env", "key", key, "value", val)
	}
}

func envBool(key string, dst *bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Warnw("ignoring env override", "key", key, "value", val, "error", err)
		return
	}
	*dst = b
	log.Infow("configuration override from env", "key", key, "value", b)
}

func envInt(key string, dst *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Warnw("ignoring env override", "key", key, "value", val, "error", err)
		return
	}
	*dst = n
	log.Infow("configuration override from env", "key", key, "value", n)
}

func envDuration(key string, dst *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Warnw("ignoring env override", "key", key, "value", val, "error", err)
		return
	}
	*dst = d
	log.Infow("configuration override from env", "key", key, "value", d)
}
