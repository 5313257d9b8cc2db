// Package config defines the process configuration shared by the gpxtrim
// CLI and the HTTP front end.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/planbiir/gpxtrim/internal/trim"
)

// Config contains process configuration.
type Config struct {
	// MinSpeed is the speed in m/s below which a point is considered stopped.
	MinSpeed float64 `koanf:"min_speed"`

	// MinPauseDuration is the shortest pause, in seconds, that gets trimmed.
	MinPauseDuration int `koanf:"min_pause_duration"`

	// FallbackKeep is the time in seconds kept of a pause when nothing has
	// moved yet in the track.
	FallbackKeep float64 `koanf:"fallback_keep"`

	// Suffix is appended to the stem of output file names.
	Suffix string `koanf:"suffix"`

	// Workers bounds concurrent archive entries.
	Workers int `koanf:"workers"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// MaxUploadMB caps the request body of POST /trim.
	MaxUploadMB int `koanf:"max_upload_mb"`

	// MetricsTextfile, when set, makes the CLI write its metrics there.
	MetricsTextfile string `koanf:"metrics_textfile"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		MinSpeed:         0.1,
		MinPauseDuration: 240,
		FallbackKeep:     1.0,
		Suffix:           "_trimmed",
		Workers:          runtime.NumCPU(),
		LogLevel:         "info",
		Addr:             ":8080",
		MaxUploadMB:      64,
	}
}

// Validate reports the first invalid field wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.MinSpeed < 0:
		return fmt.Errorf("%w: min_speed must not be negative, got %g", ErrInvalidConfig, c.MinSpeed)
	case c.MinPauseDuration < 0:
		return fmt.Errorf("%w: min_pause_duration must not be negative, got %d", ErrInvalidConfig, c.MinPauseDuration)
	case c.FallbackKeep < 0:
		return fmt.Errorf("%w: fallback_keep must not be negative, got %g", ErrInvalidConfig, c.FallbackKeep)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	case c.Suffix == "":
		return fmt.Errorf("%w: suffix must not be empty", ErrInvalidConfig)
	case c.MaxUploadMB < 1:
		return fmt.Errorf("%w: max_upload_mb must be at least 1, got %d", ErrInvalidConfig, c.MaxUploadMB)
	}
	return nil
}

// Trim converts the trimming knobs into an engine config.
func (c *Config) Trim() trim.Config {
	return trim.Config{
		MinSpeed:         c.MinSpeed,
		MinPauseDuration: time.Duration(c.MinPauseDuration) * time.Second,
		FallbackKeep:     time.Duration(c.FallbackKeep * float64(time.Second)),
	}
}

// MaxUploadBytes returns MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
