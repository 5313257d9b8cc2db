package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/planbiir/gpxtrim/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("GPXTRIM_MIN_SPEED", "0.5")
			_ = os.Setenv("GPXTRIM_MIN_PAUSE_DURATION", "120")
			_ = os.Setenv("GPXTRIM_SUFFIX", "_short")
			_ = os.Setenv("GPXTRIM_WORKERS", "3")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MinSpeed, convey.ShouldEqual, 0.5)
				convey.So(cfg.MinPauseDuration, convey.ShouldEqual, 120)
				convey.So(cfg.Suffix, convey.ShouldEqual, "_short")
				convey.So(cfg.Workers, convey.ShouldEqual, 3)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			clearConfigEnvVars()
			path := filepath.Join(t.TempDir(), "gpxtrim.yaml")
			yaml := "min_pause_duration: 300\nfallback_keep: 2\naddr: \":9090\"\nworkers: 2\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)

			_ = os.Setenv(config.FileEnv, path)
			_ = os.Setenv("GPXTRIM_WORKERS", "5")
			defer clearConfigEnvVars()

			cfg, err := config.Load()

			convey.Convey("Then file values apply and env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MinPauseDuration, convey.ShouldEqual, 300)
				convey.So(cfg.FallbackKeep, convey.ShouldEqual, 2.0)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Workers, convey.ShouldEqual, 5)
				convey.So(cfg.MinSpeed, convey.ShouldEqual, 0.1)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			clearConfigEnvVars()
			_ = os.Setenv(config.FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
			defer clearConfigEnvVars()

			_, err := config.Load()

			convey.Convey("Then it should fail with ErrLoadConfig", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When env sets an invalid value", func() {
			clearConfigEnvVars()
			_ = os.Setenv("GPXTRIM_WORKERS", "0")
			defer clearConfigEnvVars()

			_, err := config.Load()

			convey.Convey("Then it should fail validation", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		config.FileEnv,
		"GPXTRIM_MIN_SPEED",
		"GPXTRIM_MIN_PAUSE_DURATION",
		"GPXTRIM_FALLBACK_KEEP",
		"GPXTRIM_SUFFIX",
		"GPXTRIM_WORKERS",
		"GPXTRIM_LOG_LEVEL",
		"GPXTRIM_ADDR",
		"GPXTRIM_MAX_UPLOAD_MB",
		"GPXTRIM_METRICS_TEXTFILE",
	} {
		_ = os.Unsetenv(key)
	}
}
