package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/fedbench/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FEDBENCH_ADDR", ":8080")
			_ = os.Setenv("FEDBENCH_PATIENCE", "7")
			_ = os.Setenv("FEDBENCH_EPS", "0.001")
			_ = os.Setenv("FEDBENCH_KEY_TO_MONITOR", "average_test_loss")
			_ = os.Setenv("FEDBENCH_RUN_TIMEOUT", "90s")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Patience, convey.ShouldEqual, 7)
				convey.So(cfg.Eps, convey.ShouldEqual, 0.001)
				convey.So(cfg.KeyToMonitor, convey.ShouldEqual, "average_test_loss")
				convey.So(cfg.RunTimeout, convey.ShouldEqual, 90*time.Second)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
log_level: debug
log_json: true
patience: 3
eps: 0.01
max_runs: 50
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvFile, tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.LogJSON, convey.ShouldBeTrue)
				convey.So(cfg.Patience, convey.ShouldEqual, 3)
				convey.So(cfg.MaxRuns, convey.ShouldEqual, 50)
				convey.So(cfg.KeyToMonitor, convey.ShouldEqual, "value")
			})

			convey.Convey("And env vars override file values", func() {
				_ = os.Setenv("FEDBENCH_PATIENCE", "11")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Patience, convey.ShouldEqual, 11)
				convey.So(cfg.MaxRuns, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile("addr: [unterminated")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv(config.EnvFile, tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv(config.EnvFile, "/non/existent/file.yaml")
			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("FEDBENCH_ADDR", "")
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When eps is out of range", func() {
			_ = os.Setenv("FEDBENCH_EPS", "2")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "fedbench-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func clearConfigEnvVars() {
	for _, k := range []string{
		config.EnvFile,
		"FEDBENCH_ADDR",
		"FEDBENCH_LOG_LEVEL",
		"FEDBENCH_LOG_JSON",
		"FEDBENCH_PATIENCE",
		"FEDBENCH_EPS",
		"FEDBENCH_KEY_TO_MONITOR",
		"FEDBENCH_MAX_RUNS",
		"FEDBENCH_RUN_TIMEOUT",
		"FEDBENCH_MAX_ACTIVE_RUNS",
		"FEDBENCH_SHUTDOWN_TIMEOUT",
	} {
		_ = os.Unsetenv(k)
	}
}
