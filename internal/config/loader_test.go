package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.SampleInterval(), convey.ShouldEqual, 1500*time.Millisecond)
			convey.So(cfg.MatchedHold(), convey.ShouldEqual, time.Second)
			convey.So(cfg.LogPollInterval(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.RecognitionTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.RecentCapacity, convey.ShouldEqual, 30)
			convey.So(cfg.FrameMaxWidth, convey.ShouldEqual, 1280)
			convey.So(cfg.FrameMaxHeight, convey.ShouldEqual, 720)
			convey.So(cfg.JPEGQuality, convey.ShouldEqual, 50)
			convey.So(cfg.CameraSource, convey.ShouldEqual, config.CameraDirectory)
			convey.So(cfg.AutoArm, convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero sample interval", func(c *config.Config) { c.SampleIntervalMS = 0 }},
			{"zero capacity", func(c *config.Config) { c.RecentCapacity = 0 }},
			{"quality out of range", func(c *config.Config) { c.JPEGQuality = 101 }},
			{"relative recognition", func(c *config.Config) { c.RecognitionURL = "/recognize" }},
			{"push over http", func(c *config.Config) { c.LogPushURL = "http://upstream/ws" }},
			{"poll over ws", func(c *config.Config) { c.LogPollURL = "ws://upstream/logs" }},
			{"unknown camera", func(c *config.Config) { c.CameraSource = "usb" }},
			{"snapshot without url", func(c *config.Config) { c.CameraSource = config.CameraSnapshot }},
			{"directory without dir", func(c *config.Config) { c.CameraDir = "" }},
		}

		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate(cfg)

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When the feeds are disabled", func() {
			cfg.LogPollURL = ""
			cfg.LogPushURL = ""

			convey.Convey("Then it is still valid", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ROLLCALL_ADDR", ":8080")
			_ = os.Setenv("ROLLCALL_SAMPLE_INTERVAL_MS", "750")
			_ = os.Setenv("ROLLCALL_RECENT_CAPACITY", "10")
			_ = os.Setenv("ROLLCALL_LOG_PUSH_URL", "wss://upstream.example/ws/attendance")
			_ = os.Setenv("ROLLCALL_AUTO_ARM", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SampleInterval(), convey.ShouldEqual, 750*time.Millisecond)
				convey.So(cfg.RecentCapacity, convey.ShouldEqual, 10)
				convey.So(cfg.LogPushURL, convey.ShouldEqual, "wss://upstream.example/ws/attendance")
				convey.So(cfg.AutoArm, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
# upstream on another host
addr: ":9090"
recognition_url: "http://10.0.0.5:8000/api/v1/attendance/process-frame"
camera_source: snapshot
camera_snapshot_url: "http://10.0.0.9/snapshot.jpg"
matched_hold_ms: 2000
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ROLLCALL_CONFIG", tmpFile)
			_ = os.Setenv("ROLLCALL_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RecognitionURL, convey.ShouldEqual, "http://10.0.0.5:8000/api/v1/attendance/process-frame")
				convey.So(cfg.CameraSource, convey.ShouldEqual, config.CameraSnapshot)
				convey.So(cfg.CameraSnapshotURL, convey.ShouldEqual, "http://10.0.0.9/snapshot.jpg")
				convey.So(cfg.MatchedHold(), convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.SampleIntervalMS, convey.ShouldEqual, 1500)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ROLLCALL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ROLLCALL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("ROLLCALL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("ROLLCALL_RECENT_CAPACITY", "many")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"ROLLCALL_CONFIG",
		"ROLLCALL_ADDR",
		"ROLLCALL_SAMPLE_INTERVAL_MS",
		"ROLLCALL_RECENT_CAPACITY",
		"ROLLCALL_LOG_PUSH_URL",
		"ROLLCALL_AUTO_ARM",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "rollcall-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
