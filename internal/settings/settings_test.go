package settings_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/derekprior/fixtures/internal/settings"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// setenv sets variables for the current Convey block; call the returned
// func with defer.
func setenv(kv map[string]string) func() {
	for k, v := range kv {
		_ = os.Setenv(k, v)
	}
	return func() {
		for k := range kv {
			_ = os.Unsetenv(k)
		}
	}
}

func TestSettingsLoader(t *testing.T) {
	convey.Convey("Given a settings loader", t, func() {
		convey.Convey("When loading with defaults only", func() {
			cfg, err := settings.Load("")

			convey.Convey("Then the defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Environment, convey.ShouldEqual, "development")
				convey.So(cfg.Database.Driver, convey.ShouldEqual, settings.DriverSQLite)
				convey.So(cfg.Database.DSN, convey.ShouldEqual, "fixtures.db")
				convey.So(cfg.Redis.Addr, convey.ShouldBeEmpty)
				convey.So(cfg.Redis.LockTTL, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.Scheduling.MaxAttempts, convey.ShouldEqual, 3)
				convey.So(cfg.Scheduling.TimeSlots, convey.ShouldHaveLength, 4)
				convey.So(cfg.Scheduling.TimeSlots[0].Label, convey.ShouldEqual, "19:00")
			})
		})

		convey.Convey("When loading a YAML file", func() {
			dir := t.TempDir()
			path := writeFile(t, dir, "fixtures.yaml", `
environment: production
log_level: warn
database:
  driver: postgres
  dsn: postgres://localhost/fixtures
redis:
  addr: localhost:6379
  lock_ttl: 45s
scheduling:
  tx_timeout: 5s
  max_attempts: 5
  time_slots:
    - label: "10:00"
      weight: 2
    - label: "14:00"
      weight: 1
`)
			cfg, err := settings.Load(path)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.IsDevelopment(), convey.ShouldBeFalse)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
				convey.So(cfg.Database.Driver, convey.ShouldEqual, settings.DriverPostgres)
				convey.So(cfg.Redis.Addr, convey.ShouldEqual, "localhost:6379")
				convey.So(cfg.Redis.LockTTL, convey.ShouldEqual, 45*time.Second)
				convey.So(cfg.Scheduling.TxTimeout, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.Scheduling.MaxAttempts, convey.ShouldEqual, 5)
				convey.So(cfg.Scheduling.RetryDelay, convey.ShouldEqual, 50*time.Millisecond)
				convey.So(cfg.Scheduling.TimeSlots, convey.ShouldHaveLength, 2)
				convey.So(cfg.Scheduling.TimeSlots[1].Label, convey.ShouldEqual, "14:00")
			})
		})

		convey.Convey("When environment variables are set", func() {
			dir := t.TempDir()
			path := writeFile(t, dir, "fixtures.yaml", "addr: \":9090\"\nlog_level: debug\n")
			defer setenv(map[string]string{
				"FIXTURES_LOG_LEVEL":                "error",
				"FIXTURES_DATABASE__DSN":            "/tmp/other.db",
				"FIXTURES_SCHEDULING__MAX_ATTEMPTS": "7",
			})()

			cfg, err := settings.Load(path)

			convey.Convey("Then they override the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "error")
				convey.So(cfg.Database.DSN, convey.ShouldEqual, "/tmp/other.db")
				convey.So(cfg.Scheduling.MaxAttempts, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When a .env file sits beside the settings file", func() {
			dir := t.TempDir()
			path := writeFile(t, dir, "fixtures.yaml", "environment: staging\n")
			writeFile(t, dir, ".env", "FIXTURES_REDIS__PASSWORD=s3cret\n")
			defer func() { _ = os.Unsetenv("FIXTURES_REDIS__PASSWORD") }()

			cfg, err := settings.Load(path)

			convey.Convey("Then its variables are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Environment, convey.ShouldEqual, "staging")
				convey.So(cfg.Redis.Password, convey.ShouldEqual, "s3cret")
			})
		})

		convey.Convey("When the settings are invalid", func() {
			dir := t.TempDir()

			convey.Convey("Then an unknown driver is rejected", func() {
				path := writeFile(t, dir, "bad.yaml", "database:\n  driver: mysql\n")
				_, err := settings.Load(path)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "database.driver")
			})

			convey.Convey("Then a bad log level is rejected", func() {
				path := writeFile(t, dir, "bad.yaml", "log_level: loud\n")
				_, err := settings.Load(path)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "log_level")
			})

			convey.Convey("Then an unordered slot table is rejected", func() {
				path := writeFile(t, dir, "bad.yaml", `
scheduling:
  time_slots:
    - label: "18:00"
      weight: 1
    - label: "19:00"
      weight: 3
`)
				_, err := settings.Load(path)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "time_slots")
			})

			convey.Convey("Then a missing file is an error", func() {
				_, err := settings.Load(filepath.Join(dir, "nope.yaml"))
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
