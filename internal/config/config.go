// Package config loads sheetsync settings from a YAML file with
// SHEETSYNC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/notify"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHEETSYNC_"

// Config is the full application configuration.
type Config struct {
	Defaults      Defaults      `yaml:"defaults"`
	Sheets        Sheets        `yaml:"sheets"`
	Database      Database      `yaml:"database"`
	Notifications Notifications `yaml:"notifications"`
	Logging       Logging       `yaml:"logging"`
	Metrics       Metrics       `yaml:"metrics"`
	Queue         Queue         `yaml:"queue"`
	RecordTypes   []RecordType  `yaml:"record_types"`
}

// Defaults apply when neither the caller nor the record type decides.
type Defaults struct {
	BatchSize int           `yaml:"batch_size"`
	SyncMode  model.Mode    `yaml:"sync_mode"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
}

// Sheets configures the remote sheet API.
type Sheets struct {
	RateLimit       RateLimit `yaml:"rate_limit"`
	CredentialsFile string    `yaml:"credentials_file"`
}

// RateLimit allows MaxRequests calls per PerSeconds seconds.
type RateLimit struct {
	MaxRequests int `yaml:"max_requests"`
	PerSeconds  int `yaml:"per_seconds"`
}

// Period returns the window length.
func (r RateLimit) Period() time.Duration {
	return time.Duration(r.PerSeconds) * time.Second
}

// Database locates the state and source database.
type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Notifications selects channels and the events they receive.
type Notifications struct {
	Channels   []string       `yaml:"channels"`
	WebhookURL string         `yaml:"webhook_url"`
	NotifyOn   notify.Toggles `yaml:"notify_on"`
}

// Logging configures the process logger.
type Logging struct {
	Level         string `yaml:"level"`
	File          string `yaml:"file"`
	SeparateFiles bool   `yaml:"separate_files"`
	MaxSizeMB     int    `yaml:"max_size_mb"`
	MaxBackups    int    `yaml:"max_backups"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Queue configures the retry worker.
type Queue struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// RecordType declares a table-backed record type.
type RecordType struct {
	Name          string     `yaml:"name"`
	Table         string     `yaml:"table"`
	PrimaryKey    string     `yaml:"primary_key"`
	SheetID       string     `yaml:"sheet_id"`
	SheetName     string     `yaml:"sheet_name"`
	Columns       []string   `yaml:"columns"`
	Headers       []string   `yaml:"headers"`
	UniqueFields  []string   `yaml:"unique_fields"`
	BatchSize     int        `yaml:"batch_size"`
	SyncMode      model.Mode `yaml:"sync_mode"`
	CreationField string     `yaml:"creation_field"`
	Dedup         *bool      `yaml:"dedup"`
}

// Spec converts the declaration into a record.TableSpec.
func (rt RecordType) Spec() record.TableSpec {
	return record.TableSpec{
		Name:          rt.Name,
		Table:         rt.Table,
		PrimaryKey:    rt.PrimaryKey,
		SheetID:       rt.SheetID,
		SheetName:     rt.SheetName,
		Columns:       rt.Columns,
		Headers:       rt.Headers,
		UniqueFields:  rt.UniqueFields,
		BatchSize:     rt.BatchSize,
		SyncMode:      rt.SyncMode,
		CreationField: rt.CreationField,
		Dedup:         rt.Dedup,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Defaults: Defaults{
			BatchSize: 100,
			SyncMode:  model.ModeAppend,
			Timeout:   600 * time.Second,
			Retries:   3,
		},
		Sheets: Sheets{
			RateLimit: RateLimit{MaxRequests: 100, PerSeconds: 60},
		},
		Database: Database{
			Driver: store.DriverSQLite,
			DSN:    "sheetsync.db",
		},
		Notifications: Notifications{
			Channels: []string{notify.ChannelLog},
			NotifyOn: notify.DefaultToggles(),
		},
		Logging: Logging{
			Level:      "info",
			File:       "logs/sheet-sync.log",
			MaxSizeMB:  100,
			MaxBackups: 30,
		},
		Queue: Queue{PollInterval: 5 * time.Second},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from SHEETSYNC_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("CREDENTIALS_FILE", &c.Sheets.CredentialsFile)
	str("WEBHOOK_URL", &c.Notifications.WebhookURL)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	str("METRICS_ADDR", &c.Metrics.Addr)

	var mode string
	str("SYNC_MODE", &mode)
	if mode != "" {
		c.Defaults.SyncMode = model.Mode(mode)
	}
	var channels string
	str("NOTIFY_CHANNELS", &channels)
	if channels != "" {
		c.Notifications.Channels = splitList(channels)
	}

	return errors.Join(
		num("BATCH_SIZE", &c.Defaults.BatchSize),
		num("RETRIES", &c.Defaults.Retries),
		num("RATE_MAX_REQUESTS", &c.Sheets.RateLimit.MaxRequests),
		num("RATE_PER_SECONDS", &c.Sheets.RateLimit.PerSeconds),
		dur("TIMEOUT", &c.Defaults.Timeout),
		dur("POLL_INTERVAL", &c.Queue.PollInterval),
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("config: "+format, args...))
	}

	if c.Defaults.BatchSize <= 0 {
		fail("defaults.batch_size must be positive, got %d", c.Defaults.BatchSize)
	}
	if !c.Defaults.SyncMode.Valid() {
		fail("defaults.sync_mode %q is not one of %v", c.Defaults.SyncMode, model.Modes)
	}
	if c.Defaults.Timeout <= 0 {
		fail("defaults.timeout must be positive, got %s", c.Defaults.Timeout)
	}
	if c.Defaults.Retries < 0 {
		fail("defaults.retries must not be negative, got %d", c.Defaults.Retries)
	}

	rl := c.Sheets.RateLimit
	if rl.MaxRequests < 0 {
		fail("sheets.rate_limit.max_requests must not be negative, got %d", rl.MaxRequests)
	}
	if rl.MaxRequests > 0 && rl.PerSeconds <= 0 {
		fail("sheets.rate_limit.per_seconds must be positive, got %d", rl.PerSeconds)
	}

	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		fail("database.driver %q is not one of [%s %s]", c.Database.Driver, store.DriverSQLite, store.DriverPostgres)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		fail("database.dsn is required")
	}

	for _, ch := range c.Notifications.Channels {
		switch ch {
		case notify.ChannelLog:
		case notify.ChannelWebhook:
			if c.Notifications.WebhookURL == "" {
				fail("notifications.webhook_url is required for the webhook channel")
			}
		default:
			fail("notifications.channels: unknown channel %q", ch)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		fail("logging.level %q: %v", c.Logging.Level, err)
	}
	if c.Logging.SeparateFiles && c.Logging.File == "" {
		fail("logging.file is required when logging.separate_files is set")
	}
	if c.Queue.PollInterval <= 0 {
		fail("queue.poll_interval must be positive, got %s", c.Queue.PollInterval)
	}

	seen := make(map[string]bool)
	for i, rt := range c.RecordTypes {
		switch {
		case strings.TrimSpace(rt.Name) == "":
			fail("record_types[%d]: name is required", i)
			continue
		case seen[rt.Name]:
			fail("record_types[%d]: duplicate name %q", i, rt.Name)
		}
		seen[rt.Name] = true
		if rt.Table == "" {
			fail("record_types[%d] %s: table is required", i, rt.Name)
		}
		if rt.SheetID == "" || rt.SheetName == "" {
			fail("record_types[%d] %s: sheet_id and sheet_name are required", i, rt.Name)
		}
		if rt.BatchSize < 0 {
			fail("record_types[%d] %s: batch_size must not be negative, got %d", i, rt.Name, rt.BatchSize)
		}
		if rt.SyncMode != "" && !rt.SyncMode.Valid() {
			fail("record_types[%d] %s: sync_mode %q is not one of %v", i, rt.Name, rt.SyncMode, model.Modes)
		}
	}
	return errors.Join(errs...)
}

// Registry builds a record registry from the declared record types.
func (c *Config) Registry() (*record.Registry, error) {
	types := make([]record.Syncable, len(c.RecordTypes))
	for i, rt := range c.RecordTypes {
		types[i] = record.NewTableType(rt.Spec())
	}
	return record.NewRegistry(types...)
}
