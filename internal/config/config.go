// Package config loads cronrun configuration from YAML or CUE files.
//
// Both formats are validated against the embedded CUE schema (schema.cue),
// then decoded over Default(), so omitted keys keep their defaults.
// Environment variables override file values; CLI flags override both and
// are applied by the caller.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // notify.timezone resolves without a system zoneinfo

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables read by ApplyEnv.
const (
	EnvWebhookURL      = "CRONRUN_WEBHOOK_URL"
	EnvNotifyEnabled   = "CRONRUN_NOTIFY_ENABLED"
	EnvJournalPath     = "CRONRUN_JOURNAL_PATH"
	EnvPostgresDSN     = "CRONRUN_POSTGRES_DSN"
	EnvAllowedServices = "CRONRUN_ALLOWED_SERVICES"
)

// Config is the full runtime configuration.
type Config struct {
	AllowedServices []string       `yaml:"allowed_services" json:"allowed_services"`
	Notify          NotifyConfig   `yaml:"notify" json:"notify"`
	Journal         JournalConfig  `yaml:"journal" json:"journal"`
	Postgres        PostgresConfig `yaml:"postgres" json:"postgres"`
	Grace           Duration       `yaml:"grace" json:"grace"`
	CallTimeout     Duration       `yaml:"call_timeout" json:"call_timeout"`
	Parser          ParserConfig   `yaml:"parser" json:"parser"`
	Log             LogConfig      `yaml:"log" json:"log"`
}

// NotifyConfig controls webhook delivery of failed-batch reports.
type NotifyConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	WebhookURL    string   `yaml:"webhook_url" json:"webhook_url"`
	MaxRetries    int      `yaml:"max_retries" json:"max_retries"`
	RetryDelay    Duration `yaml:"retry_delay" json:"retry_delay"`
	Backoff       string   `yaml:"backoff" json:"backoff"`
	MaxRetryDelay Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	Timeout       Duration `yaml:"timeout" json:"timeout"`
	Timezone      string   `yaml:"timezone" json:"timezone"`
}

// JournalConfig locates the SQLite run journal. Empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path" json:"path"`
}

// PostgresConfig configures the pooled Postgres resource.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// ParserConfig tunes call-expression parsing.
type ParserConfig struct {
	StrictNesting bool `yaml:"strict_nesting" json:"strict_nesting"`
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		AllowedServices: []string{"TestService", "HealthCheckService"},
		Notify: NotifyConfig{
			MaxRetries: 3,
			RetryDelay: Duration(3 * time.Second),
			Backoff:    "constant",
			Timeout:    Duration(10 * time.Second),
			Timezone:   "Asia/Seoul",
		},
		Grace: Duration(3 * time.Second),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads, validates and decodes the file at path. Files ending in .cue
// are read as CUE; everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return parseCUE(path, data)
	}
	return parseYAML(data)
}

// parseYAML decodes YAML with strict field checking, then validates the
// same document against the schema.
func parseYAML(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ctx := cuecontext.New()
	if err := validate(ctx, ctx.Encode(doc)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseCUE compiles a CUE file, unifies it with #Config and decodes the
// concrete result.
func parseCUE(path string, data []byte) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}

	unified, err := unify(ctx, v)
	if err != nil {
		return nil, err
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func validate(ctx *cue.Context, v cue.Value) error {
	_, err := unify(ctx, v)
	return err
}

func unify(ctx *cue.Context, v cue.Value) (cue.Value, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("invalid embedded schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, fmt.Errorf("invalid config: %w", err)
	}
	return unified, nil
}

// ApplyEnv overrides cfg from the environment through lookup (os.LookupEnv
// in production).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvWebhookURL); ok {
		cfg.Notify.WebhookURL = v
	}
	if v, ok := lookup(EnvNotifyEnabled); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvNotifyEnabled, err)
		}
		cfg.Notify.Enabled = enabled
	}
	if v, ok := lookup(EnvJournalPath); ok {
		cfg.Journal.Path = v
	}
	if v, ok := lookup(EnvPostgresDSN); ok {
		cfg.Postgres.DSN = v
	}
	if v, ok := lookup(EnvAllowedServices); ok {
		var names []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		cfg.AllowedServices = names
	}
	return nil
}

// Location resolves the notification timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Notify.Timezone)
	if err != nil {
		return nil, fmt.Errorf("notify.timezone: %w", err)
	}
	return loc, nil
}
