// Package config loads runtime settings from an optional TOML file overlaid
// with environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"

	// FileEnv names the environment variable holding the TOML file path.
	FileEnv = "POD_CONFIG_FILE"
)

// Config holds every runtime setting. Model names and the OpenAI token are
// not here; they are read from Parameter Store under ParamPrefix.
type Config struct {
	StoreBackend         string `toml:"store_backend"`
	DocketTable          string `toml:"docket_table"`
	SQLitePath           string `toml:"sqlite_path"`
	ParamPrefix          string `toml:"param_prefix"`
	OpenAIBaseURL        string `toml:"openai_base_url"`
	MaxMessageLength     int    `toml:"max_message_length"`
	MaxImageBytes        int    `toml:"max_image_bytes"`
	VerifyTimeoutSeconds int    `toml:"verify_timeout_seconds"`
	SessionIdleSeconds   int    `toml:"session_idle_seconds"`
	SeedDockets          bool   `toml:"seed_dockets"`
	LogLevel             string `toml:"log_level"`
}

// Default returns the settings used when neither the file nor the
// environment provides a value.
func Default() Config {
	return Config{
		StoreBackend:         BackendDynamoDB,
		SQLitePath:           "pod-assistant.db",
		OpenAIBaseURL:        "https://api.openai.com/v1",
		MaxMessageLength:     500,
		MaxImageBytes:        8 << 20,
		VerifyTimeoutSeconds: 60,
		SessionIdleSeconds:   1800,
		SeedDockets:          true,
		LogLevel:             "info",
	}
}

// VerifyTimeout is VerifyTimeoutSeconds as a duration.
func (c Config) VerifyTimeout() time.Duration {
	return time.Duration(c.VerifyTimeoutSeconds) * time.Second
}

// SessionIdleTimeout is how long an untouched session survives.
func (c Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleSeconds) * time.Second
}

// Load builds a Config from defaults, the TOML file named by POD_CONFIG_FILE
// (if set) and then the environment. lookup is usually os.LookupEnv.
func Load(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()

	if path, ok := lookup(FileEnv); ok && strings.TrimSpace(path) != "" {
		if err := decodeFile(strings.TrimSpace(path), &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(lookup, &cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(lookup func(string) (string, bool), cfg *Config) error {
	envString(lookup, "STORE_BACKEND", &cfg.StoreBackend)
	envString(lookup, "DOCKET_TABLE", &cfg.DocketTable)
	envString(lookup, "SQLITE_PATH", &cfg.SQLitePath)
	envString(lookup, "PARAM_PREFIX", &cfg.ParamPrefix)
	envString(lookup, "OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	envString(lookup, "LOG_LEVEL", &cfg.LogLevel)

	if err := envInt(lookup, "MAX_MESSAGE_LENGTH", &cfg.MaxMessageLength); err != nil {
		return err
	}
	if err := envInt(lookup, "MAX_IMAGE_BYTES", &cfg.MaxImageBytes); err != nil {
		return err
	}
	if err := envInt(lookup, "VERIFY_TIMEOUT_SECONDS", &cfg.VerifyTimeoutSeconds); err != nil {
		return err
	}
	if err := envInt(lookup, "SESSION_IDLE_SECONDS", &cfg.SessionIdleSeconds); err != nil {
		return err
	}
	return envBool(lookup, "SEED_DOCKETS", &cfg.SeedDockets)
}

func envString(lookup func(string) (string, bool), key string, dst *string) {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(lookup func(string) (string, bool), key string, dst *int) error {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(lookup func(string) (string, bool), key string, dst *bool) error {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("config: %s must be a boolean: %w", key, err)
	}
	*dst = b
	return nil
}

func (c *Config) normalize() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.DocketTable = strings.TrimSpace(c.DocketTable)
	c.SQLitePath = strings.TrimSpace(c.SQLitePath)
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")
	c.OpenAIBaseURL = strings.TrimSpace(c.OpenAIBaseURL)
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case BackendDynamoDB:
		if c.DocketTable == "" {
			errs = append(errs, errors.New("DOCKET_TABLE is required for the dynamodb backend"))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of %s, %s", c.StoreBackend, BackendDynamoDB, BackendSQLite))
	}
	if c.ParamPrefix == "" {
		errs = append(errs, errors.New("PARAM_PREFIX is required"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be positive"))
	}
	if c.VerifyTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("VERIFY_TIMEOUT_SECONDS must be positive"))
	}
	if c.SessionIdleSeconds <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_SECONDS must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
