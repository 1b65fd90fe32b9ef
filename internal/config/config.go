// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of gcp-utils-go.
//
// gcp-utils-go is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/cordada/gcp-utils-go/pkg/gcpkms"
	"github.com/cordada/gcp-utils-go/pkg/logging"
	"github.com/cordada/gcp-utils-go/pkg/ratelimit"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// GCPKMS_PROJECT_ID or GCPKMS_LOGGING_LEVEL.
const EnvPrefix = "GCPKMS"

// DefaultEnvFile is loaded by LoadEnvFile when no path is given.
const DefaultEnvFile = ".env"

// Config represents the complete CLI configuration
type Config struct {
	KMS     KMSConfig     `mapstructure:"kms" yaml:"kms"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// KMSConfig selects the project, location and credentials used for Cloud KMS
type KMSConfig struct {
	ProjectID         string `mapstructure:"project_id" yaml:"project_id"`
	Location          string `mapstructure:"location" yaml:"location"`
	CredentialsFile   string `mapstructure:"credentials_file" yaml:"credentials_file"`
	GCEServiceAccount string `mapstructure:"gce_service_account" yaml:"gce_service_account"`
	Endpoint          string `mapstructure:"endpoint" yaml:"endpoint"`
	Transport         string `mapstructure:"transport" yaml:"transport"` // grpc, rest

	// Mock routes crypto key operations to the local kmsmock implementation
	Mock bool `mapstructure:"mock" yaml:"mock"`

	RateLimit ratelimit.Config `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls metrics collection
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// envBindings lists the environment variables read for each key, in order
// of precedence. Keys not listed here are bound to EnvPrefix + key.
var envBindings = map[string][]string{
	"kms.project_id":       {EnvPrefix + "_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
	"kms.credentials_file": {EnvPrefix + "_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"},
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		KMS: KMSConfig{
			Location:  "global",
			Transport: gcpkms.TransportGRPC,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads the configuration from an optional YAML file and applies
// environment variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile loads environment variables from a dotenv file. Variables that
// are already set are not overridden. With an empty path DefaultEnvFile is
// loaded if it exists.
func LoadEnvFile(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("kms.project_id", d.KMS.ProjectID)
	v.SetDefault("kms.location", d.KMS.Location)
	v.SetDefault("kms.credentials_file", d.KMS.CredentialsFile)
	v.SetDefault("kms.gce_service_account", d.KMS.GCEServiceAccount)
	v.SetDefault("kms.endpoint", d.KMS.Endpoint)
	v.SetDefault("kms.transport", d.KMS.Transport)
	v.SetDefault("kms.mock", d.KMS.Mock)
	v.SetDefault("kms.rate_limit.requests_per_minute", d.KMS.RateLimit.RequestsPerMinute)
	v.SetDefault("kms.rate_limit.burst", d.KMS.RateLimit.Burst)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// bindEnv binds every known key. KMS keys drop their section name, so
// kms.location is read from GCPKMS_LOCATION and logging.level from
// GCPKMS_LOGGING_LEVEL.
func bindEnv(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		envs, ok := envBindings[key]
		if !ok {
			name := strings.TrimPrefix(key, "kms.")
			envs = []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))}
		}
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	switch c.KMS.Transport {
	case gcpkms.TransportGRPC, gcpkms.TransportREST:
	default:
		return fmt.Errorf("invalid transport: %s (must be grpc or rest)", c.KMS.Transport)
	}

	if c.KMS.RateLimit.RequestsPerMinute < 0 || c.KMS.RateLimit.Burst < 0 {
		return fmt.Errorf("kms rate limit must not be negative")
	}

	if c.KMS.Location == "" {
		return fmt.Errorf("kms location must be specified")
	}

	return nil
}

// Logger builds the logger described by the logging section. A nil out
// writes to stderr.
func (c *Config) Logger(out io.Writer) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: out,
	})
}

// GCPKMSConfig converts the KMS section into a client configuration
func (c *Config) GCPKMSConfig(logger *logging.Logger) *gcpkms.Config {
	return &gcpkms.Config{
		ProjectID:         c.KMS.ProjectID,
		LocationID:        c.KMS.Location,
		CredentialsFile:   c.KMS.CredentialsFile,
		GCEServiceAccount: c.KMS.GCEServiceAccount,
		Endpoint:          c.KMS.Endpoint,
		Transport:         c.KMS.Transport,
		RateLimit:         c.KMS.RateLimit,
		Debug:             strings.EqualFold(c.Logging.Level, "debug"),
		Logger:            logger,
	}
}
