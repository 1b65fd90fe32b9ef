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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cordada/gcp-utils-go/pkg/gcpkms"
)

// clearEnv makes every variable read by Load absent for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GCPKMS_PROJECT_ID", "GOOGLE_CLOUD_PROJECT",
		"GCPKMS_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
		"GCPKMS_LOCATION", "GCPKMS_GCE_SERVICE_ACCOUNT", "GCPKMS_ENDPOINT",
		"GCPKMS_TRANSPORT", "GCPKMS_MOCK",
		"GCPKMS_RATE_LIMIT_REQUESTS_PER_MINUTE", "GCPKMS_RATE_LIMIT_BURST",
		"GCPKMS_LOGGING_LEVEL", "GCPKMS_LOGGING_FORMAT", "GCPKMS_METRICS_ENABLED",
	} {
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("Failed to unset %s: %v", name, err)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return path
}

// TestLoad_Defaults tests loading without a config file
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.KMS.Location != "global" {
		t.Errorf("KMS.Location = %v, want global", cfg.KMS.Location)
	}
	if cfg.KMS.Transport != gcpkms.TransportGRPC {
		t.Errorf("KMS.Transport = %v, want grpc", cfg.KMS.Transport)
	}
	if cfg.KMS.ProjectID != "" {
		t.Errorf("KMS.ProjectID = %v, want empty", cfg.KMS.ProjectID)
	}
	if cfg.KMS.Mock {
		t.Error("KMS.Mock should be false by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %v, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %v, want text", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true by default")
	}
}

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
kms:
  project_id: "fd-secrets-manager-dev-2"
  location: "europe-west1"
  credentials_file: "/etc/gcp/credentials.json"
  endpoint: "localhost:9010"
  transport: "rest"
  mock: true

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.KMS.ProjectID != "fd-secrets-manager-dev-2" {
		t.Errorf("KMS.ProjectID = %v, want fd-secrets-manager-dev-2", cfg.KMS.ProjectID)
	}
	if cfg.KMS.Location != "europe-west1" {
		t.Errorf("KMS.Location = %v, want europe-west1", cfg.KMS.Location)
	}
	if cfg.KMS.CredentialsFile != "/etc/gcp/credentials.json" {
		t.Errorf("KMS.CredentialsFile = %v, want /etc/gcp/credentials.json", cfg.KMS.CredentialsFile)
	}
	if cfg.KMS.Endpoint != "localhost:9010" {
		t.Errorf("KMS.Endpoint = %v, want localhost:9010", cfg.KMS.Endpoint)
	}
	if cfg.KMS.Transport != gcpkms.TransportREST {
		t.Errorf("KMS.Transport = %v, want rest", cfg.KMS.Transport)
	}
	if !cfg.KMS.Mock {
		t.Error("KMS.Mock should be true")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false")
	}
}

// TestLoad_FileNotFound tests loading a non-existent file
func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() should return error for non-existent file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want 'failed to read config file'", err)
	}
}

// TestLoad_InvalidValues tests that validation runs after loading
func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
kms:
  transport: "http3"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should return error for invalid transport")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() error = %v, want 'invalid configuration'", err)
	}
}

// TestLoad_EnvOverrides tests environment variable overrides
func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
kms:
  project_id: "from-file"
  location: "global"
logging:
  level: "info"
`)

	t.Setenv("GCPKMS_PROJECT_ID", "from-env")
	t.Setenv("GCPKMS_LOCATION", "us-east1")
	t.Setenv("GCPKMS_TRANSPORT", "rest")
	t.Setenv("GCPKMS_MOCK", "true")
	t.Setenv("GCPKMS_RATE_LIMIT_REQUESTS_PER_MINUTE", "300")
	t.Setenv("GCPKMS_LOGGING_LEVEL", "warn")
	t.Setenv("GCPKMS_METRICS_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.KMS.ProjectID != "from-env" {
		t.Errorf("KMS.ProjectID = %v, want from-env", cfg.KMS.ProjectID)
	}
	if cfg.KMS.Location != "us-east1" {
		t.Errorf("KMS.Location = %v, want us-east1", cfg.KMS.Location)
	}
	if cfg.KMS.Transport != "rest" {
		t.Errorf("KMS.Transport = %v, want rest", cfg.KMS.Transport)
	}
	if !cfg.KMS.Mock {
		t.Error("KMS.Mock should be true")
	}
	if cfg.KMS.RateLimit.RequestsPerMinute != 300 {
		t.Errorf("KMS.RateLimit.RequestsPerMinute = %v, want 300", cfg.KMS.RateLimit.RequestsPerMinute)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %v, want warn", cfg.Logging.Level)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false")
	}
}

// TestLoad_GoogleEnv tests the fallback to the standard Google variables
func TestLoad_GoogleEnv(t *testing.T) {
	tests := []struct {
		name            string
		env             map[string]string
		wantProject     string
		wantCredentials string
	}{
		{
			name: "google variables",
			env: map[string]string{
				"GOOGLE_CLOUD_PROJECT":           "google-project",
				"GOOGLE_APPLICATION_CREDENTIALS": "/google/creds.json",
			},
			wantProject:     "google-project",
			wantCredentials: "/google/creds.json",
		},
		{
			name: "prefixed variables take precedence",
			env: map[string]string{
				"GOOGLE_CLOUD_PROJECT":           "google-project",
				"GCPKMS_PROJECT_ID":              "gcpkms-project",
				"GOOGLE_APPLICATION_CREDENTIALS": "/google/creds.json",
				"GCPKMS_CREDENTIALS_FILE":        "/gcpkms/creds.json",
			},
			wantProject:     "gcpkms-project",
			wantCredentials: "/gcpkms/creds.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() returned error: %v", err)
			}
			if cfg.KMS.ProjectID != tt.wantProject {
				t.Errorf("KMS.ProjectID = %v, want %v", cfg.KMS.ProjectID, tt.wantProject)
			}
			if cfg.KMS.CredentialsFile != tt.wantCredentials {
				t.Errorf("KMS.CredentialsFile = %v, want %v", cfg.KMS.CredentialsFile, tt.wantCredentials)
			}
		})
	}
}

// TestLoadEnvFile tests dotenv loading
func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GCPKMS_ENDPOINT", "already-set:1234")

	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "GCPKMS_LOCATION=southamerica-west1\nGCPKMS_ENDPOINT=from-file:9010\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	if err := LoadEnvFile(envFile); err != nil {
		t.Fatalf("LoadEnvFile() returned error: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.KMS.Location != "southamerica-west1" {
		t.Errorf("KMS.Location = %v, want southamerica-west1", cfg.KMS.Location)
	}
	if cfg.KMS.Endpoint != "already-set:1234" {
		t.Errorf("KMS.Endpoint = %v, want already-set:1234 (env file must not override)", cfg.KMS.Endpoint)
	}
}

// TestLoadEnvFile_Missing tests that only an explicit env file is required
func TestLoadEnvFile_Missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("LoadEnvFile() should return error for an explicit missing file")
	}

	t.Chdir(t.TempDir())
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("LoadEnvFile(\"\") returned error without %s: %v", DefaultEnvFile, err)
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "rest transport", modify: func(c *Config) { c.KMS.Transport = "rest" }},
		{name: "uppercase level", modify: func(c *Config) { c.Logging.Level = "DEBUG" }},
		{name: "invalid level", modify: func(c *Config) { c.Logging.Level = "fatal" }, wantErr: "invalid log level"},
		{name: "invalid format", modify: func(c *Config) { c.Logging.Format = "console" }, wantErr: "invalid log format"},
		{name: "invalid transport", modify: func(c *Config) { c.KMS.Transport = "" }, wantErr: "invalid transport"},
		{name: "negative rate limit", modify: func(c *Config) { c.KMS.RateLimit.Burst = -1 }, wantErr: "rate limit must not be negative"},
		{name: "missing location", modify: func(c *Config) { c.KMS.Location = "" }, wantErr: "location must be specified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() returned error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_Logger tests building a logger from the logging section
func TestConfig_Logger(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "warn"

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	if err != nil {
		t.Fatalf("Logger() returned error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("unexpected JSON output: %s", out)
	}
}

// TestConfig_GCPKMSConfig tests the conversion into a client configuration
func TestConfig_GCPKMSConfig(t *testing.T) {
	cfg := Default()
	cfg.KMS.ProjectID = "p"
	cfg.KMS.Location = "europe-west1"
	cfg.KMS.CredentialsFile = "/creds.json"
	cfg.KMS.GCEServiceAccount = "sa@p.iam.gserviceaccount.com"
	cfg.KMS.Endpoint = "localhost:9010"
	cfg.KMS.Transport = gcpkms.TransportREST
	cfg.KMS.RateLimit.RequestsPerMinute = 120
	cfg.Logging.Level = "debug"

	kmsCfg := cfg.GCPKMSConfig(nil)

	if kmsCfg.ProjectID != "p" || kmsCfg.LocationID != "europe-west1" {
		t.Errorf("project/location = %s/%s, want p/europe-west1", kmsCfg.ProjectID, kmsCfg.LocationID)
	}
	if kmsCfg.CredentialsFile != "/creds.json" {
		t.Errorf("CredentialsFile = %v, want /creds.json", kmsCfg.CredentialsFile)
	}
	if kmsCfg.GCEServiceAccount != "sa@p.iam.gserviceaccount.com" {
		t.Errorf("GCEServiceAccount = %v", kmsCfg.GCEServiceAccount)
	}
	if kmsCfg.Endpoint != "localhost:9010" || kmsCfg.Transport != gcpkms.TransportREST {
		t.Errorf("Endpoint/Transport = %s/%s", kmsCfg.Endpoint, kmsCfg.Transport)
	}
	if kmsCfg.RateLimit.RequestsPerMinute != 120 {
		t.Errorf("RateLimit.RequestsPerMinute = %v, want 120", kmsCfg.RateLimit.RequestsPerMinute)
	}
	if !kmsCfg.Debug {
		t.Error("Debug should follow the debug log level")
	}
}
