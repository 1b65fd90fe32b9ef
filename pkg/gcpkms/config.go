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

package gcpkms

import (
	"fmt"
	"os"
	"strings"

	"github.com/cordada/gcp-utils-go/pkg/logging"
	"github.com/cordada/gcp-utils-go/pkg/ratelimit"
	"golang.org/x/oauth2/google"
)

// Supported transports of the KMS client library.
const (
	TransportGRPC = "grpc"
	TransportREST = "rest"
)

// DefaultEndpoint is the base URI used to describe failed requests when no
// custom endpoint is configured.
const DefaultEndpoint = "https://cloudkms.googleapis.com/"

// Config contains configuration for Cloud KMS operations.
//
// Credentials are taken from the first source that is set, in this order:
// Credentials, CredentialsJSON, CredentialsFile, GCEServiceAccount. With none
// set the client library falls back to Application Default Credentials.
type Config struct {
	// ProjectID is the GCP project that owns the KMS resources.
	// Optional. Only used to compose resource names.
	ProjectID string `yaml:"project_id" json:"project_id" mapstructure:"project_id"`

	// LocationID is the KMS location.
	// Examples: "global", "us-east1", "northamerica-northeast1"
	// Optional. Only used to compose resource names.
	LocationID string `yaml:"location_id" json:"location_id" mapstructure:"location_id"`

	// CredentialsFile is the path to a service account JSON key file.
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty" mapstructure:"credentials_file"`

	// CredentialsJSON contains the service account JSON key content.
	// Takes precedence over CredentialsFile if both are provided.
	CredentialsJSON []byte `yaml:"credentials_json,omitempty" json:"credentials_json,omitempty" mapstructure:"credentials_json"`

	// GCEServiceAccount selects a Compute Engine service account to obtain
	// tokens from the metadata server. "default" selects the instance's
	// default account.
	GCEServiceAccount string `yaml:"gce_service_account,omitempty" json:"gce_service_account,omitempty" mapstructure:"gce_service_account"`

	// Endpoint is a custom KMS API endpoint.
	// Example: "localhost:8080" for a local emulator
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" mapstructure:"endpoint"`

	// Transport is "grpc" (default) or "rest".
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty" mapstructure:"transport"`

	// RateLimit throttles requests per Cloud KMS quota group. The zero value
	// disables throttling.
	RateLimit ratelimit.Config `yaml:"rate_limit" json:"rate_limit" mapstructure:"rate_limit"`

	// Debug enables debug logging for KMS operations.
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`

	// Credentials are ready-made credentials, for callers that already
	// resolved them (see package auth).
	Credentials *google.Credentials `yaml:"-" json:"-" mapstructure:"-"`

	// Logger receives operation logs. If nil, a logger honoring Debug is created.
	Logger *logging.Logger `yaml:"-" json:"-" mapstructure:"-"`
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}

	switch c.Transport {
	case "", TransportGRPC, TransportREST:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)", ErrInvalidTransport, c.Transport, TransportGRPC, TransportREST)
	}

	// If credentials file is the selected source, verify it exists
	if c.Credentials == nil && len(c.CredentialsJSON) == 0 && c.CredentialsFile != "" {
		if _, err := os.Stat(c.CredentialsFile); os.IsNotExist(err) {
			return fmt.Errorf("%w: credentials file not found: %s", ErrInvalidCredentials, c.CredentialsFile)
		}
	}

	return nil
}

// BaseURI returns the URI that request URIs of failed calls are built on.
func (c *Config) BaseURI() string {
	if c == nil || c.Endpoint == "" {
		return DefaultEndpoint
	}
	endpoint := c.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint
}

// String returns a string representation of the config with sensitive data masked.
func (c *Config) String() string {
	credsMask := "<not set>"
	switch {
	case c.Credentials != nil:
		credsMask = "<programmatic>"
	case len(c.CredentialsJSON) > 0:
		credsMask = fmt.Sprintf("<json: %d bytes>", len(c.CredentialsJSON))
	case c.CredentialsFile != "":
		credsMask = maskPath(c.CredentialsFile)
	case c.GCEServiceAccount != "":
		credsMask = "<gce: " + c.GCEServiceAccount + ">"
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = "<default>"
	}

	transport := c.Transport
	if transport == "" {
		transport = TransportGRPC
	}

	return fmt.Sprintf("GCP KMS Config{Project: %s, Location: %s, Credentials: %s, Endpoint: %s, Transport: %s, Debug: %t}",
		c.ProjectID, c.LocationID, credsMask, endpoint, transport, c.Debug)
}

// maskPath masks the middle portion of a file path.
// Example: /home/user/credentials.json becomes /.../credentials.json
func maskPath(path string) string {
	if path == "" {
		return ""
	}

	parts := strings.Split(path, string(os.PathSeparator))
	if len(parts) <= 2 {
		return path
	}

	// Keep first and last parts, mask the middle
	masked := make([]string, 0, 3)
	masked = append(masked, parts[0])
	if len(parts) > 3 {
		masked = append(masked, "...")
	}
	masked = append(masked, parts[len(parts)-1])

	return strings.Join(masked, string(os.PathSeparator))
}
