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

// Package auth discovers Google Cloud credentials and project IDs.
//
// Every failure is returned as a *gcperrors.AuthError wrapping the cause, so
// callers handle credential problems the same way whether they surface here
// or during a KMS call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/compute/metadata"
	kms "cloud.google.com/go/kms/apiv1"
	"github.com/cordada/gcp-utils-go/pkg/gcperrors"
	"golang.org/x/oauth2/google"
)

// DefaultServiceAccount names the default service account of a Compute
// Engine instance.
const DefaultServiceAccount = "default"

// ErrUnexpectedAuthResponse is returned when the auth library reports success
// without the expected value.
var ErrUnexpectedAuthResponse = errors.New("auth: unexpected Google auth library response")

// Scopes returns the OAuth2 scopes requested for KMS credentials.
func Scopes() []string {
	return kms.DefaultAuthScopes()
}

// EnvDefaultCredentials returns the Application Default Credentials of the
// current environment.
//
// If GOOGLE_APPLICATION_CREDENTIALS is set, the returned credentials are the
// ones in that file, which might belong to another project.
func EnvDefaultCredentials(ctx context.Context) (*google.Credentials, error) {
	creds, err := google.FindDefaultCredentials(ctx, Scopes()...)
	if err != nil {
		return nil, gcperrors.NewAuthError(err)
	}
	return creds, nil
}

// EnvProjectID returns the project ID of the Application Default Credentials.
func EnvProjectID(ctx context.Context) (string, error) {
	creds, err := EnvDefaultCredentials(ctx)
	if err != nil {
		return "", err
	}
	if creds.ProjectID == "" {
		return "", gcperrors.NewAuthError(
			fmt.Errorf("%w: default credentials carry no project ID", ErrUnexpectedAuthResponse))
	}
	return creds.ProjectID, nil
}

// GCECredentials returns credentials backed by a Compute Engine service
// account. An empty email selects DefaultServiceAccount.
//
// Nothing is verified here: the account is only contacted when a token is
// first requested.
func GCECredentials(serviceAccountEmail string) *google.Credentials {
	if serviceAccountEmail == "" {
		serviceAccountEmail = DefaultServiceAccount
	}
	return &google.Credentials{
		TokenSource: google.ComputeTokenSource(serviceAccountEmail, Scopes()...),
	}
}

// GCEProjectID returns the project ID reported by the metadata server.
func GCEProjectID(ctx context.Context) (string, error) {
	projectID, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		return "", gcperrors.NewAuthError(err)
	}
	if projectID == "" {
		return "", gcperrors.NewAuthError(
			fmt.Errorf("%w: metadata server returned an empty project ID", ErrUnexpectedAuthResponse))
	}
	return projectID, nil
}

// LoadCredentialsFromFile reads a credentials JSON file, such as a service
// account key.
func LoadCredentialsFromFile(ctx context.Context, filename string) (*google.Credentials, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, gcperrors.NewAuthError(fmt.Errorf("read credentials file: %w", err))
	}
	return CredentialsFromJSON(ctx, data)
}

// CredentialsFromJSON parses credentials JSON content.
func CredentialsFromJSON(ctx context.Context, data []byte) (*google.Credentials, error) {
	creds, err := google.CredentialsFromJSON(ctx, data, Scopes()...)
	if err != nil {
		return nil, gcperrors.NewAuthError(err)
	}
	return creds, nil
}
