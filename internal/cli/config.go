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

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/cordada/gcp-utils-go/pkg/gcpkms"
	"github.com/cordada/gcp-utils-go/pkg/grn"
	"github.com/cordada/gcp-utils-go/pkg/kmsmock"
)

var (
	// ErrMockUnsupported is returned by commands that have no local implementation
	ErrMockUnsupported = errors.New("operation is not supported with --mock")

	// ErrProjectRequired is returned when a command needs a project and none is configured
	ErrProjectRequired = errors.New("project ID is required (--project, GCPKMS_PROJECT_ID or GOOGLE_CLOUD_PROJECT)")
)

// kmsConfig returns the client configuration for the current invocation
func (a *App) kmsConfig() *gcpkms.Config {
	return a.config.GCPKMSConfig(a.logger)
}

// keyManager returns the crypto key implementation selected by --mock.
// The returned function releases it.
func (a *App) keyManager(ctx context.Context) (gcpkms.KeyManager, func(), error) {
	if a.config.KMS.Mock {
		a.printVerbose("Using local mock KMS")
		return kmsmock.New(), func() {}, nil
	}

	client, err := a.kmsService(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { a.logger.MaybeError(client.Close()) }, nil
}

// kmsService creates a Cloud KMS client
func (a *App) kmsService(ctx context.Context) (KMSService, error) {
	if a.config.KMS.Mock {
		return nil, usageError(ErrMockUnsupported)
	}

	cfg := a.kmsConfig()
	a.printVerbose("Connecting to Cloud KMS: %s", cfg)

	client, err := a.newKMSClient(ctx, cfg)
	if err != nil {
		if errors.Is(err, gcpkms.ErrInvalidConfig) || errors.Is(err, gcpkms.ErrInvalidTransport) ||
			errors.Is(err, gcpkms.ErrInvalidCredentials) {
			return nil, usageError(err)
		}
		return nil, fmt.Errorf("failed to create KMS client: %w", err)
	}
	return client, nil
}

// locationGRN is the GRN of the configured project and location
func (a *App) locationGRN() (string, error) {
	if a.config.KMS.ProjectID == "" {
		return "", usageError(ErrProjectRequired)
	}
	return grn.Location(a.config.KMS.ProjectID, a.config.KMS.Location), nil
}
