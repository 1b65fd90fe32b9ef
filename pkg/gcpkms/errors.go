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

import "errors"

var (
	// ErrNotInitialized is returned when the KMS client is not initialized or already closed.
	ErrNotInitialized = errors.New("gcpkms: client not initialized")

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("gcpkms: invalid configuration")

	// ErrInvalidTransport is returned when the configured transport is neither grpc nor rest.
	ErrInvalidTransport = errors.New("gcpkms: invalid transport")

	// ErrInvalidCredentials is returned when credentials are invalid or cannot be loaded.
	ErrInvalidCredentials = errors.New("gcpkms: invalid credentials")

	// ErrPlainDataTooLarge is returned when the data to encrypt exceeds MaxPlainDataSize.
	ErrPlainDataTooLarge = errors.New("gcpkms: size of plain data exceeds max size")

	// ErrChecksumMismatch is returned when a CRC32C integrity check fails.
	ErrChecksumMismatch = errors.New("gcpkms: checksum mismatch")
)
