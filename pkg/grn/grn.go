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

// Package grn composes Google Resource Names for Cloud KMS resources.
//
// The KMS object hierarchy is:
//
//	projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{key}/cryptoKeyVersions/{version}
//
// The functions here only concatenate. Identifiers are not validated; a
// malformed identifier is reported by the service when the name is used.
package grn

import "strings"

// Identifier limits. Locations have no published limit, so the values for
// them are estimates well above the longest known ID.
const (
	ProjectIDMaxLength               = 30
	RegionIDMaxLengthEstimation      = 48
	KMSLocationIDMaxLengthEstimation = 48
	KMSKeyRingIDMaxLength            = 64
	KMSCryptoKeyIDMaxLength          = 64
)

// Documented ID syntax. Nothing in this module enforces these.
const (
	KMSKeyRingIDPattern   = `^[a-zA-Z0-9_-]{1,63}$`
	KMSCryptoKeyIDPattern = `^[a-zA-Z0-9_-]{1,63}$`
)

const (
	projectsCollection          = "projects"
	locationsCollection         = "locations"
	keyRingsCollection          = "keyRings"
	cryptoKeysCollection        = "cryptoKeys"
	cryptoKeyVersionsCollection = "cryptoKeyVersions"
)

// Project returns "projects/{projectID}".
func Project(projectID string) string {
	return join(projectsCollection, projectID)
}

// Location returns "projects/{projectID}/locations/{locationID}".
func Location(projectID, locationID string) string {
	return join(Project(projectID), locationsCollection, locationID)
}

// KeyRing returns the GRN of a key ring.
func KeyRing(projectID, locationID, keyRingID string) string {
	return join(Location(projectID, locationID), keyRingsCollection, keyRingID)
}

// CryptoKey returns the GRN of a crypto key.
func CryptoKey(projectID, locationID, keyRingID, cryptoKeyID string) string {
	return CryptoKeyIn(KeyRing(projectID, locationID, keyRingID), cryptoKeyID)
}

// CryptoKeyVersion returns the GRN of a crypto key version.
func CryptoKeyVersion(projectID, locationID, keyRingID, cryptoKeyID, versionID string) string {
	return join(CryptoKey(projectID, locationID, keyRingID, cryptoKeyID), cryptoKeyVersionsCollection, versionID)
}

// CryptoKeyIn returns the GRN of the crypto key cryptoKeyID inside an
// existing key ring GRN.
func CryptoKeyIn(keyRingGRN, cryptoKeyID string) string {
	return join(keyRingGRN, cryptoKeysCollection, cryptoKeyID)
}

func join(parts ...string) string {
	return strings.Join(parts, "/")
}
