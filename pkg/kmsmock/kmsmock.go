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

// Package kmsmock is a local stand-in for the crypto key operations of
// package gcpkms. It makes no network requests.
//
// Encryption is real but the key is derived from the crypto key GRN alone,
// so anybody who knows the GRN can decrypt. Use it in tests and local
// development only.
package kmsmock

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/cordada/gcp-utils-go/pkg/crypto/chacha20poly1305"
	"github.com/cordada/gcp-utils-go/pkg/gcpkms"
	"github.com/cordada/gcp-utils-go/pkg/grn"
)

var (
	// ErrInvalidKeyInput is returned when the key input is not
	// chacha20poly1305.KeySize bytes long.
	ErrInvalidKeyInput = errors.New("kmsmock: invalid key input")

	// ErrDecryptionFailed is returned when encrypted data was not produced by
	// Encrypt with the same crypto key, or has been modified.
	ErrDecryptionFailed = errors.New("kmsmock: decryption failed")
)

// KMS implements gcpkms.KeyManager locally. The zero value is ready to use
// and safe for concurrent use.
type KMS struct{}

// New returns a KMS.
func New() *KMS {
	return &KMS{}
}

// CreateCryptoKey returns the GRN the crypto key would have. Nothing is
// created. An empty cryptoKeyID is replaced by gcpkms.NewCryptoKeyID().
func (k *KMS) CreateCryptoKey(_ context.Context, keyRingGRN, cryptoKeyID string) (string, error) {
	if cryptoKeyID == "" {
		cryptoKeyID = gcpkms.NewCryptoKeyID()
	}
	return grn.CryptoKeyIn(keyRingGRN, cryptoKeyID), nil
}

// Encrypt encrypts plainData with XChaCha20-Poly1305 under the key derived
// from cryptoKeyGRN. The result is nonce || ciphertext || tag; the nonce is
// random, so encrypting the same data twice gives different results.
func (k *KMS) Encrypt(_ context.Context, cryptoKeyGRN string, plainData []byte) ([]byte, error) {
	if len(plainData) > gcpkms.MaxPlainDataSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", gcpkms.ErrPlainDataTooLarge, len(plainData), gcpkms.MaxPlainDataSize)
	}

	aead, err := newAEAD(cryptoKeyGRN)
	if err != nil {
		return nil, err
	}
	return aead.Seal(plainData, nil)
}

// Decrypt reverses Encrypt.
func (k *KMS) Decrypt(_ context.Context, cryptoKeyGRN string, encryptedData []byte) ([]byte, error) {
	aead, err := newAEAD(cryptoKeyGRN)
	if err != nil {
		return nil, err
	}

	plainData, err := aead.Open(encryptedData, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plainData, nil
}

// GenerateKey encodes input as a padded base64url key, the format
// stored by applications that persist mock keys. input must be exactly
// chacha20poly1305.KeySize bytes. The cipher key is input itself.
func GenerateKey(input []byte) (string, error) {
	if err := checkKeyInput(input); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(input), nil
}

func checkKeyInput(input []byte) error {
	if len(input) != chacha20poly1305.KeySize {
		return fmt.Errorf("%w: %d bytes (must be %d bytes)", ErrInvalidKeyInput, len(input), chacha20poly1305.KeySize)
	}
	return nil
}

// keyInput is the last KeySize characters of the GRN. Shorter GRNs are used
// whole and rejected by checkKeyInput.
func keyInput(cryptoKeyGRN string) []byte {
	if len(cryptoKeyGRN) > chacha20poly1305.KeySize {
		cryptoKeyGRN = cryptoKeyGRN[len(cryptoKeyGRN)-chacha20poly1305.KeySize:]
	}
	return []byte(cryptoKeyGRN)
}

func newAEAD(cryptoKeyGRN string) (chacha20poly1305.AEAD, error) {
	key := keyInput(cryptoKeyGRN)
	if err := checkKeyInput(key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

var _ gcpkms.KeyManager = (*KMS)(nil)
