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

// Package chacha20poly1305 seals and opens self-contained XChaCha20-Poly1305
// messages. A sealed message is laid out as nonce || ciphertext || tag, so it
// can be stored or transported as a single opaque blob.
package chacha20poly1305

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size of the key accepted by NewX.
const KeySize = chacha20poly1305.KeySize

var (
	// ErrInvalidKeySize is returned when the key is not KeySize bytes long.
	ErrInvalidKeySize = errors.New("chacha20poly1305: invalid key size")

	// ErrMessageTooShort is returned when a sealed message cannot hold a nonce and a tag.
	ErrMessageTooShort = errors.New("chacha20poly1305: sealed message too short")

	// ErrAuthentication is returned when a sealed message fails authentication,
	// either because it was tampered with or because the key is wrong.
	ErrAuthentication = errors.New("chacha20poly1305: message authentication failed")
)

// AEAD seals and opens messages with a fixed key.
type AEAD interface {
	// Seal encrypts and authenticates plaintext under a fresh random nonce
	// and returns nonce || ciphertext || tag.
	Seal(plaintext, additionalData []byte) ([]byte, error)

	// Open verifies and decrypts a message produced by Seal.
	Open(sealed, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size (24 bytes).
	NonceSize() int

	// Overhead returns the number of bytes Seal adds to a plaintext.
	Overhead() int
}

type sealer struct {
	aead cipher.AEAD
}

// NewX creates an XChaCha20-Poly1305 AEAD. Its 24-byte nonce makes random
// nonce generation safe for any realistic number of messages per key.
//
// Example:
//
//	aead, err := chacha20poly1305.NewX(key)
//	if err != nil {
//	    return err
//	}
//	sealed, err := aead.Seal(plaintext, nil)
func NewX(key []byte) (AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes (must be %d bytes)", ErrInvalidKeySize, len(key), KeySize)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XChaCha20-Poly1305 cipher: %w", err)
	}
	return &sealer{aead: aead}, nil
}

func (s *sealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()

	out := make([]byte, nonceSize, nonceSize+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext || tag after the nonce.
	return s.aead.Seal(out, out[:nonceSize], plaintext, additionalData), nil
}

func (s *sealer) Open(sealed, additionalData []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooShort, len(sealed))
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return plaintext, nil
}

func (s *sealer) NonceSize() int {
	return s.aead.NonceSize()
}

func (s *sealer) Overhead() int {
	return s.aead.NonceSize() + s.aead.Overhead()
}
