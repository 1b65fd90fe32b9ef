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

package chacha20poly1305

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func newKey(t testing.TB) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestNewX(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
		wantErr bool
	}{
		{"valid 32-byte key", 32, false},
		{"too short", 16, true},
		{"too long", 64, true},
		{"empty key", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aead, err := NewX(make([]byte, tt.keySize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKeySize)
				assert.Nil(t, aead)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, aead)
		})
	}
}

func TestNonceSizeAndOverhead(t *testing.T) {
	x, err := NewX(newKey(t))
	require.NoError(t, err)
	assert.Equal(t, 24, x.NonceSize())
	assert.Equal(t, 24+16, x.Overhead())
}

func TestRoundTrip(t *testing.T) {
	aead, err := NewX(newKey(t))
	require.NoError(t, err)

	plaintexts := [][]byte{
		{},
		[]byte("J\xc3\xbcrgen loves \xce\xa9! \xe2\x9c\x94 \n\r\t 123"),
		bytes.Repeat([]byte{0xAB}, 64*1024),
	}

	for _, plaintext := range plaintexts {
		sealed, err := aead.Seal(plaintext, []byte("context"))
		require.NoError(t, err)
		assert.Len(t, sealed, len(plaintext)+aead.Overhead())

		opened, err := aead.Open(sealed, []byte("context"))
		require.NoError(t, err)
		assert.Equal(t, len(plaintext), len(opened))
		assert.True(t, bytes.Equal(plaintext, opened))
	}
}

func TestSeal_RandomNonce(t *testing.T) {
	aead, err := NewX(newKey(t))
	require.NoError(t, err)

	a, err := aead.Seal([]byte("same"), nil)
	require.NoError(t, err)
	b, err := aead.Seal([]byte("same"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a[:aead.NonceSize()], b[:aead.NonceSize()])
}

func TestOpen_Failures(t *testing.T) {
	aead, err := NewX(newKey(t))
	require.NoError(t, err)

	sealed, err := aead.Seal([]byte("secret"), []byte("aad"))
	require.NoError(t, err)

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := bytes.Clone(sealed)
		tampered[aead.NonceSize()] ^= 0x01
		_, err := aead.Open(tampered, []byte("aad"))
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("wrong additional data", func(t *testing.T) {
		_, err := aead.Open(sealed, []byte("other"))
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewX(newKey(t))
		require.NoError(t, err)
		_, err = other.Open(sealed, []byte("aad"))
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := aead.Open(sealed[:aead.Overhead()-1], []byte("aad"))
		assert.ErrorIs(t, err, ErrMessageTooShort)
	})
}

func TestCompatibilityWithUnderlyingLibrary(t *testing.T) {
	key := newKey(t)

	aead, err := NewX(key)
	require.NoError(t, err)
	x, err := chacha20poly1305.NewX(key)
	require.NoError(t, err)

	t.Run("open sealed message with x/crypto", func(t *testing.T) {
		sealed, err := aead.Seal([]byte("Test compatibility"), []byte("context"))
		require.NoError(t, err)

		decrypted, err := x.Open(nil, sealed[:x.NonceSize()], sealed[x.NonceSize():], []byte("context"))
		require.NoError(t, err)
		assert.Equal(t, []byte("Test compatibility"), decrypted)
	})

	t.Run("open x/crypto output with fixed nonce", func(t *testing.T) {
		nonce := bytes.Repeat([]byte{0x07}, x.NonceSize())
		sealed := x.Seal(bytes.Clone(nonce), nonce, []byte("fixed nonce"), nil)

		decrypted, err := aead.Open(sealed, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("fixed nonce"), decrypted)
	})
}

func BenchmarkSealX(b *testing.B) {
	aead, err := NewX(newKey(b))
	require.NoError(b, err)

	plaintext := bytes.Repeat([]byte("A"), 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := aead.Seal(plaintext, nil); err != nil {
			b.Fatal(err)
		}
	}
}
