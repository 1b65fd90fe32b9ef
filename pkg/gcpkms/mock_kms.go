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
	"context"
	"strings"
	"sync"

	"cloud.google.com/go/iam/apiv1/iampb"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MockKMSClient is a mock implementation of the KMSClient interface for testing.
//
// Without function overrides it keeps key rings, crypto keys and IAM policies
// in memory and fails the way the service does, with gRPC status errors
// worded like the service's own messages.
type MockKMSClient struct {
	CreateKeyRingFunc   func(ctx context.Context, req *kmspb.CreateKeyRingRequest, opts ...interface{}) (*kmspb.KeyRing, error)
	CreateCryptoKeyFunc func(ctx context.Context, req *kmspb.CreateCryptoKeyRequest, opts ...interface{}) (*kmspb.CryptoKey, error)
	EncryptFunc         func(ctx context.Context, req *kmspb.EncryptRequest, opts ...interface{}) (*kmspb.EncryptResponse, error)
	DecryptFunc         func(ctx context.Context, req *kmspb.DecryptRequest, opts ...interface{}) (*kmspb.DecryptResponse, error)
	GetIamPolicyFunc    func(ctx context.Context, req *iampb.GetIamPolicyRequest, opts ...interface{}) (*iampb.Policy, error)
	SetIamPolicyFunc    func(ctx context.Context, req *iampb.SetIamPolicyRequest, opts ...interface{}) (*iampb.Policy, error)
	CloseFunc           func() error

	// Internal state for tracking created resources
	mu         sync.Mutex
	keyRings   map[string]*kmspb.KeyRing
	cryptoKeys map[string]*kmspb.CryptoKey
	policies   map[string]*iampb.Policy
}

func (m *MockKMSClient) init() {
	if m.keyRings == nil {
		m.keyRings = make(map[string]*kmspb.KeyRing)
		m.cryptoKeys = make(map[string]*kmspb.CryptoKey)
		m.policies = make(map[string]*iampb.Policy)
	}
}

// CreateKeyRing mocks creating a key ring in Cloud KMS.
func (m *MockKMSClient) CreateKeyRing(ctx context.Context, req *kmspb.CreateKeyRingRequest, opts ...interface{}) (*kmspb.KeyRing, error) {
	if m.CreateKeyRingFunc != nil {
		return m.CreateKeyRingFunc(ctx, req, opts...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()

	name := req.GetParent() + "/keyRings/" + req.GetKeyRingId()
	if _, exists := m.keyRings[name]; exists {
		return nil, status.Errorf(codes.AlreadyExists, "KeyRing %s already exists.", name)
	}

	keyRing := &kmspb.KeyRing{Name: name}
	m.keyRings[name] = keyRing
	return proto.Clone(keyRing).(*kmspb.KeyRing), nil
}

// CreateCryptoKey mocks creating a crypto key in Cloud KMS.
func (m *MockKMSClient) CreateCryptoKey(ctx context.Context, req *kmspb.CreateCryptoKeyRequest, opts ...interface{}) (*kmspb.CryptoKey, error) {
	if m.CreateCryptoKeyFunc != nil {
		return m.CreateCryptoKeyFunc(ctx, req, opts...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()

	if _, exists := m.keyRings[req.GetParent()]; !exists {
		return nil, status.Errorf(codes.NotFound, "KeyRing %s not found.", req.GetParent())
	}

	name := req.GetParent() + "/cryptoKeys/" + req.GetCryptoKeyId()
	if _, exists := m.cryptoKeys[name]; exists {
		return nil, status.Errorf(codes.AlreadyExists, "CryptoKey %s already exists.", name)
	}

	key := &kmspb.CryptoKey{
		Name:    name,
		Purpose: req.GetCryptoKey().GetPurpose(),
		Primary: &kmspb.CryptoKeyVersion{
			Name:      name + "/cryptoKeyVersions/1",
			State:     kmspb.CryptoKeyVersion_ENABLED,
			Algorithm: kmspb.CryptoKeyVersion_GOOGLE_SYMMETRIC_ENCRYPTION,
		},
	}
	m.cryptoKeys[name] = key
	return proto.Clone(key).(*kmspb.CryptoKey), nil
}

// Encrypt mocks symmetric encryption with Cloud KMS.
func (m *MockKMSClient) Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...interface{}) (*kmspb.EncryptResponse, error) {
	if m.EncryptFunc != nil {
		return m.EncryptFunc(ctx, req, opts...)
	}
	if err := m.lookupCryptoKey(req.GetName()); err != nil {
		return nil, err
	}

	verified := req.GetPlaintextCrc32C() != nil
	if verified && req.GetPlaintextCrc32C().GetValue() != int64(crc32c(req.GetPlaintext())) {
		return nil, status.Error(codes.InvalidArgument, "The checksum in field plaintext_crc32c did not match the data in field plaintext.")
	}

	// Return mock ciphertext (plaintext reversed for testing)
	ciphertext := reverse(req.GetPlaintext())
	return &kmspb.EncryptResponse{
		Name:                    m.primaryVersion(req.GetName()),
		Ciphertext:              ciphertext,
		CiphertextCrc32C:        wrapperspb.Int64(int64(crc32c(ciphertext))),
		VerifiedPlaintextCrc32C: verified,
	}, nil
}

// Decrypt mocks symmetric decryption with Cloud KMS.
func (m *MockKMSClient) Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...interface{}) (*kmspb.DecryptResponse, error) {
	if m.DecryptFunc != nil {
		return m.DecryptFunc(ctx, req, opts...)
	}
	if err := m.lookupCryptoKey(req.GetName()); err != nil {
		return nil, err
	}

	if c := req.GetCiphertextCrc32C(); c != nil && c.GetValue() != int64(crc32c(req.GetCiphertext())) {
		return nil, status.Error(codes.InvalidArgument, "The checksum in field ciphertext_crc32c did not match the data in field ciphertext.")
	}

	// Return mock plaintext (ciphertext reversed for testing)
	plaintext := reverse(req.GetCiphertext())
	return &kmspb.DecryptResponse{
		Plaintext:       plaintext,
		PlaintextCrc32C: wrapperspb.Int64(int64(crc32c(plaintext))),
		UsedPrimary:     true,
	}, nil
}

// GetIamPolicy mocks reading the IAM policy of a key ring or crypto key.
func (m *MockKMSClient) GetIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest, opts ...interface{}) (*iampb.Policy, error) {
	if m.GetIamPolicyFunc != nil {
		return m.GetIamPolicyFunc(ctx, req, opts...)
	}
	if err := m.lookupResource(req.GetResource()); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if policy, ok := m.policies[req.GetResource()]; ok {
		return proto.Clone(policy).(*iampb.Policy), nil
	}
	return &iampb.Policy{Version: 1}, nil
}

// SetIamPolicy mocks replacing the IAM policy of a key ring or crypto key.
func (m *MockKMSClient) SetIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest, opts ...interface{}) (*iampb.Policy, error) {
	if m.SetIamPolicyFunc != nil {
		return m.SetIamPolicyFunc(ctx, req, opts...)
	}
	if err := m.lookupResource(req.GetResource()); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	policy := proto.Clone(req.GetPolicy()).(*iampb.Policy)
	m.policies[req.GetResource()] = policy
	return proto.Clone(policy).(*iampb.Policy), nil
}

// Close mocks closing the KMS client.
func (m *MockKMSClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockKMSClient) lookupCryptoKey(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()

	if _, ok := m.cryptoKeys[name]; !ok {
		return status.Errorf(codes.NotFound, "CryptoKey %s not found.", name)
	}
	return nil
}

func (m *MockKMSClient) lookupResource(name string) error {
	if strings.Contains(name, "/cryptoKeys/") {
		return m.lookupCryptoKey(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()

	if _, ok := m.keyRings[name]; !ok {
		return status.Errorf(codes.NotFound, "KeyRing %s not found.", name)
	}
	return nil
}

func (m *MockKMSClient) primaryVersion(cryptoKeyName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cryptoKeys[cryptoKeyName].GetPrimary().GetName()
}

func reverse(data []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[len(out)-1-i] = data[i]
	}
	return out
}

var _ KMSClient = (*MockKMSClient)(nil)
