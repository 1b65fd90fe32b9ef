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

// Package gcpkms performs Cloud KMS operations: key ring and crypto key
// creation, encryption, decryption and IAM policy changes.
//
// Failed calls never surface the client library's error directly: they are
// translated into the error kinds of package gcperrors, with the library
// error kept as the cause.
//
// In cryptography the encrypted and non-encrypted values are called
// ciphertext and plaintext. This package says encrypted data and plain data
// instead: the values are arbitrary bytes, not text.
package gcpkms

import (
	"context"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/iam/apiv1/iampb"
	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/cordada/gcp-utils-go/pkg/auth"
	"github.com/cordada/gcp-utils-go/pkg/correlation"
	"github.com/cordada/gcp-utils-go/pkg/gcperrors"
	"github.com/cordada/gcp-utils-go/pkg/logging"
	"github.com/cordada/gcp-utils-go/pkg/metrics"
	"github.com/cordada/gcp-utils-go/pkg/ratelimit"
	"github.com/google/uuid"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MaxPlainDataSize is the largest plain data Encrypt accepts. The service
// limit depends on the protection level; 64 KiB is the limit for SOFTWARE
// keys.
const MaxPlainDataSize = 64 * 1024

// KMSClient defines the subset of the Cloud KMS API used by Client.
// This interface allows for mocking in tests.
type KMSClient interface {
	CreateKeyRing(ctx context.Context, req *kmspb.CreateKeyRingRequest, opts ...interface{}) (*kmspb.KeyRing, error)
	CreateCryptoKey(ctx context.Context, req *kmspb.CreateCryptoKeyRequest, opts ...interface{}) (*kmspb.CryptoKey, error)
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...interface{}) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...interface{}) (*kmspb.DecryptResponse, error)
	GetIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest, opts ...interface{}) (*iampb.Policy, error)
	SetIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest, opts ...interface{}) (*iampb.Policy, error)
	Close() error
}

// realKMSClient wraps the actual Cloud KMS client to implement our interface.
type realKMSClient struct {
	*kms.KeyManagementClient
}

func (r *realKMSClient) CreateKeyRing(ctx context.Context, req *kmspb.CreateKeyRingRequest, opts ...interface{}) (*kmspb.KeyRing, error) {
	return r.KeyManagementClient.CreateKeyRing(ctx, req)
}

func (r *realKMSClient) CreateCryptoKey(ctx context.Context, req *kmspb.CreateCryptoKeyRequest, opts ...interface{}) (*kmspb.CryptoKey, error) {
	return r.KeyManagementClient.CreateCryptoKey(ctx, req)
}

func (r *realKMSClient) Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...interface{}) (*kmspb.EncryptResponse, error) {
	return r.KeyManagementClient.Encrypt(ctx, req)
}

func (r *realKMSClient) Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...interface{}) (*kmspb.DecryptResponse, error) {
	return r.KeyManagementClient.Decrypt(ctx, req)
}

func (r *realKMSClient) GetIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest, opts ...interface{}) (*iampb.Policy, error) {
	return r.KeyManagementClient.GetIamPolicy(ctx, req)
}

func (r *realKMSClient) SetIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest, opts ...interface{}) (*iampb.Policy, error) {
	return r.KeyManagementClient.SetIamPolicy(ctx, req)
}

// KeyManager is implemented by Client and by the local mock in package
// kmsmock, so that code depending on it can run without the network.
type KeyManager interface {
	CreateCryptoKey(ctx context.Context, keyRingGRN, cryptoKeyID string) (string, error)
	Encrypt(ctx context.Context, cryptoKeyGRN string, plainData []byte) ([]byte, error)
	Decrypt(ctx context.Context, cryptoKeyGRN string, encryptedData []byte) ([]byte, error)
}

// Binding is a role granted to a list of members in an IAM policy.
type Binding struct {
	Role    string   `json:"role" yaml:"role"`
	Members []string `json:"members" yaml:"members"`
}

// Client performs Cloud KMS operations.
type Client struct {
	config     *Config
	client     KMSClient
	classifier *gcperrors.Classifier
	logger     *logging.Logger
	limiter    *ratelimit.Limiter
	mu         sync.RWMutex
}

// NewClient creates a Client connected to Cloud KMS.
//
// Credentials are not checked here; a credential problem is reported as a
// *gcperrors.AuthError by the first operation.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts, err := clientOptions(ctx, config)
	if err != nil {
		return nil, err
	}

	var kmsClient *kms.KeyManagementClient
	if config.Transport == TransportREST {
		kmsClient, err = kms.NewKeyManagementRESTClient(ctx, opts...)
	} else {
		opts = append(opts, option.WithGRPCDialOption(grpc.WithChainUnaryInterceptor(
			correlation.UnaryClientInterceptor(),
			metrics.GRPCUnaryClientInterceptor(),
		)))
		kmsClient, err = kms.NewKeyManagementClient(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS client: %w", err)
	}

	return newClient(config, &realKMSClient{KeyManagementClient: kmsClient}), nil
}

// NewClientWithKMSClient creates a Client on top of a custom KMS client.
// This is primarily used for testing with mock clients.
func NewClientWithKMSClient(config *Config, client KMSClient) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newClient(config, client), nil
}

func newClient(config *Config, client KMSClient) *Client {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewLogger(config.Debug)
	}
	return &Client{
		config:     config,
		client:     client,
		classifier: gcperrors.Default(),
		logger:     logger.With("component", "gcpkms"),
		limiter:    ratelimit.New(&config.RateLimit),
	}
}

// clientOptions resolves the credentials source and endpoint of config.
func clientOptions(ctx context.Context, config *Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	switch {
	case config.Credentials != nil:
		opts = append(opts, option.WithCredentials(config.Credentials))
	case len(config.CredentialsJSON) > 0:
		creds, err := auth.CredentialsFromJSON(ctx, config.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		opts = append(opts, option.WithCredentials(creds))
	case config.CredentialsFile != "":
		creds, err := auth.LoadCredentialsFromFile(ctx, config.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		opts = append(opts, option.WithCredentials(creds))
	case config.GCEServiceAccount != "":
		opts = append(opts, option.WithCredentials(auth.GCECredentials(config.GCEServiceAccount)))
	}

	// Add custom endpoint if provided (for testing with emulator)
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	return opts, nil
}

// Config returns the client configuration.
func (c *Client) Config() *Config {
	return c.config
}

// CreateKeyRing creates a key ring in the location locationGRN and returns
// the GRN of the new key ring.
func (c *Client) CreateKeyRing(ctx context.Context, locationGRN, keyRingID string) (string, error) {
	var keyRing *kmspb.KeyRing
	err := c.execute(ctx, metrics.OpCreateKeyRing,
		c.requestURI(locationGRN+"/keyRings", "", "keyRingId="+keyRingID),
		func(ctx context.Context, client KMSClient) (err error) {
			keyRing, err = client.CreateKeyRing(ctx, &kmspb.CreateKeyRingRequest{
				Parent:    locationGRN,
				KeyRingId: keyRingID,
				KeyRing:   &kmspb.KeyRing{},
			})
			return err
		})
	if err != nil {
		return "", err
	}
	return keyRing.GetName(), nil
}

// CreateCryptoKey creates an ENCRYPT_DECRYPT crypto key in the key ring
// keyRingGRN and returns the GRN of the new key. An empty cryptoKeyID is
// replaced by NewCryptoKeyID().
func (c *Client) CreateCryptoKey(ctx context.Context, keyRingGRN, cryptoKeyID string) (string, error) {
	if cryptoKeyID == "" {
		cryptoKeyID = NewCryptoKeyID()
	}

	var cryptoKey *kmspb.CryptoKey
	err := c.execute(ctx, metrics.OpCreateCryptoKey,
		c.requestURI(keyRingGRN+"/cryptoKeys", "", "cryptoKeyId="+cryptoKeyID),
		func(ctx context.Context, client KMSClient) (err error) {
			cryptoKey, err = client.CreateCryptoKey(ctx, &kmspb.CreateCryptoKeyRequest{
				Parent:      keyRingGRN,
				CryptoKeyId: cryptoKeyID,
				CryptoKey: &kmspb.CryptoKey{
					Purpose: kmspb.CryptoKey_ENCRYPT_DECRYPT,
				},
			})
			return err
		})
	if err != nil {
		return "", err
	}
	return cryptoKey.GetName(), nil
}

// Encrypt encrypts plainData with the primary version of the crypto key
// cryptoKeyGRN. Data larger than MaxPlainDataSize is rejected before any
// request is made.
func (c *Client) Encrypt(ctx context.Context, cryptoKeyGRN string, plainData []byte) ([]byte, error) {
	if len(plainData) > MaxPlainDataSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPlainDataTooLarge, len(plainData), MaxPlainDataSize)
	}

	var resp *kmspb.EncryptResponse
	err := c.execute(ctx, metrics.OpEncrypt, c.requestURI(cryptoKeyGRN, "encrypt", ""),
		func(ctx context.Context, client KMSClient) (err error) {
			resp, err = client.Encrypt(ctx, &kmspb.EncryptRequest{
				Name:            cryptoKeyGRN,
				Plaintext:       plainData,
				PlaintextCrc32C: wrapperspb.Int64(int64(crc32c(plainData))),
			})
			return err
		})
	if err != nil {
		return nil, err
	}

	// The service reports whether it verified the request checksum.
	if !resp.GetVerifiedPlaintextCrc32C() {
		return nil, fmt.Errorf("%w: plain data checksum was not verified by the service", ErrChecksumMismatch)
	}
	if resp.GetCiphertextCrc32C() == nil || resp.GetCiphertextCrc32C().GetValue() != int64(crc32c(resp.GetCiphertext())) {
		return nil, fmt.Errorf("%w: encrypted data", ErrChecksumMismatch)
	}

	return resp.GetCiphertext(), nil
}

// Decrypt decrypts encryptedData, produced by Encrypt with any version of
// the crypto key cryptoKeyGRN.
func (c *Client) Decrypt(ctx context.Context, cryptoKeyGRN string, encryptedData []byte) ([]byte, error) {
	var resp *kmspb.DecryptResponse
	err := c.execute(ctx, metrics.OpDecrypt, c.requestURI(cryptoKeyGRN, "decrypt", ""),
		func(ctx context.Context, client KMSClient) (err error) {
			resp, err = client.Decrypt(ctx, &kmspb.DecryptRequest{
				Name:             cryptoKeyGRN,
				Ciphertext:       encryptedData,
				CiphertextCrc32C: wrapperspb.Int64(int64(crc32c(encryptedData))),
			})
			return err
		})
	if err != nil {
		return nil, err
	}

	if resp.GetPlaintextCrc32C() == nil || resp.GetPlaintextCrc32C().GetValue() != int64(crc32c(resp.GetPlaintext())) {
		return nil, fmt.Errorf("%w: plain data", ErrChecksumMismatch)
	}

	return resp.GetPlaintext(), nil
}

// AddMemberToCryptoKeyIAMPolicy grants role to member on the crypto key
// cryptoKeyGRN by appending a binding to its current IAM policy.
//
// Examples of member: "user:mike@example.com", "group:admins@example.com",
// "serviceAccount:my-app@my-project.iam.gserviceaccount.com".
// Examples of role: "roles/cloudkms.cryptoKeyEncrypterDecrypter", "roles/viewer".
func (c *Client) AddMemberToCryptoKeyIAMPolicy(ctx context.Context, cryptoKeyGRN, member, role string) error {
	policy, err := c.getIAMPolicy(ctx, cryptoKeyGRN)
	if err != nil {
		return err
	}

	policy.Bindings = append(policy.Bindings, &iampb.Binding{
		Role:    role,
		Members: []string{member},
	})

	return c.execute(ctx, metrics.OpSetIAMPolicy, c.requestURI(cryptoKeyGRN, "setIamPolicy", ""),
		func(ctx context.Context, client KMSClient) error {
			_, err := client.SetIamPolicy(ctx, &iampb.SetIamPolicyRequest{
				Resource: cryptoKeyGRN,
				Policy:   policy,
			})
			return err
		})
}

// GetKeyRingIAMPolicy returns the bindings of the IAM policy of the key ring
// keyRingGRN. A policy without bindings yields an empty slice.
func (c *Client) GetKeyRingIAMPolicy(ctx context.Context, keyRingGRN string) ([]Binding, error) {
	policy, err := c.getIAMPolicy(ctx, keyRingGRN)
	if err != nil {
		return nil, err
	}

	bindings := make([]Binding, 0, len(policy.GetBindings()))
	for _, b := range policy.GetBindings() {
		bindings = append(bindings, Binding{
			Role:    b.GetRole(),
			Members: append([]string(nil), b.GetMembers()...),
		})
	}
	return bindings, nil
}

func (c *Client) getIAMPolicy(ctx context.Context, resource string) (*iampb.Policy, error) {
	var policy *iampb.Policy
	err := c.execute(ctx, metrics.OpGetIAMPolicy, c.requestURI(resource, "getIamPolicy", ""),
		func(ctx context.Context, client KMSClient) (err error) {
			policy, err = client.GetIamPolicy(ctx, &iampb.GetIamPolicyRequest{Resource: resource})
			return err
		})
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = &iampb.Policy{}
	}
	return policy, nil
}

// Close releases the underlying connection. Operations on a closed Client
// fail with ErrNotInitialized.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// execute runs a single KMS call. A failure is translated into a gcperrors
// kind, logged and counted before it is returned.
func (c *Client) execute(ctx context.Context, operation, requestURI string, call func(context.Context, KMSClient) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return ErrNotInitialized
	}

	ctx, correlationID := correlation.Ensure(ctx)
	c.logger.Debug("kms request",
		"operation", operation,
		"request_uri", requestURI,
		correlation.LogKey, correlationID)

	if err := c.limiter.Wait(ctx, quotaGroup(operation)); err != nil {
		return err
	}

	start := time.Now()
	err := call(ctx, c.client)
	duration := time.Since(start).Seconds()

	if err == nil {
		metrics.RecordOperation(operation, metrics.StatusSuccess, duration)
		return nil
	}

	err = c.classifier.Translate(err, requestURI)
	metrics.RecordOperation(operation, metrics.StatusError, duration)

	kind, _ := gcperrors.KindOf(err)
	metrics.RecordError(operation, kind.String())
	c.logger.Warn("kms request failed",
		"operation", operation,
		"kind", kind.String(),
		"request_uri", requestURI,
		correlation.LogKey, correlationID,
		"error", err.Error())

	return err
}

// quotaGroup returns the Cloud KMS quota an operation is charged against.
func quotaGroup(operation string) string {
	switch operation {
	case metrics.OpEncrypt, metrics.OpDecrypt:
		return ratelimit.GroupCryptographic
	case metrics.OpGetIAMPolicy:
		return ratelimit.GroupRead
	default:
		return ratelimit.GroupWrite
	}
}

// requestURI describes a call the way the REST API addresses it, e.g.
// https://cloudkms.googleapis.com/v1/projects/p/locations/l/keyRings/r/cryptoKeys/k:encrypt
func (c *Client) requestURI(resource, verb, query string) string {
	var b strings.Builder
	b.WriteString(c.config.BaseURI())
	b.WriteString("v1/")
	b.WriteString(resource)
	if verb != "" {
		b.WriteString(":")
		b.WriteString(verb)
	}
	if query != "" {
		b.WriteString("?")
		b.WriteString(query)
	}
	return b.String()
}

// NewCryptoKeyID returns a random crypto key ID: a version 4 UUID as 32
// lowercase hex characters.
func NewCryptoKeyID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// crc32c computes the CRC32C checksum used by Cloud KMS for data integrity.
func crc32c(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

var _ KeyManager = (*Client)(nil)
