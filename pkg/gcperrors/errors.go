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

// Package gcperrors turns the loosely-typed failures returned by Google Cloud
// API clients into a small, closed set of error kinds.
//
// Google services report most failures as an HTTP (or gRPC) error whose only
// useful payload is a free-form English sentence such as
//
//	Permission 'cloudkms.cryptoKeyVersions.useToDecrypt' denied for resource '...'.
//
// The classifier recovers structure from those sentences with an ordered list
// of detectors and falls back to UnrecognizedAPIHTTPError, which keeps the raw
// response for post-mortem logging. Callers branch on the concrete type (via
// errors.As) or on Kind, never on the message text.
package gcperrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error variants produced by this package.
type Kind int

const (
	KindAuth Kind = iota + 1
	KindResourcePermissionDenied
	KindResourceNotFound
	KindAlreadyExists
	KindUnrecognizedAPI
	KindUnrecognizedAPIHTTP
)

// String returns a snake_case label suitable for metrics and machine output.
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth_error"
	case KindResourcePermissionDenied:
		return "resource_permission_denied"
	case KindResourceNotFound:
		return "resource_not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnrecognizedAPI:
		return "unrecognized_api_error"
	case KindUnrecognizedAPIHTTP:
		return "unrecognized_api_http_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	unknownValue = "unknown"

	// DefaultErrorReason is kept by UnrecognizedAPIHTTPError when the reason
	// string cannot be extracted from the failure.
	DefaultErrorReason = "unknown error reason"
)

// Error is the common base of every error kind in this package. The set of
// implementations is closed.
type Error interface {
	error
	Kind() Kind

	setCause(err error)
}

// chain carries the failure that triggered classification so errors.Is and
// errors.As can reach the client library error underneath.
type chain struct {
	cause error
}

func (c *chain) setCause(err error) { c.cause = err }

// Unwrap returns the original failure, if any.
func (c *chain) Unwrap() error { return c.cause }

// AuthError reports that authentication or authorization with Google failed
// before any request reached the service.
type AuthError struct {
	chain
}

// NewAuthError returns an AuthError caused by err. err may be nil.
func NewAuthError(err error) *AuthError {
	e := &AuthError{}
	e.setCause(err)
	return e
}

func (e *AuthError) Kind() Kind { return KindAuth }

func (e *AuthError) Error() string {
	return "Google Cloud authentication or authorization error."
}

// ResourcePermissionDenied is returned for reasons shaped like
// "Permission '<permission>' denied for resource '<resource>'.".
// An empty field means the value is unknown.
type ResourcePermissionDenied struct {
	chain

	// Resource is a resource ID, GRN or some other identifier.
	Resource string
	// Permission is a permission ID such as cloudkms.cryptoKeyVersions.useToEncrypt.
	Permission string
}

func NewResourcePermissionDenied(resource, permission string) *ResourcePermissionDenied {
	return &ResourcePermissionDenied{Resource: resource, Permission: permission}
}

func (e *ResourcePermissionDenied) Kind() Kind { return KindResourcePermissionDenied }

func (e *ResourcePermissionDenied) Error() string {
	return fmt.Sprintf("Permission '%s' denied for resource '%s'.",
		orUnknown(e.Permission), orUnknown(e.Resource))
}

// ResourceNotFound is returned for reasons shaped like
// "<resource_type> <resource> not found.".
//
// The resource may exist but not be visible to the credentials used for the
// request.
type ResourceNotFound struct {
	chain

	Resource string
}

func NewResourceNotFound(resource string) *ResourceNotFound {
	return &ResourceNotFound{Resource: resource}
}

func (e *ResourceNotFound) Kind() Kind { return KindResourceNotFound }

func (e *ResourceNotFound) Error() string {
	return fmt.Sprintf("Resource '%s' not found.", orUnknown(e.Resource))
}

// AlreadyExists is returned for reasons shaped like "<what> already exists.".
type AlreadyExists struct {
	chain

	What string
}

// NewAlreadyExists returns an AlreadyExists for what. An empty what is kept
// as is.
func NewAlreadyExists(what string) *AlreadyExists {
	return &AlreadyExists{What: what}
}

func (e *AlreadyExists) Kind() Kind { return KindAlreadyExists }

func (e *AlreadyExists) Error() string {
	return fmt.Sprintf("%s already exists.", e.What)
}

// UnrecognizedAPIError is returned when the client library failed for a
// reason unrelated to an HTTP exchange (transport setup, cancellation, ...).
type UnrecognizedAPIError struct {
	chain
}

// NewUnrecognizedAPIError returns an UnrecognizedAPIError caused by err.
func NewUnrecognizedAPIError(err error) *UnrecognizedAPIError {
	e := &UnrecognizedAPIError{}
	e.setCause(err)
	return e
}

func (e *UnrecognizedAPIError) Kind() Kind { return KindUnrecognizedAPI }

func (e *UnrecognizedAPIError) Error() string {
	return "Unrecognized Google API error."
}

// UnrecognizedAPIHTTPError is the catch-all for HTTP-level failures that no
// detector recognized. It keeps the full diagnostic context of the response.
type UnrecognizedAPIHTTPError struct {
	chain

	Response        Response
	ResponseContent []byte
	RequestURI      string
	ErrorReason     string
}

// NewUnrecognizedAPIHTTPError copies the diagnostic context out of f. A
// reason that cannot be extracted leaves ErrorReason at DefaultErrorReason.
func NewUnrecognizedAPIHTTPError(f HTTPFailure) *UnrecognizedAPIHTTPError {
	e := &UnrecognizedAPIHTTPError{
		Response:        f.Response().clone(),
		ResponseContent: cloneBytes(f.Content()),
		RequestURI:      f.RequestURI(),
		ErrorReason:     DefaultErrorReason,
	}
	if reason, err := extractReason(f); err == nil {
		e.ErrorReason = reason
	}
	return e
}

func (e *UnrecognizedAPIHTTPError) Kind() Kind { return KindUnrecognizedAPIHTTP }

func (e *UnrecognizedAPIHTTPError) Error() string {
	return fmt.Sprintf("Unrecognized Google API HTTP error: %s.", e.ErrorReason)
}

// KindOf reports the kind of the first Error found in err's chain.
func KindOf(err error) (Kind, bool) {
	var e Error
	if errors.As(err, &e) {
		return e.Kind(), true
	}
	return 0, false
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Verify interface compliance at compile time
var (
	_ Error = (*AuthError)(nil)
	_ Error = (*ResourcePermissionDenied)(nil)
	_ Error = (*ResourceNotFound)(nil)
	_ Error = (*AlreadyExists)(nil)
	_ Error = (*UnrecognizedAPIError)(nil)
	_ Error = (*UnrecognizedAPIHTTPError)(nil)
)
