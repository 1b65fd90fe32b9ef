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

package gcperrors

import (
	"errors"
	"strings"

	gauth "cloud.google.com/go/auth"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// perRPCCredsFailure is how grpc-go words a client-side Unauthenticated status
// raised when the token source fails before the RPC is sent.
const perRPCCredsFailure = "per-RPC creds failed"

// connectionErrorPrefix starts the message of the Unavailable status grpc-go
// returns when no connection to the server could be established.
const connectionErrorPrefix = "connection error:"

// Classifier maps failures onto error kinds. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	detectors []Detector
}

// NewClassifier returns a Classifier that tries detectors in the given order.
// With no detectors every HTTP failure becomes UnrecognizedAPIHTTPError.
func NewClassifier(detectors ...Detector) *Classifier {
	ds := make([]Detector, 0, len(detectors))
	for _, d := range detectors {
		if d != nil {
			ds = append(ds, d)
		}
	}
	return &Classifier{detectors: ds}
}

var defaultClassifier = NewClassifier(DefaultDetectors()...)

// Default returns the Classifier used by the package-level functions.
func Default() *Classifier {
	return defaultClassifier
}

// Classify maps an HTTP-level failure onto an error kind using the default
// detectors.
func Classify(f HTTPFailure) Error {
	return defaultClassifier.Classify(f)
}

// Translate replaces a client library error with a classified Error using
// the default detectors. See (*Classifier).Translate.
func Translate(err error, requestURI string) error {
	return defaultClassifier.Translate(err, requestURI)
}

// Classify returns exactly one Error for f. The first detector that matches
// the trimmed reason wins; when none does, or the reason cannot be
// extracted, the result is an UnrecognizedAPIHTTPError.
func (c *Classifier) Classify(f HTTPFailure) Error {
	reason, err := extractReason(f)
	if err == nil {
		for _, detect := range c.detectors {
			if e, ok := runDetector(detect, reason); ok {
				return e
			}
		}
	}
	return NewUnrecognizedAPIHTTPError(f)
}

// Translate is the boundary between a request executor and the classifier.
// It returns nil for a nil err and otherwise an Error whose cause is err:
//
//   - an Error already in the chain is returned unchanged;
//   - token retrieval failures (oauth2 or cloud.google.com/go/auth) and
//     client-side gRPC credential failures become AuthError;
//   - *googleapi.Error and gRPC status errors are classified, except the
//     statuses grpc-go raises itself for cancellation, deadlines and failed
//     connections;
//   - anything else becomes UnrecognizedAPIError.
//
// Only the HTTP-level branch runs the detectors.
func (c *Classifier) Translate(err error, requestURI string) error {
	if err == nil {
		return nil
	}

	var classified Error
	if errors.As(err, &classified) {
		return err
	}

	if isAuthFailure(err) {
		return NewAuthError(err)
	}

	var out Error
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		out = c.Classify(FromGoogleAPIError(apiErr, requestURI))
	} else if st, ok := status.FromError(err); ok && !isClientSideStatus(err) {
		out = c.Classify(FromStatus(st, requestURI))
	} else {
		out = &UnrecognizedAPIError{}
	}
	out.setCause(err)
	return out
}

// runDetector treats a panicking detector as a non-match.
func runDetector(detect Detector, reason string) (e Error, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e, ok = nil, false
		}
	}()
	e, ok = detect(reason)
	if e == nil {
		return nil, false
	}
	return e, ok
}

// isClientSideStatus reports whether the gRPC status in err was produced by
// the client without a response from the server. The status is read from the
// error that carries it, since status.FromError replaces the message of a
// wrapped status with the whole error text.
func isClientSideStatus(err error) bool {
	var se interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &se) {
		return false
	}
	st := se.GRPCStatus()
	switch st.Code() {
	case codes.Canceled, codes.DeadlineExceeded:
		return true
	case codes.Unavailable:
		return strings.HasPrefix(st.Message(), connectionErrorPrefix)
	default:
		return false
	}
}

func isAuthFailure(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}
	var tokenErr *gauth.Error
	if errors.As(err, &tokenErr) {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.Unauthenticated {
		return strings.Contains(st.Message(), perRPCCredsFailure)
	}
	return false
}
