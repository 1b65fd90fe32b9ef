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
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// ErrNoReason is returned by HTTPFailure.Reason when the failure carries no
// human-readable reason.
var ErrNoReason = errors.New("gcperrors: failure has no reason string")

// HTTPFailure is what the classifier needs to know about an HTTP-level
// failure. Implementations wrap a client library error.
type HTTPFailure interface {
	// Reason returns the service's explanation of the failure. Extraction may
	// fail; callers must tolerate that.
	Reason() (string, error)
	Response() Response
	Content() []byte
	RequestURI() string
}

// Response is a snapshot of the response that carried the failure.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
}

func (r Response) clone() Response {
	r.Header = r.Header.Clone()
	return r
}

// extractReason recovers from a panicking Reason implementation so the
// classifier never escalates a reason-extraction problem.
func extractReason(f HTTPFailure) (reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reason, err = "", ErrNoReason
		}
	}()
	reason, err = f.Reason()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reason), nil
}

// googleAPIFailure adapts *googleapi.Error, returned by REST transports.
type googleAPIFailure struct {
	err        *googleapi.Error
	requestURI string
}

// FromGoogleAPIError adapts a REST client error.
func FromGoogleAPIError(err *googleapi.Error, requestURI string) HTTPFailure {
	return &googleAPIFailure{err: err, requestURI: requestURI}
}

// Reason prefers error.message from the JSON body, the same field Google's
// own client libraries surface, and falls back to the parsed message.
func (f *googleAPIFailure) Reason() (string, error) {
	if f.err == nil {
		return "", ErrNoReason
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if f.err.Body != "" && json.Unmarshal([]byte(f.err.Body), &body) == nil && body.Error.Message != "" {
		return body.Error.Message, nil
	}
	if f.err.Message != "" {
		return f.err.Message, nil
	}
	return "", ErrNoReason
}

func (f *googleAPIFailure) Response() Response {
	if f.err == nil {
		return Response{}
	}
	return Response{
		StatusCode: f.err.Code,
		Status:     http.StatusText(f.err.Code),
		Header:     f.err.Header,
	}
}

func (f *googleAPIFailure) Content() []byte {
	if f.err == nil || f.err.Body == "" {
		return nil
	}
	return []byte(f.err.Body)
}

func (f *googleAPIFailure) RequestURI() string { return f.requestURI }

// statusFailure adapts a gRPC status, returned by gRPC transports.
type statusFailure struct {
	st         *status.Status
	requestURI string
}

// FromStatus adapts a gRPC client error.
func FromStatus(st *status.Status, requestURI string) HTTPFailure {
	return &statusFailure{st: st, requestURI: requestURI}
}

func (f *statusFailure) Reason() (string, error) {
	if f.st == nil || f.st.Message() == "" {
		return "", ErrNoReason
	}
	return f.st.Message(), nil
}

func (f *statusFailure) Response() Response {
	if f.st == nil {
		return Response{}
	}
	code := HTTPStatusFromCode(f.st.Code())
	return Response{
		StatusCode: code,
		Status:     f.st.Code().String(),
	}
}

// Content is the wire encoding of the google.rpc.Status, details included.
func (f *statusFailure) Content() []byte {
	if f.st == nil {
		return nil
	}
	b, err := proto.Marshal(f.st.Proto())
	if err != nil {
		return nil
	}
	return b
}

func (f *statusFailure) RequestURI() string { return f.requestURI }

// HTTPStatusFromCode maps a gRPC code to the HTTP status Google APIs use for
// it, following google/rpc/code.proto.
func HTTPStatusFromCode(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499
	case codes.Unknown, codes.Internal, codes.DataLoss:
		return http.StatusInternalServerError
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
