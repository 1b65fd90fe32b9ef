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

// Package correlation ties the log records and outgoing requests of one
// invocation together with a shared ID.
package correlation

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// IDKey is the context key for storing correlation IDs
	IDKey contextKey = "correlation-id"

	// LogKey is the attribute name used in log records
	LogKey = "correlation_id"

	// GRPCMetadataKey is the gRPC metadata key for correlation IDs
	GRPCMetadataKey = "x-correlation-id"
)

// WithID adds a correlation ID to the context
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, IDKey, id)
}

// FromContext retrieves the correlation ID from context.
// Returns an empty string if no correlation ID is found.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(IDKey).(string); ok {
		return id
	}
	return ""
}

// NewID generates a new UUID v4 correlation ID
func NewID() string {
	return uuid.New().String()
}

// Ensure returns ctx and its correlation ID, adding a new ID when ctx has
// none.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}

// UnaryClientInterceptor forwards the correlation ID of the call context as
// outgoing gRPC metadata. Calls without an ID are sent unchanged.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if id := FromContext(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, GRPCMetadataKey, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
