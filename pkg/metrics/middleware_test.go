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

package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const testMethod = "/google.cloud.kms.v1.KeyManagementService/Decrypt"

func TestGRPCUnaryClientInterceptor(t *testing.T) {
	Enable()
	GRPCRequestsTotal.Reset()
	GRPCRequestDuration.Reset()

	interceptor := GRPCUnaryClientInterceptor()

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return nil
	}
	if err := interceptor(context.Background(), testMethod, nil, nil, nil, invoker); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	failing := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.PermissionDenied, "denied")
	}
	err := interceptor(context.Background(), testMethod, nil, nil, nil, failing)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("Expected the invoker error to pass through, got %v", err)
	}

	if got := testutil.ToFloat64(GRPCRequestsTotal.WithLabelValues(testMethod, codes.OK.String())); got != 1 {
		t.Errorf("Expected 1 OK request, got %v", got)
	}
	if got := testutil.ToFloat64(GRPCRequestsTotal.WithLabelValues(testMethod, codes.PermissionDenied.String())); got != 1 {
		t.Errorf("Expected 1 PermissionDenied request, got %v", got)
	}
}

func TestGRPCUnaryClientInterceptorWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	GRPCRequestsTotal.Reset()

	called := false
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		called = true
		return nil
	}
	if err := GRPCUnaryClientInterceptor()(context.Background(), testMethod, nil, nil, nil, invoker); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !called {
		t.Error("Expected invoker to be called")
	}
	if count := testutil.CollectAndCount(GRPCRequestsTotal); count != 0 {
		t.Errorf("Expected 0 requests when disabled, got %d", count)
	}
}
