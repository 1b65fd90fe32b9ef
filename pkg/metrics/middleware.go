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
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// GRPCUnaryClientInterceptor returns a gRPC unary client interceptor that
// records the duration and status code of every outgoing call.
//
// Usage:
//
//	kms.NewKeyManagementClient(ctx,
//	    option.WithGRPCDialOption(grpc.WithChainUnaryInterceptor(metrics.GRPCUnaryClientInterceptor())),
//	)
func GRPCUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if !IsEnabled() {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		RecordGRPCRequest(method, status.Code(err).String(), time.Since(start).Seconds())
		return err
	}
}
