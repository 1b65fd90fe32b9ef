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

package correlation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestWithID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
		want string
	}{
		{
			name: "Add correlation ID to context",
			ctx:  context.Background(),
			id:   "test-correlation-id",
			want: "test-correlation-id",
		},
		{
			name: "Add correlation ID to nil context",
			ctx:  nil,
			id:   "test-correlation-id-2",
			want: "test-correlation-id-2",
		},
		{
			name: "Add empty correlation ID",
			ctx:  context.Background(),
			id:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithID(tt.ctx, tt.id)
			if ctx == nil {
				t.Fatal("WithID returned nil context")
			}
			if got := FromContext(ctx); got != tt.want {
				t.Errorf("FromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(nil); got != "" {
		t.Errorf("FromContext(nil) = %v, want empty", got)
	}
	if got := FromContext(context.Background()); got != "" {
		t.Errorf("FromContext() = %v, want empty", got)
	}
	ctx := context.WithValue(context.Background(), IDKey, 42)
	if got := FromContext(ctx); got != "" {
		t.Errorf("FromContext() with non-string value = %v, want empty", got)
	}
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("NewID() = %q is not a UUID: %v", id, err)
		}
		if parsed.Version() != 4 {
			t.Errorf("NewID() version = %d, want 4", parsed.Version())
		}
		if seen[id] {
			t.Fatalf("NewID() returned duplicate %s", id)
		}
		seen[id] = true
	}
}

func TestEnsure(t *testing.T) {
	ctx, id := Ensure(context.Background())
	if id == "" {
		t.Fatal("Ensure() returned an empty ID")
	}
	if got := FromContext(ctx); got != id {
		t.Errorf("FromContext() = %v, want %v", got, id)
	}

	again, sameID := Ensure(ctx)
	if sameID != id {
		t.Errorf("Ensure() replaced an existing ID: %v, want %v", sameID, id)
	}
	if again != ctx {
		t.Error("Ensure() should return the same context when an ID is present")
	}
}

func TestUnaryClientInterceptor(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want []string
	}{
		{name: "with correlation ID", ctx: WithID(context.Background(), "abc"), want: []string{"abc"}},
		{name: "without correlation ID", ctx: context.Background(), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
				md, _ := metadata.FromOutgoingContext(ctx)
				got = md.Get(GRPCMetadataKey)
				return nil
			}

			if err := UnaryClientInterceptor()(tt.ctx, "/test.Service/Method", nil, nil, nil, invoker); err != nil {
				t.Fatalf("interceptor returned error: %v", err)
			}
			if len(got) != len(tt.want) || (len(got) == 1 && got[0] != tt.want[0]) {
				t.Errorf("metadata %s = %v, want %v", GRPCMetadataKey, got, tt.want)
			}
		})
	}
}

func BenchmarkEnsure(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		_, _ = Ensure(ctx)
	}
}
