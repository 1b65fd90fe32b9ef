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
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpEncrypt, StatusSuccess, 0.05)

	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpEncrypt, StatusSuccess)); got != 1 {
		t.Errorf("Expected 1 encrypt operation, got %v", got)
	}
	if count := testutil.CollectAndCount(OperationDuration); count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}

	RecordOperation(OpDecrypt, StatusError, 0.1)

	if count := testutil.CollectAndCount(OperationsTotal); count != 2 {
		t.Errorf("Expected 2 operation series, got %d", count)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpCreateKeyRing, StatusSuccess, 0.5)

	if count := testutil.CollectAndCount(OperationsTotal); count != 0 {
		t.Errorf("Expected 0 operations when disabled, got %d", count)
	}
}

func TestRecordError(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()

	RecordError(OpCreateKeyRing, "already_exists")
	RecordError(OpCreateKeyRing, "already_exists")
	RecordError(OpDecrypt, "resource_permission_denied")

	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpCreateKeyRing, "already_exists")); got != 2 {
		t.Errorf("Expected 2 already_exists errors, got %v", got)
	}
	if count := testutil.CollectAndCount(ErrorsTotal); count != 2 {
		t.Errorf("Expected 2 error series, got %d", count)
	}
}

func TestRecordErrorWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	ErrorsTotal.Reset()
	RecordError(OpEncrypt, "auth_error")

	if count := testutil.CollectAndCount(ErrorsTotal); count != 0 {
		t.Errorf("Expected 0 errors when disabled, got %d", count)
	}
}

func TestRecordGRPCRequest(t *testing.T) {
	Enable()
	GRPCRequestsTotal.Reset()
	GRPCRequestDuration.Reset()

	method := "/google.cloud.kms.v1.KeyManagementService/Encrypt"
	RecordGRPCRequest(method, "OK", 0.02)

	if got := testutil.ToFloat64(GRPCRequestsTotal.WithLabelValues(method, "OK")); got != 1 {
		t.Errorf("Expected 1 gRPC request, got %v", got)
	}
	if count := testutil.CollectAndCount(GRPCRequestDuration); count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	Enable()
	OperationsTotal.Reset()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordOperation(OpGetIAMPolicy, StatusSuccess, 0.01)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpGetIAMPolicy, StatusSuccess)); got != 50 {
		t.Errorf("Expected 50 operations, got %v", got)
	}
}
