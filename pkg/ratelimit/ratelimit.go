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

// Package ratelimit throttles outgoing Cloud KMS requests on the client side.
//
// Cloud KMS enforces per-project quotas per request group (read, write and
// cryptographic requests per minute). A Limiter keeps one token bucket per
// group so a burst of encrypt calls cannot starve key ring lookups.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Quota groups used by the KMS client.
const (
	GroupRead          = "read"
	GroupWrite         = "write"
	GroupCryptographic = "cryptographic"
)

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerMinute sets the sustained rate per group. Zero or less
	// disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" mapstructure:"requests_per_minute"`

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to RequestsPerMinute.
	Burst int `yaml:"burst" json:"burst" mapstructure:"burst"`
}

// Limiter implements a token bucket rate limiter with one bucket per group.
// The zero value and a nil *Limiter never block.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	enabled  bool
}

// New creates a new rate limiter with the given configuration.
func New(config *Config) *Limiter {
	if config == nil || config.RequestsPerMinute <= 0 {
		return &Limiter{}
	}

	burst := config.Burst
	if burst <= 0 {
		burst = config.RequestsPerMinute
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:    burst,
		enabled:  true,
	}
}

func (l *Limiter) getLimiter(group string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[group]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[group] = limiter
	}
	return limiter
}

// Allow reports whether a request in group may be sent now, consuming a
// token if so.
func (l *Limiter) Allow(group string) bool {
	if !l.IsEnabled() {
		return true
	}
	return l.getLimiter(group).Allow()
}

// Wait blocks until a request in group may be sent. It returns an error if
// ctx is done first or its deadline leaves too little time to wait.
func (l *Limiter) Wait(ctx context.Context, group string) error {
	if !l.IsEnabled() {
		return nil
	}
	if err := l.getLimiter(group).Wait(ctx); err != nil {
		return fmt.Errorf("ratelimit: %s quota: %w", group, err)
	}
	return nil
}

// IsEnabled returns whether rate limiting is enabled.
func (l *Limiter) IsEnabled() bool {
	return l != nil && l.enabled
}

// Stats returns current rate limiter statistics.
func (l *Limiter) Stats() map[string]interface{} {
	if !l.IsEnabled() {
		return map[string]interface{}{"enabled": false}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"enabled":      true,
		"groups":       len(l.limiters),
		"rate_per_min": float64(l.rate) * 60,
		"burst":        l.burst,
	}
}
