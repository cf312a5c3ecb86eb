// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package store

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds the startup collection-ensure loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of EnsureCollection attempts.
	MaxAttempts int

	// Backoff is the base wait; attempt n sleeps n*Backoff (linear).
	Backoff time.Duration
}

// DefaultRetryPolicy matches the deployment default: 10 attempts with a
// linearly increasing 2s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Backoff: 2 * time.Second}
}

// EnsureReady runs EnsureCollection under the retry policy. It returns nil on
// the first success and the last error once attempts are exhausted or the
// context is cancelled. Callers are expected to start in a degraded state on
// failure rather than refuse to boot; request-time operations will surface
// store errors individually.
func EnsureReady(ctx context.Context, s IdentityStore, policy RetryPolicy) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = s.EnsureCollection(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == policy.MaxAttempts {
			break
		}

		wait := time.Duration(attempt) * policy.Backoff
		slog.Warn("store not ready, retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"wait", wait,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}
