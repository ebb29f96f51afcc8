// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "time"

// DefaultClock returns the spec's default 5-minute drift bound.
func DefaultClock() Clock {
	return Clock{MaxDriftMs: uint32(5 * time.Minute / time.Millisecond)}
}

// DefaultSync returns the spec's default request timeout and backoff shape.
func DefaultSync() Sync {
	return Sync{
		RequestTimeout:  30 * time.Second,
		BackoffBase:     250 * time.Millisecond,
		BackoffCapIndex: 78,
	}
}

// DefaultRelay returns a conservative default per-owner storage quota.
func DefaultRelay() Relay {
	return Relay{DefaultQuotaBytes: 100 * 1024 * 1024}
}
