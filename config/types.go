// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the plain-struct configuration types shared by
// the sync core: the HLC drift bound, the client sync engine, and the
// relay's storage quota.
package config

import "time"

// Clock bounds how far a timestamp's millis may drift from wall-clock
// time before the HLC algebra in package hlc rejects it.
type Clock struct {
	// MaxDriftMs is the maximum allowed difference between a
	// timestamp's millis and the local wall clock, in milliseconds.
	MaxDriftMs uint32
}

// Sync configures the client sync engine's request timeout and
// reconnect backoff.
type Sync struct {
	// RequestTimeout bounds a single sync round's request/response.
	RequestTimeout time.Duration
	// BackoffBase is the unit duration multiplied by the Fibonacci
	// backoff sequence between reconnect attempts.
	BackoffBase time.Duration
	// BackoffCapIndex bounds the Fibonacci index used for backoff, so
	// the wait time plateaus instead of growing without bound.
	BackoffCapIndex int
}

// Relay configures the relay's per-owner storage quota.
type Relay struct {
	// DefaultQuotaBytes is the storage ceiling applied to an owner
	// that has no owner-specific override.
	DefaultQuotaBytes uint64
}
