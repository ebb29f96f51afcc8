// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// Validate reports whether c's bounds are usable by the HLC algebra.
func (c Clock) Validate() error {
	if c.MaxDriftMs == 0 {
		return ErrInvalidMaxDrift
	}
	return nil
}

// Validate reports whether s's bounds are usable by the sync engine.
func (s Sync) Validate() error {
	if s.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	if s.BackoffBase <= 0 {
		return ErrInvalidBackoffBase
	}
	if s.BackoffCapIndex < 1 || s.BackoffCapIndex > 78 {
		return ErrInvalidBackoffCap
	}
	return nil
}

// Validate reports whether r's quota is usable by relay storage.
func (r Relay) Validate() error {
	if r.DefaultQuotaBytes == 0 {
		return ErrInvalidQuota
	}
	return nil
}
