// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

var (
	ErrInvalidMaxDrift       = errors.New("config: max drift must be > 0")
	ErrInvalidRequestTimeout = errors.New("config: request timeout must be > 0")
	ErrInvalidBackoffBase    = errors.New("config: backoff base must be > 0")
	ErrInvalidBackoffCap     = errors.New("config: backoff cap index must be between 1 and 78")
	ErrInvalidQuota          = errors.New("config: default quota bytes must be > 0")
)
