// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package hlc

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeOutOfRange is returned when a millis value falls outside
	// (MinAllowedMillis, MaxAllowedMillis).
	ErrTimeOutOfRange = errors.New("hlc: timestamp time out of range")

	// ErrCounterOverflow is returned when a timestamp's counter would
	// exceed 65535 within the same millisecond.
	ErrCounterOverflow = errors.New("hlc: timestamp counter overflow")
)

// DriftError is returned when a timestamp would need to advance
// further ahead of wall-clock time than the configured max drift
// allows.
type DriftError struct {
	Now  int64
	Next int64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("hlc: timestamp drift: now=%d next=%d", e.Now, e.Next)
}

// DuplicateNodeError is returned when a remote timestamp claims the
// local engine's own node id.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("hlc: duplicate node id %q", e.NodeID)
}
