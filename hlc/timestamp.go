// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hlc implements the hybrid-logical-clock timestamp algebra
// that totally orders every column-level change in the sync core, per
// spec §3 and §4.3.
package hlc

import (
	"fmt"

	"github.com/evoluhq/evolu-sub007/config"
)

// MinAllowedMillis and MaxAllowedMillis bound the legal range for a
// timestamp's millis field, per spec §3. The range keeps every
// allowed millis at exactly 16 base-3 digits once divided into
// minutes, which merkle.Insert relies on (see DESIGN.md's Open
// Question decision).
const (
	MinAllowedMillis int64 = 860_934_419_999
	MaxAllowedMillis int64 = 2_582_803_260_000
)

// NodeIDLen is the length, in hex characters, of a node identifier.
const NodeIDLen = 16

// Timestamp is a single HLC tick: (millis, counter, nodeId). Its total
// order is lexicographic on the triple.
type Timestamp struct {
	Millis  int64
	Counter uint16
	NodeID  string
}

// Clock is the subset of ports.Clock the HLC algebra needs.
type Clock interface {
	NowMs() int64
}

// Engine runs the send/receive algorithm against a Clock and a
// Config. Every timestamp it returns carries the engine's own node id,
// whatever node id the local timestamp passed in had; Receive rejects
// a remote timestamp that claims that same node id.
type Engine struct {
	clock  Clock
	config config.Clock
	nodeID string
}

// NewEngine builds an Engine for the given node id, clock, and drift
// config.
func NewEngine(nodeID string, clock Clock, cfg config.Clock) (*Engine, error) {
	if err := ValidateNodeID(nodeID); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{clock: clock, config: cfg, nodeID: nodeID}, nil
}

// ValidateNodeID reports whether id is a well-formed 16-hex-character
// node identifier.
func ValidateNodeID(id string) error {
	if len(id) != NodeIDLen {
		return fmt.Errorf("hlc: node id must be %d hex characters, got %d", NodeIDLen, len(id))
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return fmt.Errorf("hlc: node id %q is not lowercase hex", id)
		}
	}
	return nil
}

func (e *Engine) checkRange(millis int64) error {
	if millis <= MinAllowedMillis || millis >= MaxAllowedMillis {
		return ErrTimeOutOfRange
	}
	return nil
}

// Send implements §4.3's send algorithm: advance local past wall time,
// reusing local's counter only when millis did not advance.
func (e *Engine) Send(local Timestamp) (Timestamp, error) {
	now := e.clock.NowMs()
	if err := e.checkRange(now); err != nil {
		return Timestamp{}, err
	}

	nextMillis := now
	if local.Millis > nextMillis {
		nextMillis = local.Millis
	}
	if err := e.checkRange(nextMillis); err != nil {
		return Timestamp{}, err
	}

	if nextMillis-now > int64(e.config.MaxDriftMs) {
		return Timestamp{}, &DriftError{Now: now, Next: nextMillis}
	}

	var counter uint16
	if nextMillis == local.Millis {
		if local.Counter == 65535 {
			return Timestamp{}, ErrCounterOverflow
		}
		counter = local.Counter + 1
	}

	return Timestamp{Millis: nextMillis, Counter: counter, NodeID: e.nodeID}, nil
}

// Receive implements §4.3's receive algorithm, merging a remote
// timestamp into the local clock state. It is a hard error for the
// remote timestamp to claim the local engine's own node id — the spec
// marks this as required behavior to prevent two clocks from forking
// the same identity (§9's duplicate-node Open Question).
func (e *Engine) Receive(local, remote Timestamp) (Timestamp, error) {
	if remote.NodeID == e.nodeID {
		return Timestamp{}, &DuplicateNodeError{NodeID: remote.NodeID}
	}

	now := e.clock.NowMs()
	if err := e.checkRange(now); err != nil {
		return Timestamp{}, err
	}
	if err := e.checkRange(local.Millis); err != nil {
		return Timestamp{}, err
	}
	if err := e.checkRange(remote.Millis); err != nil {
		return Timestamp{}, err
	}

	next := now
	if local.Millis > next {
		next = local.Millis
	}
	if remote.Millis > next {
		next = remote.Millis
	}
	if err := e.checkRange(next); err != nil {
		return Timestamp{}, err
	}

	if local.Millis-now > int64(e.config.MaxDriftMs) {
		return Timestamp{}, &DriftError{Now: now, Next: local.Millis}
	}
	if remote.Millis-now > int64(e.config.MaxDriftMs) {
		return Timestamp{}, &DriftError{Now: now, Next: remote.Millis}
	}

	var counter uint16
	switch {
	case next == local.Millis && next == remote.Millis:
		c := local.Counter
		if remote.Counter > c {
			c = remote.Counter
		}
		if c == 65535 {
			return Timestamp{}, ErrCounterOverflow
		}
		counter = c + 1
	case next == local.Millis:
		if local.Counter == 65535 {
			return Timestamp{}, ErrCounterOverflow
		}
		counter = local.Counter + 1
	case next == remote.Millis:
		if remote.Counter == 65535 {
			return Timestamp{}, ErrCounterOverflow
		}
		counter = remote.Counter + 1
	default:
		counter = 0
	}

	return Timestamp{Millis: next, Counter: counter, NodeID: e.nodeID}, nil
}

// Compare totally orders a and b lexicographically on
// (Millis, Counter, NodeID), matching binary comparison of their
// MarshalBinary encodings.
func Compare(a, b Timestamp) int {
	switch {
	case a.Millis < b.Millis:
		return -1
	case a.Millis > b.Millis:
		return 1
	}
	switch {
	case a.Counter < b.Counter:
		return -1
	case a.Counter > b.Counter:
		return 1
	}
	switch {
	case a.NodeID < b.NodeID:
		return -1
	case a.NodeID > b.NodeID:
		return 1
	}
	return 0
}
