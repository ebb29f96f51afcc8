// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sync implements the client-side sync engine of spec §4.6:
// a FIFO mutation queue, a batched request/response round against a
// relay, and the state machine that tracks whether the local replica
// is caught up.
package sync

// State is the client sync state machine of spec §4.6.
type State int

const (
	StateInitial State = iota
	StateSyncing
	StateSynced
	StateNotSynced
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateSyncing:
		return "syncing"
	case StateSynced:
		return "synced"
	case StateNotSynced:
		return "not-synced"
	default:
		return "unknown"
	}
}
