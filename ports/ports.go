// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ports declares the host interfaces the sync core is built
// against, per spec §6: Sqlite, WebSocket, Clock, Random, and
// SecureStorage. The core never imports a concrete SQLite driver, a
// WebSocket client library, or a platform RNG — those are the host
// application's job to supply. This mirrors the spec's own framing of
// these as "external collaborators" consumed through a narrow port.
package ports

import "context"

// Result is the outcome of a single Sqlite.Exec call.
type Result struct {
	// Rows is the query's result set, one map per row, column name to
	// driver value (string, int64, float64, []byte, or nil).
	Rows []map[string]any
	// Changes is the number of rows inserted/updated/deleted by a
	// mutating statement.
	Changes int64
}

// Sqlite is the host's SQLite adapter. The core issues parameterized
// SQL through it and never assumes a particular driver.
type Sqlite interface {
	// Exec runs query with args and returns its result set and/or
	// affected row count.
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	// Transaction runs fn inside a single SQLite transaction,
	// committing on a nil return and rolling back otherwise.
	Transaction(ctx context.Context, fn func(tx Sqlite) error) error
	// Export returns a serialized copy of the whole database, for
	// Evolu.exportDatabase().
	Export(ctx context.Context) ([]byte, error)
}

// ConnState is the lifecycle state of a WebSocket connection.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnOpen
	ConnClosed
)

// WebSocket is the host's WebSocket transport. The client-side
// implementation is a platform shim out of scope for this module; the
// sync engine only depends on this interface.
type WebSocket interface {
	Send(ctx context.Context, data []byte) error
	OnMessage(cb func(data []byte))
	State() ConnState
}

// Clock is the host's wall-clock source, used by the HLC algebra.
type Clock interface {
	NowMs() int64
	NowISO() string
}

// Random is the host's CSPRNG source.
type Random interface {
	NextUint32() uint32
	FillBytes(b []byte)
}

// SecureStorage is an optional host-provided secret store, used for
// local-auth profile storage. The sync core itself never requires it.
type SecureStorage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
