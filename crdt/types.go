// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crdt implements the local CRDT store of spec §4.5: an
// append-only evolu_history log plus a per-table materialized
// projection, applying column-wise last-writer-wins via the hlc and
// merkle packages.
package crdt

import "github.com/evoluhq/evolu-sub007/hlc"

// RowID identifies a row within a table, scoped to a single owner.
type RowID = string

// DbChange is a set of column writes targeting one row of one table.
type DbChange struct {
	Table  string
	ID     RowID
	Values map[string]Value
}

// CrdtMessage pairs a change with the timestamp it was written at;
// this is the atomic unit of replication (spec GLOSSARY, "Message").
type CrdtMessage struct {
	Timestamp hlc.Timestamp
	Change    DbChange
}

// EncryptedCrdtMessage is a CrdtMessage's on-disk and on-wire form:
// the change is serialized and sealed under the owner's encryption
// key before it ever leaves the local store.
type EncryptedCrdtMessage struct {
	Timestamp  hlc.Timestamp
	Ciphertext []byte
}

// TableSchema declares an application table's projection columns, so
// Store can create and maintain its materialized view.
type TableSchema struct {
	Name    string
	Columns []string
}

// Query is a read against the projection tables, tagged with the
// table names it depends on so Store can route change notifications
// to the right subscriptions.
type Query struct {
	SQL    string
	Args   []any
	Tables []string
}
