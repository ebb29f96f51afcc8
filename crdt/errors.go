// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crdt

import "errors"

// ErrUnknownTable is returned when a mutation or remote change names a table
// that was not registered via a TableSchema at Store construction.
var ErrUnknownTable = errors.New("crdt: unknown table")

// ErrEmptyChange is returned when Insert/Update/Delete is called with
// no column values to write.
var ErrEmptyChange = errors.New("crdt: change has no column values")
