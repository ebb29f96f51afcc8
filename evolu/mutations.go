// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package evolu

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/ports"
)

// Insert writes a new row to table with a fresh row id, the spec §6
// insert operation. The written messages are handed to the sync
// engine's outbound queue before Insert returns, so a subsequent sync
// round picks them up without the host needing to call Trigger
// itself.
func (e *Evolu) Insert(ctx context.Context, table string, values map[string]crdt.Value) (crdt.RowID, error) {
	id, err := randomRowID(e.deps.Random)
	if err != nil {
		return "", err
	}
	if err := e.mutate(ctx, table, id, values); err != nil {
		return "", err
	}
	return id, nil
}

// Update writes changes to an existing row, the spec §6 update
// operation. Mutate's last-writer-wins algorithm makes this safe to
// call for a row id Insert never produced locally (e.g. one that
// arrived via sync).
func (e *Evolu) Update(ctx context.Context, table string, id crdt.RowID, values map[string]crdt.Value) error {
	return e.mutate(ctx, table, id, values)
}

func (e *Evolu) mutate(ctx context.Context, table string, id crdt.RowID, values map[string]crdt.Value) error {
	store, engine := e.snapshot()
	if store == nil {
		return fmt.Errorf("evolu: not initialized")
	}
	msgs, err := store.Mutate(ctx, table, id, values)
	if err != nil {
		return err
	}
	return engine.EnqueueMessages(msgs)
}

func randomRowID(r ports.Random) (crdt.RowID, error) {
	if r == nil {
		return "", fmt.Errorf("evolu: ports.Random is required")
	}
	b := make([]byte, 16)
	r.FillBytes(b)
	return crdt.RowID(hex.EncodeToString(b)), nil
}
