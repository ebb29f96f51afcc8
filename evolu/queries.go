// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package evolu

import (
	"context"
	"fmt"

	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/ports"
	syncengine "github.com/evoluhq/evolu-sub007/sync"
)

// CreateQuery registers q against the current store and returns a
// handle for LoadQuery/SubscribeQuery, the spec §6 createQuery
// operation.
func (e *Evolu) CreateQuery(q crdt.Query) crdt.QueryHandle {
	store, _ := e.snapshot()
	return store.CreateQuery(q)
}

// LoadQuery runs handle's query once, the spec §6 loadQuery
// operation.
func (e *Evolu) LoadQuery(ctx context.Context, handle crdt.QueryHandle) (ports.Result, error) {
	store, _ := e.snapshot()
	if store == nil {
		return ports.Result{}, fmt.Errorf("evolu: not initialized")
	}
	return store.LoadQuery(ctx, handle)
}

// SubscribeQuery registers cb to run after every commit touching
// handle's query's tables, the spec §6 subscribeQuery operation.
func (e *Evolu) SubscribeQuery(handle crdt.QueryHandle, cb func()) func() {
	store, _ := e.snapshot()
	return store.SubscribeQuery(handle, cb)
}

// SubscribeError registers cb to run with every error a sync round
// returns, retryable network errors included, the spec §6
// subscribeError operation.
func (e *Evolu) SubscribeError(cb func(error)) func() {
	_, engine := e.snapshot()
	return engine.SubscribeError(cb)
}

// SubscribeSyncState registers cb to run on every sync state
// transition, the spec §6 subscribeSyncState operation.
func (e *Evolu) SubscribeSyncState(cb func(syncengine.State)) func() {
	_, engine := e.snapshot()
	return engine.SubscribeSyncState(cb)
}

// Trigger schedules a sync round without enqueuing any new messages,
// useful for a host reacting to a reconnect or focus event per spec
// §4.6.
func (e *Evolu) Trigger() {
	_, engine := e.snapshot()
	if engine != nil {
		engine.Trigger()
	}
}
