// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package evolu is the host-facing façade of spec §6: createEvolu
// wires the host's ports (Sqlite, WebSocket, Clock, Random,
// SecureStorage) into a crdt.Store and sync.Engine pair scoped to one
// AppOwner, and exposes the small operation set a host application
// drives — insert, update, query, subscribe, and owner lifecycle.
package evolu

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/evoluhq/evolu-sub007/config"
	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/hlc"
	"github.com/evoluhq/evolu-sub007/owner"
	"github.com/evoluhq/evolu-sub007/ports"
	syncengine "github.com/evoluhq/evolu-sub007/sync"
	"github.com/evoluhq/evolu-sub007/telemetry"
)

// Deps bundles the host ports the core is built against, per spec §6.
// WebSocket and SecureStorage may be nil: a host with no network
// connectivity yet can still run inserts/updates/queries locally, and
// SecureStorage is explicitly optional in the spec.
type Deps struct {
	Sqlite        ports.Sqlite
	WebSocket     ports.WebSocket
	Clock         ports.Clock
	Random        ports.Random
	SecureStorage ports.SecureStorage
	Logger        *telemetry.Logger
	Metrics       *telemetry.Metrics
}

// Config bundles the tunables createEvolu needs from package config.
type Config struct {
	Clock config.Clock
	Sync  config.Sync
	// RelayURL, when set, is used to build the spec §4.6 step 3
	// HTTP-POST fallback transport for any owner whose Deps.WebSocket
	// is nil (e.g. a host that has not finished negotiating a
	// WebSocket connection yet, or chooses not to use one).
	RelayURL string
}

// Evolu is the handle returned by CreateEvolu. One Evolu runs one
// owner's Store and sync Engine at a time; RestoreAppOwner and
// ResetAppOwner swap both out for a fresh pair without the host
// needing to reconstruct the handle itself.
type Evolu struct {
	deps   Deps
	schema []crdt.TableSchema
	cfg    Config

	mu     sync.Mutex
	owner  owner.Owner
	nodeID string
	store  *crdt.Store
	engine *syncengine.Engine
	cancel context.CancelFunc
}

// CreateEvolu builds an Evolu against a brand-new AppOwner, the spec
// §6 createEvolu default-owner path. The returned handle's sync
// engine is already running in the background; call Close to stop it.
func CreateEvolu(ctx context.Context, deps Deps, schema []crdt.TableSchema, cfg Config) (*Evolu, error) {
	if deps.Logger == nil {
		deps.Logger = telemetry.NewLogger(nil)
	}
	nodeID, err := randomNodeID(deps.Random)
	if err != nil {
		return nil, fmt.Errorf("evolu: generate node id: %w", err)
	}

	e := &Evolu{deps: deps, schema: schema, cfg: cfg, nodeID: nodeID}

	appOwner, err := owner.GenerateAppOwner()
	if err != nil {
		return nil, fmt.Errorf("evolu: generate app owner: %w", err)
	}
	if err := e.swapOwner(ctx, appOwner); err != nil {
		return nil, err
	}
	return e, nil
}

// GetAppOwner returns the owner currently driving this Evolu's local
// store and sync engine.
func (e *Evolu) GetAppOwner() owner.Owner {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// RestoreAppOwner rebuilds the handle around the AppOwner recovered
// from mnemonic, the spec §6 restoreAppOwner operation. The previous
// owner's sync engine is stopped; its evolu_history/evolu_clock rows
// are untouched (they are namespaced by ownerId) but the projection
// tables are not, matching the spec's one-owner-per-local-database
// assumption — a host restoring a different owner into the same
// ports.Sqlite is expected to also swap the underlying database file.
func (e *Evolu) RestoreAppOwner(ctx context.Context, mnemonic string) error {
	newOwner, err := owner.NewAppOwnerFromMnemonic(mnemonic)
	if err != nil {
		return fmt.Errorf("evolu: restore app owner: %w", err)
	}
	return e.swapOwner(ctx, newOwner)
}

// ResetAppOwner discards the current owner and starts over with a
// brand-new one, the spec §6 resetAppOwner operation.
func (e *Evolu) ResetAppOwner(ctx context.Context) error {
	newOwner, err := owner.GenerateAppOwner()
	if err != nil {
		return fmt.Errorf("evolu: reset app owner: %w", err)
	}
	return e.swapOwner(ctx, newOwner)
}

func (e *Evolu) swapOwner(ctx context.Context, newOwner owner.Owner) error {
	clock, err := hlc.NewEngine(e.nodeID, e.deps.Clock, e.cfg.Clock)
	if err != nil {
		return fmt.Errorf("evolu: build clock engine: %w", err)
	}
	store := crdt.NewStore(e.deps.Sqlite, newOwner.ID(), clock, e.deps.Logger, e.schema)
	if err := store.CreateSchema(ctx); err != nil {
		return fmt.Errorf("evolu: create schema: %w", err)
	}

	var transport syncengine.Transport = offlineTransport{}
	switch {
	case e.deps.WebSocket != nil:
		transport = newWebSocketTransport(e.deps.WebSocket, e.cfg.Sync)
	case e.cfg.RelayURL != "":
		writeKey, _ := newOwner.WriteKey()
		transport = newHTTPTransport(e.cfg.RelayURL, writeKey, e.cfg.Sync)
	}
	engine := syncengine.NewEngine(store, newOwner, e.nodeID, transport, e.cfg.Sync, e.deps.Logger, e.deps.Metrics)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	e.mu.Lock()
	previousCancel := e.cancel
	e.owner = newOwner
	e.store = store
	e.engine = engine
	e.cancel = cancel
	e.mu.Unlock()

	if previousCancel != nil {
		previousCancel()
	}
	go engine.Run(runCtx)
	return nil
}

// Close stops the running sync engine. It does not close deps.Sqlite
// or deps.WebSocket; the host owns their lifecycle.
func (e *Evolu) Close() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ExportDatabase returns a serialized copy of the whole local
// database, the spec §6 exportDatabase operation.
func (e *Evolu) ExportDatabase(ctx context.Context) ([]byte, error) {
	return e.deps.Sqlite.Export(ctx)
}

func (e *Evolu) snapshot() (*crdt.Store, *syncengine.Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store, e.engine
}

func randomNodeID(r ports.Random) (string, error) {
	if r == nil {
		return "", fmt.Errorf("evolu: ports.Random is required")
	}
	b := make([]byte, hlc.NodeIDLen/2)
	r.FillBytes(b)
	return hex.EncodeToString(b), nil
}
