// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package sync

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evoluhq/evolu-sub007/config"
	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/owner"
	"github.com/evoluhq/evolu-sub007/telemetry"
)

// Engine runs the client-side sync state machine of spec §4.6 against
// a single owner's Store and Transport. It is single-threaded
// cooperative: Run processes one trigger, and therefore one sync
// round, at a time, matching the concurrency contract of §4.6/§5.
type Engine struct {
	store     *crdt.Store
	owner     owner.Owner
	nodeID    string
	transport Transport
	cfg       config.Sync
	logger    *telemetry.Logger
	metrics   *telemetry.Metrics
	rnd       *mathrand.Rand

	mu        sync.Mutex
	state     State
	outbound  []crdt.EncryptedCrdtMessage
	stateSubs []func(State)
	errorSubs []func(error)

	triggerCh chan struct{}
}

// NewEngine builds an Engine for owner/store/transport, using nodeID
// as the local HLC node id attached to every outbound request.
func NewEngine(store *crdt.Store, own owner.Owner, nodeID string, transport Transport, cfg config.Sync, logger *telemetry.Logger, metrics *telemetry.Metrics) *Engine {
	if logger == nil {
		logger = telemetry.NewLogger(nil)
	}
	return &Engine{
		store:     store,
		owner:     own,
		nodeID:    nodeID,
		transport: transport,
		cfg:       cfg,
		logger:    logger.With(zap.String("owner", string(own.ID()))),
		metrics:   metrics,
		rnd:       mathrand.New(mathrand.NewSource(randomSeed())),
		state:     StateInitial,
		triggerCh: make(chan struct{}, 1),
	}
}

// State returns the engine's current sync state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	subs := append([]func(State){}, e.stateSubs...)
	e.mu.Unlock()
	for _, cb := range subs {
		if cb != nil {
			cb(s)
		}
	}
}

func (e *Engine) emitError(err error) {
	e.mu.Lock()
	subs := append([]func(error){}, e.errorSubs...)
	e.mu.Unlock()
	for _, cb := range subs {
		if cb != nil {
			cb(err)
		}
	}
}

// SubscribeSyncState registers cb to run on every state transition.
func (e *Engine) SubscribeSyncState(cb func(State)) func() {
	e.mu.Lock()
	e.stateSubs = append(e.stateSubs, cb)
	idx := len(e.stateSubs) - 1
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if idx < len(e.stateSubs) {
			e.stateSubs[idx] = nil
		}
	}
}

// SubscribeError registers cb to run with every error a sync round
// returns: retryable NetworkErrors as well as the terminal
// ServerError, PaymentRequired, and SyncDivergence.
func (e *Engine) SubscribeError(cb func(error)) func() {
	e.mu.Lock()
	e.errorSubs = append(e.errorSubs, cb)
	idx := len(e.errorSubs) - 1
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if idx < len(e.errorSubs) {
			e.errorSubs[idx] = nil
		}
	}
}

// EnqueueMessages encrypts msgs under the owner's encryption key and
// appends them to the outbound batch for the next sync round, then
// triggers one.
func (e *Engine) EnqueueMessages(msgs []crdt.CrdtMessage) error {
	encrypted, err := e.encryptAll(msgs)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.outbound = append(e.outbound, encrypted...)
	e.mu.Unlock()
	e.Trigger()
	return nil
}

func (e *Engine) drainOutbound() []crdt.EncryptedCrdtMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.outbound
	e.outbound = nil
	return out
}

// Trigger schedules a sync round; it is idempotent while one is
// already pending (the queue coalesces bursts of local mutations,
// reconnects, and focus events into a single round, per §4.6).
func (e *Engine) Trigger() {
	select {
	case e.triggerCh <- struct{}{}:
	default:
	}
}

// randomSeed draws a seed for the backoff jitter's math/rand source
// from crypto/rand, so concurrently reconnecting engines in the same
// process don't all compute the identical "jittered" delay at the
// same attempt number. Falls back to the wall clock if crypto/rand is
// ever unavailable, which is not a security-sensitive use here.
func randomSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
