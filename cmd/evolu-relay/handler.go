// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/hlc"
	"github.com/evoluhq/evolu-sub007/merkle"
	"github.com/evoluhq/evolu-sub007/owner"
	"github.com/evoluhq/evolu-sub007/relay"
	"github.com/evoluhq/evolu-sub007/telemetry"
	"github.com/evoluhq/evolu-sub007/wire"
)

// ErrWriteKeyRejected is returned by runSyncRound when the caller's
// write key does not match the one already claimed for the owner.
var ErrWriteKeyRejected = errors.New("relay: write key rejected")

// server bundles the storage layer with the logger/metrics every
// transport handler needs, independent of whether the request arrived
// over plain HTTP or a WebSocket.
type server struct {
	storage *relay.Storage
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
}

// runSyncRound is the transport-agnostic core of spec §4.6's server
// side: validate the write key, persist the caller's messages, then
// answer with everything the relay has that the caller's Merkle trie
// doesn't, plus the relay's own trie for the caller's next diff.
func (s *server) runSyncRound(ctx context.Context, ownerID owner.ID, writeKey []byte, req wire.SyncRequest) (wire.SyncResponse, error) {
	ok, err := s.storage.ValidateWriteKey(ctx, ownerID, writeKey)
	if err != nil {
		return wire.SyncResponse{}, fmt.Errorf("validate write key: %w", err)
	}
	if !ok {
		return wire.SyncResponse{}, ErrWriteKeyRejected
	}

	if len(req.Messages) > 0 {
		if err := s.storage.WriteMessages(ctx, ownerID, req.Messages); err != nil {
			return wire.SyncResponse{}, fmt.Errorf("write messages: %w", err)
		}
	}

	serverTree, err := s.storage.Tree(ctx, ownerID)
	if err != nil {
		return wire.SyncResponse{}, fmt.Errorf("load tree: %w", err)
	}

	since := hlc.Timestamp{Millis: 0, NodeID: req.NodeID}
	sendMessages := true
	if len(req.MerkleTree) > 0 {
		clientTree, err := merkle.Decode(req.MerkleTree)
		if err != nil {
			return wire.SyncResponse{}, fmt.Errorf("decode client tree: %w", err)
		}
		millis, diverges := merkle.Diff(serverTree, clientTree)
		if !diverges {
			sendMessages = false
		} else {
			since.Millis = millis
		}
	}

	var outgoing []crdt.EncryptedCrdtMessage
	if sendMessages {
		outgoing, err = s.storage.ReadMessagesSince(ctx, ownerID, since)
		if err != nil {
			return wire.SyncResponse{}, fmt.Errorf("read messages: %w", err)
		}
	}

	s.logger.Info("relay: sync round",
		zap.String("owner", string(ownerID)),
		zap.Int("received", len(req.Messages)),
		zap.Int("sent", len(outgoing)))

	return wire.SyncResponse{
		MerkleTree: merkle.Encode(serverTree),
		Messages:   outgoing,
	}, nil
}
