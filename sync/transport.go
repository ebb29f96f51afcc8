// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package sync

import (
	"context"

	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/merkle"
	"github.com/evoluhq/evolu-sub007/owner"
)

// Request is one sync round's outbound half: the owner's id and node
// id, its current Merkle tree, and any newly produced messages. A
// follow-up round (chasing a divergence) sends, in Messages, every
// local message with a timestamp at or after the divergence point.
type Request struct {
	OwnerID  owner.ID
	NodeID   string
	Merkle   *merkle.Tree
	Messages []crdt.EncryptedCrdtMessage
}

// Response is a sync round's inbound half: the relay's current Merkle
// tree for the owner and any messages the client had not yet seen.
type Response struct {
	Merkle   *merkle.Tree
	Messages []crdt.EncryptedCrdtMessage
}

// Transport performs one request/response round trip against a relay.
// Concrete implementations (WebSocket preferred, HTTP POST fallback
// per spec §4.6 step 3) live outside this package, built against
// ports.WebSocket and the wire package's binary encoding; Engine only
// depends on this narrow interface, the same separation the core
// keeps between itself and ports.Sqlite/ports.WebSocket.
type Transport interface {
	SyncRound(ctx context.Context, req Request) (Response, error)
}
