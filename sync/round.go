// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/crypto"
	"github.com/evoluhq/evolu-sub007/hlc"
	"github.com/evoluhq/evolu-sub007/merkle"
	"github.com/evoluhq/evolu-sub007/wire"
)

// RunSyncRound runs one full sync round (including any catch-up
// rounds needed to resolve a detected divergence) and returns the
// resulting state. On failure the engine moves to StateNotSynced and
// the error is also published to SubscribeError subscribers, per
// spec §7's propagation policy.
func (e *Engine) RunSyncRound(ctx context.Context) (State, error) {
	e.setState(StateSyncing)
	outbound := e.drainOutbound()

	started := time.Now()
	err := e.syncOnce(ctx, outbound)
	if e.metrics != nil {
		e.metrics.SyncRoundDuration.Observe(time.Since(started).Seconds())
		e.metrics.SyncRoundsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	}
	if err != nil {
		e.setState(StateNotSynced)
		e.emitError(err)
		return StateNotSynced, err
	}
	e.setState(StateSynced)
	return StateSynced, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "synced"
	case err == ErrSyncDivergence:
		return "divergence"
	case err == ErrPaymentRequired:
		return "payment_required"
	default:
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			return "network_error"
		}
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return "server_error"
		}
		return "error"
	}
}

func (e *Engine) syncOnce(ctx context.Context, outbound []crdt.EncryptedCrdtMessage) error {
	req := Request{
		OwnerID:  e.owner.ID(),
		NodeID:   e.nodeID,
		Merkle:   e.store.Tree(),
		Messages: outbound,
	}

	prevDivergedAt := int64(-1)
	for {
		resp, err := e.transport.SyncRound(ctx, req)
		if err != nil {
			return err
		}

		if len(resp.Messages) > 0 {
			decrypted, err := e.decryptAll(resp.Messages)
			if err != nil {
				return err
			}
			if _, err := e.store.ApplyRemote(ctx, decrypted); err != nil {
				return err
			}
		}

		divergedAt, diverges := merkle.Diff(e.store.Tree(), resp.Merkle)
		if !diverges {
			return nil
		}
		if prevDivergedAt >= 0 && divergedAt >= prevDivergedAt {
			return ErrSyncDivergence
		}
		prevDivergedAt = divergedAt

		since := hlc.Timestamp{Millis: divergedAt, Counter: 0, NodeID: "0000000000000000"}
		localMsgs, err := e.store.MessagesSince(ctx, since)
		if err != nil {
			return err
		}
		resend, err := e.encryptAll(localMsgs)
		if err != nil {
			return err
		}
		req = Request{OwnerID: e.owner.ID(), NodeID: e.nodeID, Merkle: e.store.Tree(), Messages: resend}
	}
}

func (e *Engine) encryptAll(msgs []crdt.CrdtMessage) ([]crdt.EncryptedCrdtMessage, error) {
	out := make([]crdt.EncryptedCrdtMessage, 0, len(msgs))
	for _, m := range msgs {
		framed, err := crypto.SealAndFrame(e.owner.EncryptionKey(), wire.EncodeDbChange(m.Change))
		if err != nil {
			return nil, err
		}
		out = append(out, crdt.EncryptedCrdtMessage{Timestamp: m.Timestamp, Ciphertext: framed})
	}
	return out, nil
}

func (e *Engine) decryptAll(msgs []crdt.EncryptedCrdtMessage) ([]crdt.CrdtMessage, error) {
	out := make([]crdt.CrdtMessage, 0, len(msgs))
	for _, m := range msgs {
		plaintext, err := crypto.OpenFramed(e.owner.EncryptionKey(), m.Ciphertext)
		if err != nil {
			return nil, err
		}
		change, err := wire.DecodeDbChange(plaintext)
		if err != nil {
			return nil, err
		}
		out = append(out, crdt.CrdtMessage{Timestamp: m.Timestamp, Change: change})
	}
	return out, nil
}
