// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relay implements the stateless relay's storage semantics of
// spec §4.7: write-key validation, quota-checked message writes
// serialized per owner, and read/delete/size queries. The relay is
// parallel across owners and serialized within one, by a per-owner
// mutex acquired only for write_messages; reads are lock-free
// snapshot queries over ports.Sqlite.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/crypto"
	"github.com/evoluhq/evolu-sub007/hlc"
	"github.com/evoluhq/evolu-sub007/merkle"
	"github.com/evoluhq/evolu-sub007/owner"
	"github.com/evoluhq/evolu-sub007/ports"
	"github.com/evoluhq/evolu-sub007/telemetry"
)

// Storage is the relay's persistence layer for every owner it serves.
// A single Storage instance is shared by the whole process; it is the
// relay's equivalent of the client Store, but keyed by owner rather
// than scoped to one.
type Storage struct {
	db      ports.Sqlite
	quota   QuotaPolicy
	logger  *telemetry.Logger
	metrics *telemetry.Metrics

	locksMu sync.Mutex
	locks   map[owner.ID]*sync.Mutex

	treesMu sync.Mutex
	trees   map[owner.ID]*merkle.Tree
}

// NewStorage builds a Storage backed by db, gating write_messages
// through quota.
func NewStorage(db ports.Sqlite, quota QuotaPolicy, logger *telemetry.Logger, metrics *telemetry.Metrics) *Storage {
	if logger == nil {
		logger = telemetry.NewLogger(nil)
	}
	return &Storage{
		db:      db,
		quota:   quota,
		logger:  logger,
		metrics: metrics,
		locks:   make(map[owner.ID]*sync.Mutex),
		trees:   make(map[owner.ID]*merkle.Tree),
	}
}

// CreateSchema creates the relay's tables, idempotently.
func (s *Storage) CreateSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS evolu_writeKey (
			ownerId TEXT PRIMARY KEY,
			key BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evolu_usage (
			ownerId TEXT PRIMARY KEY,
			storedBytes INTEGER NOT NULL DEFAULT 0
		)`,
		// evolu_message is the durable payload store and dedups on
		// (ownerId, timestamp); evolu_timestamp records the same pairs
		// so Tree can rebuild an owner's trie without the ciphertext.
		`CREATE TABLE IF NOT EXISTS evolu_message (
			ownerId TEXT NOT NULL,
			timestamp BLOB NOT NULL,
			ciphertext BLOB NOT NULL,
			PRIMARY KEY (ownerId, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS evolu_timestamp (
			ownerId TEXT NOT NULL,
			timestamp BLOB NOT NULL,
			PRIMARY KEY (ownerId, timestamp)
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) lockFor(ownerID owner.ID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[ownerID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[ownerID] = m
	}
	return m
}

// Tree returns ownerID's Merkle trie of stored timestamps, the value
// a sync round diffs the client's local trie against (spec §4.6 step
// 4). It is built lazily from evolu_timestamp on first use and then
// kept live in memory by WriteMessages.
func (s *Storage) Tree(ctx context.Context, ownerID owner.ID) (*merkle.Tree, error) {
	s.treesMu.Lock()
	defer s.treesMu.Unlock()
	return s.treeForLocked(ctx, ownerID)
}

func (s *Storage) treeForLocked(ctx context.Context, ownerID owner.ID) (*merkle.Tree, error) {
	if t, ok := s.trees[ownerID]; ok {
		return t, nil
	}
	res, err := s.db.Exec(ctx, `SELECT timestamp FROM evolu_timestamp WHERE ownerId = ?`, ownerID)
	if err != nil {
		return nil, err
	}
	tree := merkle.New()
	for _, row := range res.Rows {
		tsBin, _ := row["timestamp"].([]byte)
		var ts hlc.Timestamp
		if err := ts.UnmarshalBinary(tsBin); err != nil {
			return nil, err
		}
		if err := merkle.Insert(tree, ts); err != nil {
			return nil, err
		}
	}
	s.trees[ownerID] = tree
	return tree, nil
}

// ValidateWriteKey implements spec §4.7's validate_write_key: the
// first caller for an owner claims the key; every later caller must
// present the same one, compared in constant time.
func (s *Storage) ValidateWriteKey(ctx context.Context, ownerID owner.ID, key []byte) (bool, error) {
	res, err := s.db.Exec(ctx, `SELECT key FROM evolu_writeKey WHERE ownerId = ?`, ownerID)
	if err != nil {
		return false, err
	}
	if len(res.Rows) == 0 {
		if err := s.SetWriteKey(ctx, ownerID, key); err != nil {
			return false, err
		}
		return true, nil
	}
	stored, _ := res.Rows[0]["key"].([]byte)
	return crypto.TimingSafeEqual(stored, key), nil
}

// SetWriteKey sets ownerID's write key if, and only if, none is set
// yet (§4.7's set_write_key, I5's write-key-immutable invariant).
func (s *Storage) SetWriteKey(ctx context.Context, ownerID owner.ID, key []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO evolu_writeKey (ownerId, key) VALUES (?, ?) ON CONFLICT(ownerId) DO NOTHING`,
		ownerID, key)
	return err
}

// WriteMessages acquires ownerID's mutex and, in one transaction,
// checks the resulting storage footprint against quota and inserts
// every message not already present, updating usage by only the
// actually-inserted bytes (§4.7 write_messages, I6, properties
// S5/S6).
func (s *Storage) WriteMessages(ctx context.Context, ownerID owner.ID, msgs []crdt.EncryptedCrdtMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	lock := s.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	var addedBytes uint64
	var inserted []hlc.Timestamp
	err := s.db.Transaction(ctx, func(tx ports.Sqlite) error {
		current, err := storedBytes(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		var requiredDelta uint64
		for _, m := range msgs {
			requiredDelta += uint64(len(m.Ciphertext))
		}
		within, err := s.quota.IsOwnerWithinQuota(ctx, ownerID, current+requiredDelta)
		if err != nil {
			return err
		}
		if !within {
			return &StorageQuotaError{OwnerID: ownerID}
		}

		for _, m := range msgs {
			bin, err := m.Timestamp.MarshalBinary()
			if err != nil {
				return err
			}
			res, err := tx.Exec(ctx,
				`INSERT INTO evolu_message (ownerId, timestamp, ciphertext) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
				ownerID, bin, m.Ciphertext)
			if err != nil {
				return err
			}
			if res.Changes == 0 {
				continue
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO evolu_timestamp (ownerId, timestamp) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				ownerID, bin); err != nil {
				return err
			}
			addedBytes += uint64(len(m.Ciphertext))
			inserted = append(inserted, m.Timestamp)
		}

		if addedBytes == 0 {
			return nil
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO evolu_usage (ownerId, storedBytes) VALUES (?, ?)
			 ON CONFLICT(ownerId) DO UPDATE SET storedBytes = storedBytes + excluded.storedBytes`,
			ownerID, addedBytes)
		return err
	})
	if err != nil {
		var quotaErr *StorageQuotaError
		if errors.As(err, &quotaErr) {
			if s.metrics != nil {
				s.metrics.RelayWritesTotal.WithLabelValues("quota_rejected").Inc()
				s.metrics.RelayQuotaRejections.Inc()
			}
		} else {
			s.logger.Error("relay: write_messages failed", zap.String("owner", string(ownerID)), zap.Error(err))
			if s.metrics != nil {
				s.metrics.RelayWritesTotal.WithLabelValues("error").Inc()
			}
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.RelayWritesTotal.WithLabelValues("ok").Inc()
		s.metrics.RelayStoredBytes.Add(float64(addedBytes))
	}
	if len(inserted) > 0 {
		s.treesMu.Lock()
		tree, err := s.treeForLocked(ctx, ownerID)
		if err == nil {
			for _, ts := range inserted {
				_ = merkle.Insert(tree, ts)
			}
		}
		s.treesMu.Unlock()
	}
	return nil
}

// ReadMessagesSince returns every message for ownerID with a
// timestamp binary-order greater than or equal to since, ascending
// (§4.7 read_messages_since, the relay's ordering guarantee of §5).
func (s *Storage) ReadMessagesSince(ctx context.Context, ownerID owner.ID, since hlc.Timestamp) ([]crdt.EncryptedCrdtMessage, error) {
	sinceBin, err := since.MarshalBinary()
	if err != nil {
		return nil, err
	}
	res, err := s.db.Exec(ctx,
		`SELECT timestamp, ciphertext FROM evolu_message WHERE ownerId = ? AND timestamp >= ? ORDER BY timestamp ASC`,
		ownerID, sinceBin)
	if err != nil {
		return nil, err
	}
	out := make([]crdt.EncryptedCrdtMessage, 0, len(res.Rows))
	for _, row := range res.Rows {
		tsBin, _ := row["timestamp"].([]byte)
		var ts hlc.Timestamp
		if err := ts.UnmarshalBinary(tsBin); err != nil {
			return nil, err
		}
		ciphertext, _ := row["ciphertext"].([]byte)
		out = append(out, crdt.EncryptedCrdtMessage{Timestamp: ts, Ciphertext: ciphertext})
	}
	return out, nil
}

// DeleteOwner removes every row belonging to ownerID across all
// relay tables (§4.7 delete_owner).
func (s *Storage) DeleteOwner(ctx context.Context, ownerID owner.ID) error {
	err := s.db.Transaction(ctx, func(tx ports.Sqlite) error {
		for _, table := range []string{"evolu_timestamp", "evolu_message", "evolu_writeKey", "evolu_usage"} {
			if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ownerId = ?`, table), ownerID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.treesMu.Lock()
	delete(s.trees, ownerID)
	s.treesMu.Unlock()
	return nil
}

// Size returns the number of messages stored for ownerID.
func (s *Storage) Size(ctx context.Context, ownerID owner.ID) (int64, error) {
	res, err := s.db.Exec(ctx, `SELECT timestamp FROM evolu_message WHERE ownerId = ?`, ownerID)
	if err != nil {
		return 0, err
	}
	return int64(len(res.Rows)), nil
}

func storedBytes(ctx context.Context, tx ports.Sqlite, ownerID owner.ID) (uint64, error) {
	res, err := tx.Exec(ctx, `SELECT storedBytes FROM evolu_usage WHERE ownerId = ?`, ownerID)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	switch v := res.Rows[0]["storedBytes"].(type) {
	case uint64:
		return v, nil
	case int64:
		return uint64(v), nil
	default:
		return 0, nil
	}
}
