// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crdt

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/evoluhq/evolu-sub007/hlc"
	"github.com/evoluhq/evolu-sub007/merkle"
	"github.com/evoluhq/evolu-sub007/owner"
	"github.com/evoluhq/evolu-sub007/ports"
	"github.com/evoluhq/evolu-sub007/telemetry"
)

// Store is the local CRDT store of spec §4.5: an append-only
// evolu_history log plus a per-table materialized projection, kept in
// sync with a single owner's hlc.Engine and merkle.Tree. A Store is
// scoped to one owner; a host running multiple owners constructs one
// Store per owner, the way the teacher constructs one manager per
// validator set rather than threading an id through every call.
type Store struct {
	db      ports.Sqlite
	clock   *hlc.Engine
	tree    *merkle.Tree
	ownerID owner.ID
	schemas map[string]TableSchema
	queries *subscriptionRegistry
	logger  *telemetry.Logger

	localTS hlc.Timestamp
}

// NewStore builds a Store for ownerID against db, with clock seeded
// to the zero timestamp (callers restoring a persisted database
// should call RestoreClock first).
func NewStore(db ports.Sqlite, ownerID owner.ID, clock *hlc.Engine, logger *telemetry.Logger, schemas []TableSchema) *Store {
	m := make(map[string]TableSchema, len(schemas))
	for _, s := range schemas {
		m[s.Name] = s
	}
	if logger == nil {
		logger = telemetry.NewLogger(nil)
	}
	return &Store{
		db:      db,
		clock:   clock,
		tree:    merkle.New(),
		ownerID: ownerID,
		schemas: m,
		queries: newSubscriptionRegistry(),
		logger:  logger.With(zap.String("owner", string(ownerID))),
	}
}

// RestoreClock sets the store's in-memory local timestamp, used when
// reopening a database whose evolu_clock row was persisted earlier.
func (s *Store) RestoreClock(ts hlc.Timestamp) { s.localTS = ts }

// LocalTimestamp returns the store's current local HLC timestamp.
func (s *Store) LocalTimestamp() hlc.Timestamp { return s.localTS }

// RootHash returns the Merkle trie's current root hash, the value
// exchanged with a relay to detect divergence.
func (s *Store) RootHash() uint32 { return s.tree.RootHash() }

// Tree returns the store's live Merkle trie, for the sync engine to
// diff against a relay's response.
func (s *Store) Tree() *merkle.Tree { return s.tree }

// MessagesSince returns every locally held message with a timestamp
// binary-order greater than or equal to since, ascending, for a
// catch-up sync round that re-sends everything past a detected
// divergence point (spec §4.6 step 4).
func (s *Store) MessagesSince(ctx context.Context, since hlc.Timestamp) ([]CrdtMessage, error) {
	sinceBin, err := since.MarshalBinary()
	if err != nil {
		return nil, err
	}
	res, err := s.db.Exec(ctx,
		`SELECT table_name, row_id, column_name, value, timestamp FROM evolu_history
		 WHERE ownerId = ? AND timestamp >= ? ORDER BY timestamp ASC`,
		s.ownerID, sinceBin)
	if err != nil {
		return nil, err
	}

	messages := make([]CrdtMessage, 0, len(res.Rows))
	for _, row := range res.Rows {
		tsBin, _ := row["timestamp"].([]byte)
		var ts hlc.Timestamp
		if err := ts.UnmarshalBinary(tsBin); err != nil {
			return nil, err
		}
		valueBin, _ := row["value"].([]byte)
		value, err := DecodeValue(valueBin)
		if err != nil {
			return nil, err
		}
		table, _ := row["table_name"].(string)
		rowID, _ := row["row_id"].(string)
		column, _ := row["column_name"].(string)
		messages = append(messages, CrdtMessage{
			Timestamp: ts,
			Change:    DbChange{Table: table, ID: rowID, Values: map[string]Value{column: value}},
		})
	}
	return messages, nil
}

// CreateSchema creates evolu_history, evolu_clock, and one projection
// table per registered TableSchema, all idempotently.
func (s *Store) CreateSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS evolu_history (
			ownerId TEXT NOT NULL,
			table_name TEXT NOT NULL,
			row_id TEXT NOT NULL,
			column_name TEXT NOT NULL,
			value BLOB NOT NULL,
			timestamp BLOB NOT NULL,
			UNIQUE(ownerId, table_name, row_id, column_name, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS evolu_history_timestamp ON evolu_history(ownerId, timestamp)`,
		`CREATE TABLE IF NOT EXISTS evolu_clock (
			ownerId TEXT PRIMARY KEY,
			nodeId TEXT NOT NULL,
			millis INTEGER NOT NULL,
			counter INTEGER NOT NULL
		)`,
	}
	for _, schema := range s.schemas {
		var cols bytes.Buffer
		for _, c := range schema.Columns {
			fmt.Fprintf(&cols, ", %s BLOB", c)
		}
		ddl = append(ddl, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				isDeleted INTEGER NOT NULL DEFAULT 0%s
			)`, schema.Name, cols.String()))
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Mutate writes changes to table/id as a single transaction, per
// spec §4.5's insert/update/delete algorithm: one HLC send per
// column, append-only history with dedup, and a projection upsert
// only when the written timestamp is the column's current winner. It
// returns one CrdtMessage per column actually written, for the sync
// engine to batch and encrypt.
func (s *Store) Mutate(ctx context.Context, table string, id RowID, changes map[string]Value) ([]CrdtMessage, error) {
	schema, ok := s.schemas[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if len(changes) == 0 {
		return nil, ErrEmptyChange
	}

	columns := make([]string, 0, len(changes))
	for c := range changes {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	var messages []CrdtMessage
	var emitted []hlc.Timestamp
	localTS := s.localTS

	err := s.db.Transaction(ctx, func(tx ports.Sqlite) error {
		for _, column := range columns {
			value := changes[column]
			ts, err := s.clock.Send(localTS)
			if err != nil {
				return err
			}
			localTS = ts

			if err := persistClock(ctx, tx, s.ownerID, ts); err != nil {
				return err
			}

			bin, err := ts.MarshalBinary()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO evolu_history (ownerId, table_name, row_id, column_name, value, timestamp)
				 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
				s.ownerID, table, id, column, value.Encode(), bin); err != nil {
				return err
			}

			winner, err := latestTimestamp(ctx, tx, s.ownerID, table, id, column)
			if err != nil {
				return err
			}
			if bytes.Equal(winner, bin) {
				if err := upsertProjection(ctx, tx, schema, id, column, value); err != nil {
					return err
				}
			}

			messages = append(messages, CrdtMessage{
				Timestamp: ts,
				Change:    DbChange{Table: table, ID: id, Values: map[string]Value{column: value}},
			})
			emitted = append(emitted, ts)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.localTS = localTS
	for _, ts := range emitted {
		if err := merkle.Insert(s.tree, ts); err != nil {
			return messages, err
		}
	}
	s.queries.notify(map[string]struct{}{table: {}})
	return messages, nil
}

// ApplyRemote applies a batch of remote messages atomically, per spec
// §4.5's apply_remote algorithm: the whole batch is rejected if any
// message's timestamp fails the receive algorithm, otherwise every
// message is written with dedup, the projection is updated for the
// columns it wins, and every message's timestamp is folded into the
// Merkle trie. It returns the set of tables touched, for the
// subscription fan-out.
func (s *Store) ApplyRemote(ctx context.Context, messages []CrdtMessage) (map[string]struct{}, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	localTS := s.localTS
	advanced := make([]hlc.Timestamp, len(messages))
	for i, msg := range messages {
		next, err := s.clock.Receive(localTS, msg.Timestamp)
		if err != nil {
			return nil, err
		}
		localTS = next
		advanced[i] = next
	}

	touched := make(map[string]struct{})
	err := s.db.Transaction(ctx, func(tx ports.Sqlite) error {
		for i, msg := range messages {
			schema, ok := s.schemas[msg.Change.Table]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownTable, msg.Change.Table)
			}
			if err := persistClock(ctx, tx, s.ownerID, advanced[i]); err != nil {
				return err
			}

			bin, err := msg.Timestamp.MarshalBinary()
			if err != nil {
				return err
			}
			for column, value := range msg.Change.Values {
				if _, err := tx.Exec(ctx,
					`INSERT INTO evolu_history (ownerId, table_name, row_id, column_name, value, timestamp)
					 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
					s.ownerID, msg.Change.Table, msg.Change.ID, column, value.Encode(), bin); err != nil {
					return err
				}

				winner, err := latestTimestamp(ctx, tx, s.ownerID, msg.Change.Table, msg.Change.ID, column)
				if err != nil {
					return err
				}
				if bytes.Equal(winner, bin) {
					if err := upsertProjection(ctx, tx, schema, msg.Change.ID, column, value); err != nil {
						return err
					}
				}
			}
			touched[msg.Change.Table] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.localTS = localTS
	for _, msg := range messages {
		if err := merkle.Insert(s.tree, msg.Timestamp); err != nil {
			return touched, err
		}
	}
	s.queries.notify(touched)
	return touched, nil
}

// CreateQuery registers q and returns a handle for LoadQuery and
// SubscribeQuery.
func (s *Store) CreateQuery(q Query) QueryHandle { return s.queries.createQuery(q) }

// LoadQuery runs handle's query once and returns its rows.
func (s *Store) LoadQuery(ctx context.Context, handle QueryHandle) (ports.Result, error) {
	q, ok := s.queries.lookup(handle)
	if !ok {
		return ports.Result{}, fmt.Errorf("crdt: unknown query handle %q", handle)
	}
	return s.db.Exec(ctx, q.SQL, q.Args...)
}

// SubscribeQuery registers cb to run after every commit that touches
// one of handle's query's tables, and returns an unsubscribe func.
func (s *Store) SubscribeQuery(handle QueryHandle, cb func()) func() {
	return s.queries.subscribe(handle, cb)
}

func persistClock(ctx context.Context, tx ports.Sqlite, ownerID owner.ID, ts hlc.Timestamp) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO evolu_clock (ownerId, nodeId, millis, counter) VALUES (?, ?, ?, ?)
		 ON CONFLICT(ownerId) DO UPDATE SET nodeId = excluded.nodeId, millis = excluded.millis, counter = excluded.counter`,
		ownerID, ts.NodeID, ts.Millis, ts.Counter)
	return err
}

func latestTimestamp(ctx context.Context, tx ports.Sqlite, ownerID owner.ID, table string, id RowID, column string) ([]byte, error) {
	res, err := tx.Exec(ctx,
		`SELECT timestamp FROM evolu_history
		 WHERE ownerId = ? AND table_name = ? AND row_id = ? AND column_name = ?
		 ORDER BY timestamp DESC LIMIT 1`,
		ownerID, table, id, column)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	raw, _ := res.Rows[0]["timestamp"].([]byte)
	return raw, nil
}

func upsertProjection(ctx context.Context, tx ports.Sqlite, schema TableSchema, id RowID, column string, value Value) error {
	if !schema.hasColumn(column) {
		return fmt.Errorf("crdt: table %s has no projection column %s", schema.Name, column)
	}
	stmt := fmt.Sprintf(
		`INSERT INTO %s (id, %s) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET %s = excluded.%s`,
		schema.Name, column, column, column)
	_, err := tx.Exec(ctx, stmt, id, value.Encode())
	return err
}

func (schema TableSchema) hasColumn(name string) bool {
	for _, c := range schema.Columns {
		if c == name {
			return true
		}
	}
	return name == "isDeleted"
}
