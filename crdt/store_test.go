// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crdt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evoluhq/evolu-sub007/config"
	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/hlc"
	"github.com/evoluhq/evolu-sub007/owner"
)

type fakeClock struct{ ms int64 }

func (c *fakeClock) NowMs() int64 { return c.ms }

func newTestStore(t *testing.T, nodeID string) (*crdt.Store, *memDB) {
	t.Helper()
	engine, err := hlc.NewEngine(nodeID, &fakeClock{ms: 1_700_000_000_000}, config.DefaultClock())
	require.NoError(t, err)

	db := newMemDB()
	store := crdt.NewStore(db, owner.ID("ownerABCDEFGHIJKLMNOPQ"), engine, nil, []crdt.TableSchema{
		{Name: "todo", Columns: []string{"title", "isCompleted"}},
	})
	require.NoError(t, store.CreateSchema(context.Background()))
	return store, db
}

func TestMutateWritesHistoryAndProjection(t *testing.T) {
	require := require.New(t)
	store, db := newTestStore(t, "0000000000000001")

	msgs, err := store.Mutate(context.Background(), "todo", "row-a", map[string]crdt.Value{
		"title": crdt.TextValue("x"),
	})
	require.NoError(err)
	require.Len(msgs, 1)
	require.Len(db.tables["evolu_history"], 1)
	require.Len(db.tables["todo"], 1)
	require.Equal("x", mustText(t, db.tables["todo"][0]["title"]))
}

func TestMutateNewerTimestampWinsProjection(t *testing.T) {
	require := require.New(t)
	store, db := newTestStore(t, "0000000000000001")

	_, err := store.Mutate(context.Background(), "todo", "row-a", map[string]crdt.Value{
		"title": crdt.TextValue("x"),
	})
	require.NoError(err)
	_, err = store.Mutate(context.Background(), "todo", "row-a", map[string]crdt.Value{
		"title": crdt.TextValue("y"),
	})
	require.NoError(err)

	require.Len(db.tables["evolu_history"], 2)
	require.Equal("y", mustText(t, db.tables["todo"][0]["title"]))
}

func TestApplyRemoteConvergesAcrossOrder(t *testing.T) {
	require := require.New(t)

	storeA, dbA := newTestStore(t, "0000000000000001")
	storeB, dbB := newTestStore(t, "0000000000000002")

	msgsA, err := storeA.Mutate(context.Background(), "todo", "row-a", map[string]crdt.Value{
		"title": crdt.TextValue("x"),
	})
	require.NoError(err)
	msgsB, err := storeB.Mutate(context.Background(), "todo", "row-a", map[string]crdt.Value{
		"isCompleted": crdt.IntValue(1),
	})
	require.NoError(err)

	_, err = storeA.ApplyRemote(context.Background(), msgsB)
	require.NoError(err)
	_, err = storeB.ApplyRemote(context.Background(), msgsA)
	require.NoError(err)

	require.Equal("x", mustText(t, dbA.tables["todo"][0]["title"]))
	require.Equal("x", mustText(t, dbB.tables["todo"][0]["title"]))
	require.Equal(storeA.RootHash(), storeB.RootHash())
}

func TestApplyRemoteRejectsOwnNodeID(t *testing.T) {
	require := require.New(t)
	store, _ := newTestStore(t, "0000000000000001")

	_, err := store.ApplyRemote(context.Background(), []crdt.CrdtMessage{
		{
			Timestamp: hlc.Timestamp{Millis: 1_700_000_000_001, Counter: 0, NodeID: "0000000000000001"},
			Change:    crdt.DbChange{Table: "todo", ID: "row-a", Values: map[string]crdt.Value{"title": crdt.TextValue("z")}},
		},
	})
	require.Error(err)
}

func mustText(t *testing.T, v any) string {
	t.Helper()
	encoded, ok := v.([]byte)
	require.True(t, ok)
	value, err := crdt.DecodeValue(encoded)
	require.NoError(t, err)
	text, ok := value.Text()
	require.True(t, ok)
	return text
}
