// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package hlc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evoluhq/evolu-sub007/config"
	"github.com/evoluhq/evolu-sub007/hlc"
)

const midRangeMs int64 = 1_700_000_000_000

func newEngine(t *testing.T, nodeID string, nowMs int64) (*hlc.Engine, *fixedClock) {
	t.Helper()
	clock := &fixedClock{ms: nowMs}
	e, err := hlc.NewEngine(nodeID, clock, config.DefaultClock())
	require.NoError(t, err)
	return e, clock
}

func TestSendMonotonicity(t *testing.T) {
	require := require.New(t)

	e, _ := newEngine(t, "aaaaaaaaaaaaaaaa", midRangeMs)

	var prev hlc.Timestamp
	for i := 0; i < 50; i++ {
		next, err := e.Send(prev)
		require.NoError(err)
		require.Equal(1, hlc.Compare(next, prev), "send output must exceed the prior timestamp")
		prev = next
	}
}

func TestSendReusesCounterWithinSameMillis(t *testing.T) {
	require := require.New(t)

	e, _ := newEngine(t, "aaaaaaaaaaaaaaaa", midRangeMs)

	local := hlc.Timestamp{Millis: midRangeMs + 10_000, Counter: 3, NodeID: "aaaaaaaaaaaaaaaa"}
	next, err := e.Send(local)
	require.NoError(err)
	require.Equal(local.Millis, next.Millis)
	require.Equal(uint16(4), next.Counter)
}

func TestSendDriftRejected(t *testing.T) {
	require := require.New(t)

	e, _ := newEngine(t, "aaaaaaaaaaaaaaaa", midRangeMs)

	local := hlc.Timestamp{Millis: midRangeMs + int64(config.DefaultClock().MaxDriftMs) + 1}
	_, err := e.Send(local)
	require.Error(err)
	var driftErr *hlc.DriftError
	require.ErrorAs(err, &driftErr)
}

func TestSendCounterOverflow(t *testing.T) {
	require := require.New(t)

	e, _ := newEngine(t, "aaaaaaaaaaaaaaaa", midRangeMs)

	local := hlc.Timestamp{Millis: midRangeMs, Counter: 65535, NodeID: "aaaaaaaaaaaaaaaa"}
	_, err := e.Send(local)
	require.ErrorIs(err, hlc.ErrCounterOverflow)
}

func TestSendOutOfRangeRejected(t *testing.T) {
	require := require.New(t)

	e, _ := newEngine(t, "aaaaaaaaaaaaaaaa", hlc.MaxAllowedMillis+1)
	_, err := e.Send(hlc.Timestamp{})
	require.ErrorIs(err, hlc.ErrTimeOutOfRange)
}

func TestReceiveDominance(t *testing.T) {
	require := require.New(t)

	e, _ := newEngine(t, "aaaaaaaaaaaaaaaa", midRangeMs)

	local := hlc.Timestamp{Millis: midRangeMs, Counter: 1, NodeID: "aaaaaaaaaaaaaaaa"}
	remote := hlc.Timestamp{Millis: midRangeMs + 5, Counter: 2, NodeID: "bbbbbbbbbbbbbbbb"}

	got, err := e.Receive(local, remote)
	require.NoError(err)

	max := local.Millis
	if remote.Millis > max {
		max = remote.Millis
	}
	require.GreaterOrEqual(got.Millis, max)
	require.Equal(1, hlc.Compare(got, local))
	require.Equal(1, hlc.Compare(got, remote))
}

func TestReceiveTieBreaksCounter(t *testing.T) {
	require := require.New(t)

	e, _ := newEngine(t, "aaaaaaaaaaaaaaaa", midRangeMs)

	local := hlc.Timestamp{Millis: midRangeMs, Counter: 3, NodeID: "aaaaaaaaaaaaaaaa"}
	remote := hlc.Timestamp{Millis: midRangeMs, Counter: 7, NodeID: "bbbbbbbbbbbbbbbb"}

	got, err := e.Receive(local, remote)
	require.NoError(err)
	require.Equal(midRangeMs, got.Millis)
	require.Equal(uint16(8), got.Counter)
}

func TestReceiveRejectsOwnNodeID(t *testing.T) {
	require := require.New(t)

	e, _ := newEngine(t, "aaaaaaaaaaaaaaaa", midRangeMs)

	remote := hlc.Timestamp{Millis: midRangeMs, NodeID: "aaaaaaaaaaaaaaaa"}
	_, err := e.Receive(hlc.Timestamp{}, remote)
	var dupErr *hlc.DuplicateNodeError
	require.ErrorAs(err, &dupErr)
}

func TestBinaryOrderMatchesLogicalOrder(t *testing.T) {
	require := require.New(t)

	timestamps := []hlc.Timestamp{
		{Millis: midRangeMs, Counter: 0, NodeID: "0000000000000000"},
		{Millis: midRangeMs, Counter: 1, NodeID: "0000000000000000"},
		{Millis: midRangeMs, Counter: 1, NodeID: "0000000000000001"},
		{Millis: midRangeMs + 1, Counter: 0, NodeID: "0000000000000000"},
	}

	for i := 0; i < len(timestamps); i++ {
		for j := 0; j < len(timestamps); j++ {
			bi, err := timestamps[i].MarshalBinary()
			require.NoError(err)
			bj, err := timestamps[j].MarshalBinary()
			require.NoError(err)

			logical := hlc.Compare(timestamps[i], timestamps[j])
			binary := hlc.BinaryCompare(bi, bj)
			require.Equal(sign(logical), sign(binary))
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	require := require.New(t)

	original := hlc.Timestamp{Millis: midRangeMs + 123, Counter: 42, NodeID: "deadbeefcafef00d"}
	b, err := original.MarshalBinary()
	require.NoError(err)
	require.Len(b, hlc.BinarySize)

	var got hlc.Timestamp
	require.NoError(got.UnmarshalBinary(b))
	require.Equal(original, got)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
