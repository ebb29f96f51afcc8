// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package merkle implements the base-3 Merkle trie over HLC
// timestamps described in spec §4.4: an XOR-hashed radix-3 index
// keyed by the minute a timestamp falls in, supporting O(log N)
// divergence detection between two replicas.
package merkle

import (
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/evoluhq/evolu-sub007/hlc"
)

// PathLen is the number of base-3 digits in a trie key: every allowed
// timestamp's minute fits in exactly this many digits (see
// DESIGN.md's Open Question decision on AllowedTimeRange/path length).
const PathLen = 16

// node is one level of the trie: an XOR hash summarizing everything
// in its subtree, and up to three children keyed by base-3 digit.
type node struct {
	hash     uint32
	children [3]*node
}

// Tree is a base-3 Merkle trie over timestamp minutes.
type Tree struct {
	root *node
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: &node{}}
}

// RootHash returns the XOR hash of every timestamp inserted so far.
func (t *Tree) RootHash() uint32 {
	return t.root.hash
}

// Insert folds ts into the tree. Insertion is commutative: inserting
// the same multiset of timestamps in any order produces trees with
// equal RootHash and equal structure (property 4), because XOR
// is commutative and associative. Re-inserting the same timestamp
// twice flips bits back in, so callers must not insert a timestamp
// more than once for a replica's logical state to stay correct.
func Insert(t *Tree, ts hlc.Timestamp) error {
	path, err := keyPath(ts)
	if err != nil {
		return err
	}
	h := hashTimestamp(ts)

	n := t.root
	n.hash ^= h
	for _, digit := range path {
		idx := digit - '0'
		if n.children[idx] == nil {
			n.children[idx] = &node{}
		}
		n = n.children[idx]
		n.hash ^= h
	}
	return nil
}

// Diff returns the earliest minute (as millis) at which a and b may
// diverge, or ok=false if their root hashes already match. The walk
// visits children in key order "0","1","2" and stops at the first
// digit where both sides have a differing child, or where one side
// has no child at all (pruning-lossy: a missing child could mean
// "empty" or "never observed", so the walk cannot descend further and
// must report divergence starting at that prefix).
func Diff(a, b *Tree) (millisAtDivergence int64, ok bool) {
	if a.root.hash == b.root.hash {
		return 0, false
	}

	var prefix [PathLen]byte
	depth := 0
	na, nb := a.root, b.root

	for depth < PathLen {
		found := false
		for digit := byte('0'); digit <= '2'; digit++ {
			idx := digit - '0'
			ca, cb := na.children[idx], nb.children[idx]
			if ca == nil && cb == nil {
				continue
			}
			if ca == nil || cb == nil || ca.hash != cb.hash {
				prefix[depth] = digit
				depth++
				na, nb = ca, cb
				found = true
				break
			}
		}
		if !found {
			break
		}
		if na == nil || nb == nil {
			break
		}
	}

	for i := depth; i < PathLen; i++ {
		prefix[i] = '0'
	}
	minute := base3DigitsToInt(prefix[:])
	return minute * 60_000, true
}

// keyPath returns the PathLen base-3 digits of floor(ts.Millis/60000).
func keyPath(ts hlc.Timestamp) (string, error) {
	if ts.Millis <= hlc.MinAllowedMillis || ts.Millis >= hlc.MaxAllowedMillis {
		return "", fmt.Errorf("merkle: timestamp millis %d out of allowed range", ts.Millis)
	}
	minute := ts.Millis / 60_000
	digits := make([]byte, PathLen)
	for i := PathLen - 1; i >= 0; i-- {
		digits[i] = byte('0' + minute%3)
		minute /= 3
	}
	if minute != 0 {
		return "", fmt.Errorf("merkle: timestamp minute overflowed %d base-3 digits", PathLen)
	}
	return string(digits), nil
}

func base3DigitsToInt(digits []byte) int64 {
	var n int64
	for _, d := range digits {
		n = n*3 + int64(d-'0')
	}
	return n
}

// hashTimestamp returns the 32-bit MurmurHash3 of ts's canonical
// string form, per §4.4.
func hashTimestamp(ts hlc.Timestamp) uint32 {
	return murmur3.Sum32([]byte(timestampString(ts)))
}

// timestampString is the canonical "millis-counter-nodeId" form
// hashed for the trie. It is not a wire format; only Insert/hash
// stability across calls matters.
func timestampString(ts hlc.Timestamp) string {
	return fmt.Sprintf("%d-%05d-%s", ts.Millis, ts.Counter, ts.NodeID)
}
