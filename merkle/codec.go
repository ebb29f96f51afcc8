// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes t as the compact pre-order walk of spec §4.8: for
// each node, a byte indicating which of {0,1,2} children are present,
// followed by the node's 4-byte XOR hash, followed recursively by the
// present children in key order.
func Encode(t *Tree) []byte {
	var buf []byte
	return appendNode(buf, t.root)
}

func appendNode(buf []byte, n *node) []byte {
	var present byte
	for i, c := range n.children {
		if c != nil {
			present |= 1 << uint(i)
		}
	}
	buf = append(buf, present)
	var hashBuf [4]byte
	binary.BigEndian.PutUint32(hashBuf[:], n.hash)
	buf = append(buf, hashBuf[:]...)
	for i, c := range n.children {
		if present&(1<<uint(i)) != 0 {
			buf = appendNode(buf, c)
		}
	}
	return buf
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*Tree, error) {
	root, rest, err := readNode(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("merkle: %d trailing bytes after decode", len(rest))
	}
	return &Tree{root: root}, nil
}

func readNode(data []byte) (*node, []byte, error) {
	if len(data) < 5 {
		return nil, nil, fmt.Errorf("merkle: truncated node header")
	}
	present := data[0]
	hash := binary.BigEndian.Uint32(data[1:5])
	n := &node{hash: hash}
	rest := data[5:]

	for i := 0; i < 3; i++ {
		if present&(1<<uint(i)) == 0 {
			continue
		}
		child, remaining, err := readNode(rest)
		if err != nil {
			return nil, nil, err
		}
		n.children[i] = child
		rest = remaining
	}
	return n, rest, nil
}
