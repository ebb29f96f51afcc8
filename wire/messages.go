// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/evoluhq/evolu-sub007/crdt"
	"github.com/evoluhq/evolu-sub007/hlc"
)

const (
	ownerIDLen = 21
	nodeIDLen  = 16
)

// SyncRequest is the C8 SyncRequest payload: ownerId(21B ascii) |
// nodeId(16B hex) | merkleTree(varbytes) | messages(varuint count +
// repeated EncryptedCrdtMessage).
type SyncRequest struct {
	OwnerID    string
	NodeID     string
	MerkleTree []byte
	Messages   []crdt.EncryptedCrdtMessage
}

// EncodeSyncRequest serializes r.
func EncodeSyncRequest(r SyncRequest) ([]byte, error) {
	if len(r.OwnerID) != ownerIDLen {
		return nil, fmt.Errorf("wire: ownerId must be %d bytes, got %d", ownerIDLen, len(r.OwnerID))
	}
	if len(r.NodeID) != nodeIDLen {
		return nil, fmt.Errorf("wire: nodeId must be %d bytes, got %d", nodeIDLen, len(r.NodeID))
	}

	buf := make([]byte, 0, 64+len(r.MerkleTree))
	buf = append(buf, []byte(r.OwnerID)...)
	buf = append(buf, []byte(r.NodeID)...)
	buf = appendVarBytes(buf, r.MerkleTree)

	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(r.Messages)))
	buf = append(buf, countBuf[:n]...)
	for _, msg := range r.Messages {
		encoded, err := encodeEncryptedMessage(msg)
		if err != nil {
			return nil, err
		}
		buf = append(buf, encoded...)
	}
	return buf, nil
}

// DecodeSyncRequest is the inverse of EncodeSyncRequest.
func DecodeSyncRequest(data []byte) (SyncRequest, error) {
	ownerIDBytes, rest, err := readFixed(data, ownerIDLen)
	if err != nil {
		return SyncRequest{}, err
	}
	nodeIDBytes, rest, err := readFixed(rest, nodeIDLen)
	if err != nil {
		return SyncRequest{}, err
	}
	merkleTree, rest, err := readVarBytes(rest)
	if err != nil {
		return SyncRequest{}, err
	}
	messages, _, err := decodeMessageList(rest)
	if err != nil {
		return SyncRequest{}, err
	}
	return SyncRequest{
		OwnerID:    string(ownerIDBytes),
		NodeID:     string(nodeIDBytes),
		MerkleTree: append([]byte(nil), merkleTree...),
		Messages:   messages,
	}, nil
}

// SyncResponse is the C8 SyncResponse payload: merkleTree(varbytes) |
// messages(varuint count + repeated EncryptedCrdtMessage).
type SyncResponse struct {
	MerkleTree []byte
	Messages   []crdt.EncryptedCrdtMessage
}

// EncodeSyncResponse serializes r.
func EncodeSyncResponse(r SyncResponse) ([]byte, error) {
	buf := appendVarBytes(nil, r.MerkleTree)
	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(r.Messages)))
	buf = append(buf, countBuf[:n]...)
	for _, msg := range r.Messages {
		encoded, err := encodeEncryptedMessage(msg)
		if err != nil {
			return nil, err
		}
		buf = append(buf, encoded...)
	}
	return buf, nil
}

// DecodeSyncResponse is the inverse of EncodeSyncResponse.
func DecodeSyncResponse(data []byte) (SyncResponse, error) {
	merkleTree, rest, err := readVarBytes(data)
	if err != nil {
		return SyncResponse{}, err
	}
	messages, _, err := decodeMessageList(rest)
	if err != nil {
		return SyncResponse{}, err
	}
	return SyncResponse{MerkleTree: append([]byte(nil), merkleTree...), Messages: messages}, nil
}

func encodeEncryptedMessage(m crdt.EncryptedCrdtMessage) ([]byte, error) {
	tsBin, err := m.Timestamp.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := append([]byte(nil), tsBin...)
	buf = appendVarBytes(buf, m.Ciphertext)
	return buf, nil
}

func decodeEncryptedMessage(data []byte) (crdt.EncryptedCrdtMessage, []byte, error) {
	tsBin, rest, err := readFixed(data, hlc.BinarySize)
	if err != nil {
		return crdt.EncryptedCrdtMessage{}, nil, err
	}
	var ts hlc.Timestamp
	if err := ts.UnmarshalBinary(tsBin); err != nil {
		return crdt.EncryptedCrdtMessage{}, nil, err
	}
	ciphertext, rest, err := readVarBytes(rest)
	if err != nil {
		return crdt.EncryptedCrdtMessage{}, nil, err
	}
	return crdt.EncryptedCrdtMessage{Timestamp: ts, Ciphertext: append([]byte(nil), ciphertext...)}, rest, nil
}

func decodeMessageList(data []byte) ([]crdt.EncryptedCrdtMessage, []byte, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, ErrTruncated
	}
	rest := data[n:]
	messages := make([]crdt.EncryptedCrdtMessage, 0, count)
	for i := uint64(0); i < count; i++ {
		msg, remaining, err := decodeEncryptedMessage(rest)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, msg)
		rest = remaining
	}
	return messages, rest, nil
}
