// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the length-prefixed binary transport
// framing of spec §4.8: a fixed envelope header followed by a
// deterministic, protobuf-style varint-framed payload. Fields are
// hand-encoded with encoding/binary rather than generated from a
// .proto file — see DESIGN.md for why protoc-generated code is not a
// fit here.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies an Evolu envelope: "EV".
const (
	Magic0         byte   = 0x45
	Magic1         byte   = 0x56
	Version        uint16 = 1
	envelopeHeaderLen = 5 // magic(2) + version(2) + kind(1)
)

// Kind tags an envelope's payload schema.
type Kind byte

const (
	KindSyncRequest Kind = iota + 1
	KindSyncResponse
)

// Envelope is the wire frame: magic | version(2) | kind(1) |
// payloadLen(varuint) | payload.
type Envelope struct {
	Version uint16
	Kind    Kind
	Payload []byte
}

// EncodeEnvelope serializes e.
func EncodeEnvelope(e Envelope) []byte {
	buf := make([]byte, 0, envelopeHeaderLen+binary.MaxVarintLen64+len(e.Payload))
	buf = append(buf, Magic0, Magic1)
	var verBuf [2]byte
	binary.BigEndian.PutUint16(verBuf[:], e.Version)
	buf = append(buf, verBuf[:]...)
	buf = append(buf, byte(e.Kind))

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(e.Payload)))
	buf = append(buf, lenBuf[:n]...)
	buf = append(buf, e.Payload...)
	return buf
}

// DecodeEnvelope parses one envelope from the front of data and
// returns it along with any trailing bytes (allowing frames to be
// concatenated on a stream transport).
func DecodeEnvelope(data []byte) (Envelope, []byte, error) {
	if len(data) < envelopeHeaderLen {
		return Envelope{}, nil, ErrTruncated
	}
	if data[0] != Magic0 || data[1] != Magic1 {
		return Envelope{}, nil, ErrBadMagic
	}
	version := binary.BigEndian.Uint16(data[2:4])
	if version != Version {
		return Envelope{}, nil, ErrUnsupportedVersion
	}
	kind := Kind(data[4])
	rest := data[envelopeHeaderLen:]

	payloadLen, n := binary.Uvarint(rest)
	if n <= 0 {
		return Envelope{}, nil, ErrTruncated
	}
	rest = rest[n:]
	if uint64(len(rest)) < payloadLen {
		return Envelope{}, nil, ErrTruncated
	}

	return Envelope{Version: version, Kind: kind, Payload: rest[:payloadLen]}, rest[payloadLen:], nil
}

func readVarBytes(data []byte) ([]byte, []byte, error) {
	length, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, ErrTruncated
	}
	rest := data[n:]
	if uint64(len(rest)) < length {
		return nil, nil, ErrTruncated
	}
	return rest[:length], rest[length:], nil
}

func appendVarBytes(buf []byte, field []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(field)))
	buf = append(buf, lenBuf[:n]...)
	return append(buf, field...)
}

func readFixed(data []byte, n int) ([]byte, []byte, error) {
	if len(data) < n {
		return nil, nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, len(data))
	}
	return data[:n], data[n:], nil
}
