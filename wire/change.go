// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"encoding/binary"
	"sort"

	"github.com/evoluhq/evolu-sub007/crdt"
)

// EncodeDbChange serializes a DbChange as the plaintext payload
// encrypted into an EncryptedCrdtMessage's ciphertext: table(varbytes)
// | id(varbytes) | columnCount(varuint) | repeated { name(varbytes) |
// value(varbytes, crdt.Value.Encode() form) }, per spec §3's
// "protobuf-like varint-framed" DbChange.
func EncodeDbChange(c crdt.DbChange) []byte {
	buf := appendVarBytes(nil, []byte(c.Table))
	buf = appendVarBytes(buf, []byte(c.ID))

	columns := make([]string, 0, len(c.Values))
	for col := range c.Values {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var countBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(countBuf[:], uint64(len(columns)))
	buf = append(buf, countBuf[:n]...)
	for _, col := range columns {
		buf = appendVarBytes(buf, []byte(col))
		buf = appendVarBytes(buf, c.Values[col].Encode())
	}
	return buf
}

// DecodeDbChange is the inverse of EncodeDbChange.
func DecodeDbChange(data []byte) (crdt.DbChange, error) {
	tableBytes, rest, err := readVarBytes(data)
	if err != nil {
		return crdt.DbChange{}, err
	}
	idBytes, rest, err := readVarBytes(rest)
	if err != nil {
		return crdt.DbChange{}, err
	}
	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return crdt.DbChange{}, ErrTruncated
	}
	rest = rest[n:]

	values := make(map[string]crdt.Value, count)
	for i := uint64(0); i < count; i++ {
		var nameBytes, valueBytes []byte
		nameBytes, rest, err = readVarBytes(rest)
		if err != nil {
			return crdt.DbChange{}, err
		}
		valueBytes, rest, err = readVarBytes(rest)
		if err != nil {
			return crdt.DbChange{}, err
		}
		value, err := crdt.DecodeValue(valueBytes)
		if err != nil {
			return crdt.DbChange{}, err
		}
		values[string(nameBytes)] = value
	}

	return crdt.DbChange{Table: string(tableBytes), ID: string(idBytes), Values: values}, nil
}

