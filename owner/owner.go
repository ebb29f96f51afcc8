// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package owner implements the SLIP-21-derived owner/key tree of
// spec §4.2: an AppOwner holds a mnemonic-recoverable secret; derived
// ShardOwner, SharedOwner, and SharedReadonlyOwner carry only the
// keys their role needs.
package owner

import "encoding/base64"

// Kind distinguishes the four owner variants of spec §3.
type Kind int

const (
	KindApp Kind = iota
	KindShard
	KindShared
	KindSharedReadonly
)

func (k Kind) String() string {
	switch k {
	case KindApp:
		return "app"
	case KindShard:
		return "shard"
	case KindShared:
		return "shared"
	case KindSharedReadonly:
		return "shared-readonly"
	default:
		return "unknown"
	}
}

// Secret is a 32-byte owner secret, the SLIP-21 seed everything else
// is derived from.
type Secret [32]byte

// ID is the 21-character base64url owner identifier derived from a
// SLIP-21 leaf (spec §3).
type ID string

const idLen = 21

// idFromSLIP21Leaf reduces a 32-byte SLIP-21 output to the 21-char
// base64url OwnerId by taking its first 21*6=126 bits.
func idFromSLIP21Leaf(leaf []byte) ID {
	// 21 base64 characters encode 126 bits = 15.75 bytes; feeding the
	// full 16-byte prefix to RawURLEncoding and truncating the
	// resulting string to 21 characters matches the spec's "take
	// 21*6 bits" rule, since base64 emits 6 bits per character in
	// order.
	encoded := base64.RawURLEncoding.EncodeToString(leaf[:16])
	return ID(encoded[:idLen])
}

// Owner is an immutable capability-bearing principal. Fields are
// unexported so construction always goes through the derivation
// functions in derive.go, keeping invariant (I5) (a relay's write key
// is set-once) true by construction on the client side as well: there
// is no setter that could mutate an owner's keys after creation.
type Owner struct {
	kind          Kind
	id            ID
	writeKey      []byte // 16 bytes; nil for SharedReadonlyOwner
	encryptionKey []byte // 32 bytes
	secret        *Secret // nil unless this owner can derive children
	mnemonic      string  // only set on an AppOwner
}

func (o Owner) Kind() Kind             { return o.kind }
func (o Owner) ID() ID                 { return o.id }
func (o Owner) EncryptionKey() []byte  { return append([]byte(nil), o.encryptionKey...) }
func (o Owner) Mnemonic() string       { return o.mnemonic }

// WriteKey returns the owner's 16-byte write key and true, or
// (nil, false) for a SharedReadonlyOwner.
func (o Owner) WriteKey() ([]byte, bool) {
	if o.writeKey == nil {
		return nil, false
	}
	return append([]byte(nil), o.writeKey...), true
}

// Secret returns the owner's derivation secret and true, or
// (Secret{}, false) if this owner cannot derive children (a
// SharedReadonlyOwner, or any owner reconstructed from keys alone
// without its secret).
func (o Owner) Secret() (Secret, bool) {
	if o.secret == nil {
		return Secret{}, false
	}
	return *o.secret, true
}

// AsReadonly strips the write key (and derivation secret) from an
// owner, producing the SharedReadonlyOwner variant used to grant
// read-only access.
func (o Owner) AsReadonly() Owner {
	return Owner{
		kind:          KindSharedReadonly,
		id:            o.id,
		encryptionKey: append([]byte(nil), o.encryptionKey...),
	}
}
